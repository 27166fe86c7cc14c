package model

// expr.go - slot-resolved expression trees. References are bound to value
// slots at compile time so evaluation is allocation-free.

import "math"

// cexpr is a compiled expression evaluable against the slot array.
type cexpr interface {
	eval(slots []float64) float64
}

type cnum float64

func (c cnum) eval([]float64) float64 { return float64(c) }

type cslot int

func (c cslot) eval(slots []float64) float64 { return slots[c] }

type cneg struct {
	expr cexpr
}

func (c *cneg) eval(slots []float64) float64 { return -c.expr.eval(slots) }

type cbinary struct {
	op    TokenType
	left  cexpr
	right cexpr
}

func (c *cbinary) eval(slots []float64) float64 {
	l := c.left.eval(slots)
	r := c.right.eval(slots)
	switch c.op {
	case PLUS:
		return l + r
	case MINUS:
		return l - r
	case STAR:
		return l * r
	case SLASH:
		return l / r
	case CARET:
		return math.Pow(l, r)
	}
	return 0
}

type ccall struct {
	fn   func([]float64) float64
	args []cexpr
}

func (c *ccall) eval(slots []float64) float64 {
	var buf [4]float64
	for i, a := range c.args {
		buf[i] = a.eval(slots)
	}
	return c.fn(buf[:len(c.args)])
}

// compileExpr resolves an AST expression's references to slots.
func (c *compiler) compileExpr(e Expr, binding map[string]int) (cexpr, bool) {
	switch x := e.(type) {
	case *NumberLit:
		return cnum(x.Value), true
	case *Ref:
		slot, ok := c.lookupSlot(x, binding)
		if !ok {
			return nil, false
		}
		return cslot(slot), true
	case *UnaryExpr:
		inner, ok := c.compileExpr(x.Expr, binding)
		if !ok {
			return nil, false
		}
		return &cneg{expr: inner}, true
	case *BinaryExpr:
		left, okL := c.compileExpr(x.Left, binding)
		right, okR := c.compileExpr(x.Right, binding)
		if !okL || !okR {
			return nil, false
		}
		return &cbinary{op: x.Op, left: left, right: right}, true
	case *CallExpr:
		call := &ccall{fn: funcCatalog[x.Name].eval}
		for _, a := range x.Args {
			arg, ok := c.compileExpr(a, binding)
			if !ok {
				return nil, false
			}
			call.args = append(call.args, arg)
		}
		return call, true
	default:
		c.errorf("unsupported expression")
		return nil, false
	}
}

// collectSlots gathers every slot a compiled expression reads.
func collectSlots(e cexpr, out []int) []int {
	switch x := e.(type) {
	case cslot:
		return append(out, int(x))
	case *cneg:
		return collectSlots(x.expr, out)
	case *cbinary:
		return collectSlots(x.right, collectSlots(x.left, out))
	case *ccall:
		for _, a := range x.args {
			out = collectSlots(a, out)
		}
		return out
	default:
		return out
	}
}
