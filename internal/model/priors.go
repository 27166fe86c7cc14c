package model

// priors.go - drawing parameter values from their priors. Hierarchical
// priors are handled by drawing parameters in dependency order: a parameter
// whose hyperparameters reference another parameter (directly or through
// deterministic nodes) is drawn after it.

import (
	"fmt"
	"math/rand/v2"
)

// DrawPriorValues draws one value per parameter from its prior distribution,
// in declaration order, honoring hyperparameter dependencies. The result is
// indexed like Params().
func (c *Compiled) DrawPriorValues(src rand.Source) ([]float64, error) {
	order, err := c.priorOrder()
	if err != nil {
		return nil, err
	}

	ev := c.NewEval()
	values := make([]float64, len(c.params))
	var buf [4]float64

	for _, i := range order {
		p := c.params[i]
		s := &c.stoch[p.stoch]

		// Refresh deterministic nodes so hyperparameters that flow through
		// them see values drawn so far.
		for _, d := range c.det {
			ev.slots[d.slot] = d.expr.eval(ev.slots)
		}
		for j, a := range s.args {
			buf[j] = a.eval(ev.slots)
		}
		v, err := s.dist.Rand(buf[:len(s.args)], src)
		if err != nil {
			return nil, fmt.Errorf("drawing initial value for %s: %w", p.Name, err)
		}
		values[i] = v
		ev.slots[p.slot] = v
	}
	return values, nil
}

// priorOrder returns parameter indices ordered so that hyperparameter
// dependencies are drawn first.
func (c *Compiled) priorOrder() ([]int, error) {
	// paramOfSlot maps a parameter's slot to its index.
	paramOfSlot := make(map[int]int, len(c.params))
	for i, p := range c.params {
		paramOfSlot[p.slot] = i
	}

	// Closure of parameter dependencies through deterministic slots,
	// following the deterministic topological order.
	detParamDeps := make(map[int][]int) // det slot -> param indices
	for _, d := range c.det {
		var deps []int
		for _, slot := range collectSlots(d.expr, nil) {
			if pi, ok := paramOfSlot[slot]; ok {
				deps = append(deps, pi)
			}
			deps = append(deps, detParamDeps[slot]...)
		}
		detParamDeps[d.slot] = deps
	}

	deps := make([][]int, len(c.params))
	for i, p := range c.params {
		s := &c.stoch[p.stoch]
		for _, a := range s.args {
			for _, slot := range collectSlots(a, nil) {
				if pi, ok := paramOfSlot[slot]; ok && pi != i {
					deps[i] = append(deps[i], pi)
				}
				for _, pi := range detParamDeps[slot] {
					if pi != i {
						deps[i] = append(deps[i], pi)
					}
				}
			}
		}
	}

	indegree := make([]int, len(c.params))
	children := make(map[int][]int)
	for i, ds := range deps {
		seen := make(map[int]bool)
		for _, d := range ds {
			if seen[d] {
				continue
			}
			seen[d] = true
			children[d] = append(children[d], i)
			indegree[i]++
		}
	}

	var queue []int
	for i := range c.params {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	var order []int
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, child := range children[i] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != len(c.params) {
		return nil, &CompileError{Model: c.Name, Msg: "parameter priors form a dependency cycle"}
	}
	return order, nil
}
