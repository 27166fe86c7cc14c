package model

// compile.go - turns a parsed model plus a data mapping into an evaluable
// node graph. For loops are unrolled into one node per index value, every
// scalar node gets a value slot, deterministic nodes are ordered
// topologically, and stochastic nodes are classified as observed (name
// present in the data) or parameters (unobserved).

import (
	"errors"
	"fmt"
	"math"
)

// Data is the named mapping consumed by Compile: observation arrays plus
// scalar dimension counts (e.g. N). Every name the model references must
// resolve to an entry here or to a node the model itself declares.
type Data struct {
	Arrays  map[string][]float64
	Scalars map[string]float64
}

// CompileError is a model/data configuration error detected at compile time.
type CompileError struct {
	Model string
	Msg   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("model %s: %s", e.Model, e.Msg)
}

// Param is one top-level unobserved stochastic node.
type Param struct {
	Name  string // display name, e.g. "alpha" or "theta[2]"
	slot  int
	stoch int // index into Compiled.stoch
}

// MonitorKind distinguishes sampled parameters from deterministic nodes.
type MonitorKind int

// Monitor kinds.
const (
	MonitorParam MonitorKind = iota
	MonitorDeterministic
)

// Monitor is one retained node, resolved by name.
type Monitor struct {
	Name string
	Kind MonitorKind
	// for MonitorParam: index into Params(); for MonitorDeterministic: slot
	Index int
}

type stochNode struct {
	name     string
	slot     int
	dist     *Dist
	args     []cexpr
	observed bool
}

type detNode struct {
	name string
	slot int
	expr cexpr
}

// Compiled is an evaluable model bound to one data mapping.
type Compiled struct {
	Name string

	template []float64 // slot values with data constants and observations filled
	det      []detNode // topological order
	stoch    []stochNode
	params   []Param

	// base variable name -> param indices, for monitor resolution
	paramsByBase map[string][]int
	// deterministic node display name or base name -> det indices
	detByBase map[string][]int
}

// Params returns the display names of all parameters, in declaration order.
func (c *Compiled) Params() []string {
	names := make([]string, len(c.params))
	for i, p := range c.params {
		names[i] = p.Name
	}
	return names
}

// NumParams returns the number of parameters.
func (c *Compiled) NumParams() int {
	return len(c.params)
}

// ResolveMonitors resolves monitor names to retained nodes. A base name
// matching parameters expands to all of its elements. An empty list selects
// every parameter. Deterministic nodes are retained only when named
// explicitly.
func (c *Compiled) ResolveMonitors(names []string) ([]Monitor, error) {
	if len(names) == 0 {
		monitors := make([]Monitor, len(c.params))
		for i, p := range c.params {
			monitors[i] = Monitor{Name: p.Name, Kind: MonitorParam, Index: i}
		}
		return monitors, nil
	}

	var monitors []Monitor
	for _, name := range names {
		if idxs, ok := c.paramsByBase[name]; ok {
			for _, i := range idxs {
				monitors = append(monitors, Monitor{Name: c.params[i].Name, Kind: MonitorParam, Index: i})
			}
			continue
		}
		if idxs, ok := c.detByBase[name]; ok {
			for _, i := range idxs {
				monitors = append(monitors, Monitor{Name: c.det[i].name, Kind: MonitorDeterministic, Index: i})
			}
			continue
		}
		return nil, &CompileError{Model: c.Name, Msg: fmt.Sprintf("monitored variable %q is not a parameter or deterministic node", name)}
	}
	return monitors, nil
}

// Eval is a per-goroutine evaluation context over the compiled graph.
// Chains sample concurrently, each with its own Eval.
type Eval struct {
	c     *Compiled
	slots []float64
}

// NewEval creates an evaluation context seeded with the data values.
func (c *Compiled) NewEval() *Eval {
	slots := make([]float64, len(c.template))
	copy(slots, c.template)
	return &Eval{c: c, slots: slots}
}

// setParams writes parameter values and refreshes deterministic nodes.
func (ev *Eval) setParams(params []float64) {
	for i, p := range ev.c.params {
		ev.slots[p.slot] = params[i]
	}
	for _, d := range ev.c.det {
		ev.slots[d.slot] = d.expr.eval(ev.slots)
	}
}

// LogDensity returns the log joint density of the model at the given
// parameter values: the sum over every stochastic node of its log density,
// observed nodes at their data values. Returns -Inf when any value falls
// outside its distribution's support.
func (ev *Eval) LogDensity(params []float64) float64 {
	ev.setParams(params)

	total := 0.0
	var buf [4]float64
	for i := range ev.c.stoch {
		s := &ev.c.stoch[i]
		for j, a := range s.args {
			buf[j] = a.eval(ev.slots)
		}
		lp := s.dist.LogProb(buf[:len(s.args)], ev.slots[s.slot])
		if math.IsInf(lp, -1) {
			return math.Inf(-1)
		}
		total += lp
	}
	return total
}

// PriorLogProbAt sets the full parameter vector and returns the log prior
// density of parameter i at its value in params. Used to check initial
// values against each parameter's support.
func (ev *Eval) PriorLogProbAt(i int, params []float64) float64 {
	ev.setParams(params)
	return ev.PriorLogProb(i, params[i])
}

// PriorLogProb returns the log prior density of parameter i at value x,
// with hyperparameters evaluated against the context's current state.
func (ev *Eval) PriorLogProb(i int, x float64) float64 {
	s := &ev.c.stoch[ev.c.params[i].stoch]
	var buf [4]float64
	for j, a := range s.args {
		buf[j] = a.eval(ev.slots)
	}
	return s.dist.LogProb(buf[:len(s.args)], x)
}

// MonitorValues evaluates the monitored nodes at the given parameter values.
func (ev *Eval) MonitorValues(monitors []Monitor, params []float64, out []float64) {
	ev.setParams(params)
	for i, m := range monitors {
		switch m.Kind {
		case MonitorParam:
			out[i] = params[m.Index]
		case MonitorDeterministic:
			out[i] = ev.slots[ev.c.det[m.Index].slot]
		}
	}
}

// --- compilation ---

// flatRel is one unrolled scalar relation.
type flatRel struct {
	name    string // base variable name
	index   int    // 1-based element index, 0 for scalars
	stoch   *StochasticRel
	det     *DeterministicRel
	binding map[string]int // loop variable binding active at the declaration
}

func (r *flatRel) display() string {
	if r.index == 0 {
		return r.name
	}
	return fmt.Sprintf("%s[%d]", r.name, r.index)
}

// varUsage tracks how a name is used across the model for the
// dimensionality-consistency check.
type varUsage struct {
	scalar  bool
	indexed bool
	maxIdx  int
}

type compiler struct {
	model *Model
	data  *Data

	rels   []flatRel
	usage  map[string]*varUsage
	errs   []error
	nSlots int

	// base name -> element index (0 for scalar) -> slot
	slots map[string]map[int]int
	// slots defined by a relation, keyed the same way
	defined map[string]map[int]*flatRel

	template []float64
}

// Compile binds a parsed model to a data mapping, producing an evaluable
// node graph. All configuration errors (undefined names, inconsistent
// indexing, duplicate definitions, bad loop bounds) are reported together.
func Compile(m *Model, data *Data) (*Compiled, error) {
	if data == nil {
		data = &Data{}
	}
	c := &compiler{
		model:   m,
		data:    data,
		usage:   make(map[string]*varUsage),
		slots:   make(map[string]map[int]int),
		defined: make(map[string]map[int]*flatRel),
	}

	c.registerData()
	c.unroll()
	c.collectUsage()
	c.checkUsage()
	if len(c.errs) > 0 {
		return nil, c.fail()
	}

	c.allocateSlots()
	compiled, err := c.build()
	if err != nil {
		return nil, err
	}
	if len(c.errs) > 0 {
		return nil, c.fail()
	}
	return compiled, nil
}

func (c *compiler) errorf(format string, args ...any) {
	c.errs = append(c.errs, &CompileError{Model: c.model.Name, Msg: fmt.Sprintf(format, args...)})
}

func (c *compiler) fail() error {
	return errors.Join(c.errs...)
}

// registerData records usage shapes for data arrays and scalars.
func (c *compiler) registerData() {
	for name, col := range c.data.Arrays {
		c.use(name).indexed = true
		if len(col) > c.use(name).maxIdx {
			c.use(name).maxIdx = len(col)
		}
	}
	for name := range c.data.Scalars {
		c.use(name).scalar = true
	}
}

func (c *compiler) use(name string) *varUsage {
	u, ok := c.usage[name]
	if !ok {
		u = &varUsage{}
		c.usage[name] = u
	}
	return u
}

// unroll flattens for loops into per-index relations.
func (c *compiler) unroll() {
	for _, stmt := range c.model.Stmts {
		switch s := stmt.(type) {
		case *ForLoop:
			lo, okLo := c.bound(s.Lo)
			hi, okHi := c.bound(s.Hi)
			if !okLo || !okHi {
				continue
			}
			if hi < lo {
				c.errorf("for loop at %s: empty range %d:%d", s.Pos, lo, hi)
				continue
			}
			for i := lo; i <= hi; i++ {
				binding := map[string]int{s.Index: i}
				for _, body := range s.Body {
					c.addRel(body, binding)
				}
			}
		default:
			c.addRel(stmt, nil)
		}
	}
}

// bound resolves a loop bound to a concrete integer.
func (c *compiler) bound(e Expr) (int, bool) {
	switch b := e.(type) {
	case *NumberLit:
		if b.Value != math.Trunc(b.Value) {
			c.errorf("loop bound %g is not an integer", b.Value)
			return 0, false
		}
		return int(b.Value), true
	case *Ref:
		v, ok := c.data.Scalars[b.Name]
		if !ok {
			c.errorf("loop bound %q is not a data scalar", b.Name)
			return 0, false
		}
		if v != math.Trunc(v) {
			c.errorf("loop bound %s = %g is not an integer", b.Name, v)
			return 0, false
		}
		return int(v), true
	default:
		c.errorf("unsupported loop bound expression")
		return 0, false
	}
}

func (c *compiler) addRel(stmt Stmt, binding map[string]int) {
	var lhs *Ref
	rel := flatRel{binding: binding}
	switch s := stmt.(type) {
	case *StochasticRel:
		lhs = s.LHS
		rel.stoch = s
	case *DeterministicRel:
		lhs = s.LHS
		rel.det = s
	default:
		c.errorf("unexpected statement in model body")
		return
	}

	rel.name = lhs.Name
	idx, ok := c.resolveIndex(lhs.Index, binding, lhs.Pos)
	if !ok {
		return
	}
	rel.index = idx
	c.rels = append(c.rels, rel)
}

// resolveIndex resolves an index expression to a concrete 1-based value
// (0 for scalar references).
func (c *compiler) resolveIndex(idx Expr, binding map[string]int, pos Position) (int, bool) {
	if idx == nil {
		return 0, true
	}
	switch e := idx.(type) {
	case *NumberLit:
		if e.Value != math.Trunc(e.Value) || e.Value < 1 {
			c.errorf("%s: index %g is not a positive integer", pos, e.Value)
			return 0, false
		}
		return int(e.Value), true
	case *Ref:
		if binding != nil {
			if v, ok := binding[e.Name]; ok {
				return v, true
			}
		}
		c.errorf("%s: index variable %q is not bound by an enclosing loop", pos, e.Name)
		return 0, false
	default:
		c.errorf("%s: unsupported index expression", pos)
		return 0, false
	}
}

// collectUsage walks every relation recording scalar vs indexed usage.
func (c *compiler) collectUsage() {
	for i := range c.rels {
		rel := &c.rels[i]
		u := c.use(rel.name)
		if rel.index == 0 {
			u.scalar = true
		} else {
			u.indexed = true
			if rel.index > u.maxIdx {
				u.maxIdx = rel.index
			}
		}
		if rel.stoch != nil {
			for _, arg := range rel.stoch.Dist.Args {
				c.collectExprUsage(arg, rel.binding)
			}
		} else {
			c.collectExprUsage(rel.det.Expr, rel.binding)
		}
	}
}

func (c *compiler) collectExprUsage(e Expr, binding map[string]int) {
	switch x := e.(type) {
	case *NumberLit:
	case *Ref:
		u := c.use(x.Name)
		if x.Index == nil {
			u.scalar = true
		} else {
			u.indexed = true
			if idx, ok := c.resolveIndex(x.Index, binding, x.Pos); ok && idx > u.maxIdx {
				u.maxIdx = idx
			}
		}
	case *UnaryExpr:
		c.collectExprUsage(x.Expr, binding)
	case *BinaryExpr:
		c.collectExprUsage(x.Left, binding)
		c.collectExprUsage(x.Right, binding)
	case *CallExpr:
		for _, a := range x.Args {
			c.collectExprUsage(a, binding)
		}
	}
}

// checkUsage rejects names referenced with inconsistent dimensionality.
func (c *compiler) checkUsage() {
	for name, u := range c.usage {
		if u.scalar && u.indexed {
			c.errorf("variable %q is referenced both with and without an index", name)
		}
	}
}

// allocateSlots assigns one value slot to every scalar node and fills data
// values into the template.
func (c *compiler) allocateSlots() {
	alloc := func(name string, idx int) int {
		elems, ok := c.slots[name]
		if !ok {
			elems = make(map[int]int)
			c.slots[name] = elems
		}
		slot, ok := elems[idx]
		if !ok {
			slot = c.nSlots
			c.nSlots++
			elems[idx] = slot
		}
		return slot
	}

	// Data first, so observed values land in the template.
	for name, col := range c.data.Arrays {
		for i := range col {
			alloc(name, i+1)
		}
	}
	for name := range c.data.Scalars {
		alloc(name, 0)
	}
	for _, rel := range c.rels {
		alloc(rel.name, rel.index)
	}

	c.template = make([]float64, c.nSlots)
	for name, col := range c.data.Arrays {
		for i, v := range col {
			c.template[c.slots[name][i+1]] = v
		}
	}
	for name, v := range c.data.Scalars {
		c.template[c.slots[name][0]] = v
	}
}

// lookupSlot resolves a reference to its slot, reporting configuration
// errors for unknown names and out-of-range indices.
func (c *compiler) lookupSlot(ref *Ref, binding map[string]int) (int, bool) {
	elems, ok := c.slots[ref.Name]
	if !ok {
		c.errorf("%s: undefined variable %q", ref.Pos, ref.Name)
		return 0, false
	}
	idx, ok := c.resolveIndex(ref.Index, binding, ref.Pos)
	if !ok {
		return 0, false
	}
	slot, ok := elems[idx]
	if !ok {
		c.errorf("%s: %s[%d] is not defined by the model or data", ref.Pos, ref.Name, idx)
		return 0, false
	}
	return slot, true
}

// build classifies nodes and produces the Compiled graph.
func (c *compiler) build() (*Compiled, error) {
	compiled := &Compiled{
		Name:         c.model.Name,
		template:     c.template,
		paramsByBase: make(map[string][]int),
		detByBase:    make(map[string][]int),
	}

	var detEntries []detEntry

	for i := range c.rels {
		rel := &c.rels[i]

		// Duplicate definition check.
		defs, ok := c.defined[rel.name]
		if !ok {
			defs = make(map[int]*flatRel)
			c.defined[rel.name] = defs
		}
		if _, dup := defs[rel.index]; dup {
			c.errorf("%s is defined more than once", rel.display())
			continue
		}
		defs[rel.index] = rel

		slot := c.slots[rel.name][rel.index]

		if rel.stoch != nil {
			dist, ok := LookupDist(rel.stoch.Dist.Name)
			if !ok {
				c.errorf("%s: unknown distribution %q", rel.stoch.Dist.Pos, rel.stoch.Dist.Name)
				continue
			}
			if len(rel.stoch.Dist.Args) != dist.Arity {
				c.errorf("%s: %s expects %d argument(s), got %d",
					rel.stoch.Dist.Pos, dist.Name, dist.Arity, len(rel.stoch.Dist.Args))
				continue
			}
			args := make([]cexpr, len(rel.stoch.Dist.Args))
			bad := false
			for j, a := range rel.stoch.Dist.Args {
				ce, ok := c.compileExpr(a, rel.binding)
				if !ok {
					bad = true
					continue
				}
				args[j] = ce
			}
			if bad {
				continue
			}

			_, observedArr := c.data.Arrays[rel.name]
			_, observedScalar := c.data.Scalars[rel.name]
			observed := observedArr || observedScalar
			if observedArr && rel.index > len(c.data.Arrays[rel.name]) {
				c.errorf("%s: observation index %d exceeds data length %d",
					rel.display(), rel.index, len(c.data.Arrays[rel.name]))
				continue
			}

			compiled.stoch = append(compiled.stoch, stochNode{
				name:     rel.display(),
				slot:     slot,
				dist:     dist,
				args:     args,
				observed: observed,
			})
			if !observed {
				compiled.params = append(compiled.params, Param{
					Name:  rel.display(),
					slot:  slot,
					stoch: len(compiled.stoch) - 1,
				})
				compiled.paramsByBase[rel.name] = append(compiled.paramsByBase[rel.name], len(compiled.params)-1)
			}
			continue
		}

		// Deterministic node.
		if _, inData := c.data.Arrays[rel.name]; inData {
			c.errorf("%s: cannot redefine data variable %q", rel.display(), rel.name)
			continue
		}
		if _, inData := c.data.Scalars[rel.name]; inData {
			c.errorf("%s: cannot redefine data variable %q", rel.display(), rel.name)
			continue
		}
		expr, ok := c.compileExpr(rel.det.Expr, rel.binding)
		if !ok {
			continue
		}
		deps := collectSlots(expr, nil)
		detEntries = append(detEntries, detEntry{
			node: detNode{name: rel.display(), slot: slot, expr: expr},
			base: rel.name,
			deps: deps,
		})
	}

	// Reject references to names that no relation or data entry defines.
	c.checkAllDefined()
	if len(c.errs) > 0 {
		return nil, c.fail()
	}

	// Order deterministic nodes so dependencies evaluate first.
	ordered, err := orderDeterministic(c.model.Name, detEntries)
	if err != nil {
		return nil, err
	}
	for _, e := range ordered {
		compiled.det = append(compiled.det, e.node)
		compiled.detByBase[e.base] = append(compiled.detByBase[e.base], len(compiled.det)-1)
		compiled.detByBase[e.node.name] = append(compiled.detByBase[e.node.name], len(compiled.det)-1)
	}

	// Initialize parameter slots to NaN so a read before sampling is loud.
	for _, p := range compiled.params {
		compiled.template[p.slot] = math.NaN()
	}

	return compiled, nil
}

// checkAllDefined verifies every allocated slot has a value source:
// data, a stochastic relation, or a deterministic relation.
func (c *compiler) checkAllDefined() {
	for name, elems := range c.slots {
		if _, ok := c.data.Arrays[name]; ok {
			continue
		}
		if _, ok := c.data.Scalars[name]; ok {
			continue
		}
		defs := c.defined[name]
		for idx := range elems {
			if defs == nil || defs[idx] == nil {
				if idx == 0 {
					c.errorf("variable %q has no definition and no data entry", name)
				} else {
					c.errorf("%s[%d] has no definition and no data entry", name, idx)
				}
			}
		}
	}
}

// detEntry pairs a deterministic node with its slot dependencies during
// compilation.
type detEntry struct {
	node detNode
	base string
	deps []int // slots the expression reads
}

// orderDeterministic topologically sorts deterministic nodes by their slot
// dependencies (Kahn's algorithm). A cycle is a configuration error.
func orderDeterministic(modelName string, entries []detEntry) ([]detEntry, error) {
	bySlot := make(map[int]int, len(entries)) // det slot -> entry index
	for i, e := range entries {
		bySlot[e.node.slot] = i
	}

	indegree := make([]int, len(entries))
	children := make(map[int][]int)
	for i, e := range entries {
		for _, dep := range e.deps {
			if j, ok := bySlot[dep]; ok {
				children[j] = append(children[j], i)
				indegree[i]++
			}
		}
	}

	var queue []int
	for i := range entries {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	var order []detEntry
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, entries[i])
		for _, child := range children[i] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != len(entries) {
		var cyclic []string
		for i, e := range entries {
			if indegree[i] > 0 {
				cyclic = append(cyclic, e.node.name)
			}
		}
		return nil, &CompileError{Model: modelName, Msg: fmt.Sprintf("deterministic nodes form a cycle: %v", cyclic)}
	}
	return order, nil
}
