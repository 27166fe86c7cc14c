// Package draws holds the retained output of one sampling run and the
// reshapes consumed by diagnostics and summaries: a chain-indexed view per
// parameter and a flat posterior table with chain identity discarded.
package draws

import "fmt"

// Bundle is the immutable result of one sampler invocation: for every
// retained parameter, one ordered sequence of post-burn-in, thinned values
// per chain.
type Bundle struct {
	params   []string
	chains   int
	perChain int

	// parameter -> chain -> retained values, in sampling order
	values map[string][][]float64

	// parameter -> per-chain proposal acceptance rate (empty for
	// deterministic nodes)
	acceptance map[string][]float64
}

// NewBundle creates an empty bundle with capacity for the given shape.
func NewBundle(params []string, chains, perChain int) *Bundle {
	b := &Bundle{
		params:     append([]string(nil), params...),
		chains:     chains,
		perChain:   perChain,
		values:     make(map[string][][]float64, len(params)),
		acceptance: make(map[string][]float64),
	}
	for _, p := range params {
		cs := make([][]float64, chains)
		for i := range cs {
			cs[i] = make([]float64, 0, perChain)
		}
		b.values[p] = cs
	}
	return b
}

// Params returns the retained parameter names in monitor order.
func (b *Bundle) Params() []string {
	return append([]string(nil), b.params...)
}

// Chains returns the chain count.
func (b *Bundle) Chains() int { return b.chains }

// PerChain returns the retained draw count per chain.
func (b *Bundle) PerChain() int { return b.perChain }

// Append records one retained value for a parameter on a chain. Order of
// calls per (parameter, chain) defines the retained sequence order.
func (b *Bundle) Append(param string, chain int, v float64) {
	b.values[param][chain] = append(b.values[param][chain], v)
}

// SetAcceptance records per-chain acceptance rates for a parameter.
func (b *Bundle) SetAcceptance(param string, rates []float64) {
	b.acceptance[param] = append([]float64(nil), rates...)
}

// Acceptance returns per-chain acceptance rates for a parameter, or nil.
func (b *Bundle) Acceptance(param string) []float64 {
	return b.acceptance[param]
}

// ChainView returns the chain-indexed sequences for one parameter, the
// input shape for trace plots and between/within-chain diagnostics. The
// returned slices alias the bundle and must not be mutated.
func (b *Bundle) ChainView(param string) ([][]float64, error) {
	cs, ok := b.values[param]
	if !ok {
		return nil, fmt.Errorf("parameter %q is not in the bundle", param)
	}
	return cs, nil
}

// Table is the flat posterior table: one row per retained draw across all
// chains, one column per retained parameter. Row order interleaves chains
// and is not semantically meaningful.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Column returns all values of one column.
func (t *Table) Column(name string) ([]float64, error) {
	for i, c := range t.Columns {
		if c == name {
			out := make([]float64, len(t.Rows))
			for j, row := range t.Rows {
				out[j] = row[i]
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("column %q is not in the posterior table", name)
}

// Flatten collapses the bundle into the flat posterior table, discarding
// chain identity. The row count is Chains() * PerChain().
func (b *Bundle) Flatten() *Table {
	t := &Table{Columns: append([]string(nil), b.params...)}
	for chain := 0; chain < b.chains; chain++ {
		for i := 0; i < b.perChain; i++ {
			row := make([]float64, len(b.params))
			for j, p := range b.params {
				row[j] = b.values[p][chain][i]
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}
