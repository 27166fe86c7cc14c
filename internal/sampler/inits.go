package sampler

// inits.go - per-chain initial values: drawn from the priors by default, or
// loaded from a YAML file holding one mapping per chain. Deterministic nodes
// must never receive an entry; that is a model-authoring error.

import (
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/calder-labs/kiln/internal/model"
)

// FromPriors draws one initial-value set per chain from the parameters'
// prior distributions. Each chain uses an independent stream derived from
// the base seed, so two chains never silently share a starting point.
func FromPriors(m *model.Compiled, chains int, seed int64) ([]Inits, error) {
	if chains <= 0 {
		return nil, fmt.Errorf("chain count must be positive, got %d", chains)
	}
	params := m.Params()
	inits := make([]Inits, chains)
	for chain := 0; chain < chains; chain++ {
		// Offset the stream selector so init draws never reuse the
		// chains' sampling streams.
		src := rand.NewPCG(uint64(seed), uint64(chains+chain)+1)
		values, err := m.DrawPriorValues(src)
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", chain+1, err)
		}
		in := make(Inits, len(params))
		for i, p := range params {
			in[p] = values[i]
		}
		inits[chain] = in
	}
	return inits, nil
}

// LoadInitsFile reads per-chain initial values from a YAML file. The file
// holds a list with one mapping per chain; each entry assigns a scalar to a
// scalar parameter or a list to an indexed parameter:
//
//	- alpha: 0
//	  beta: 0
//	  tau: 1
//	- alpha: 10
//	  beta: -5
//	  tau: 0.1
func LoadInitsFile(m *model.Compiled, path string) ([]Inits, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inits file: %w", err)
	}

	var raw []map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse inits file %s: %w", path, err)
	}

	inits := make([]Inits, len(raw))
	for chain, entry := range raw {
		in, err := resolveInits(m, entry)
		if err != nil {
			return nil, fmt.Errorf("%s: chain %d: %w", path, chain+1, err)
		}
		inits[chain] = in
	}
	return inits, nil
}

// resolveInits expands a raw mapping to per-parameter values. A base name
// with a list value assigns one element per indexed parameter, in index
// order.
func resolveInits(m *model.Compiled, raw map[string]any) (Inits, error) {
	params := m.Params()
	byBase := make(map[string][]string)
	for _, p := range params {
		base := p
		for i := 0; i < len(p); i++ {
			if p[i] == '[' {
				base = p[:i]
				break
			}
		}
		byBase[base] = append(byBase[base], p)
	}

	in := make(Inits)
	for name, value := range raw {
		names, ok := byBase[name]
		if !ok {
			return nil, fmt.Errorf("%q is not a sampled parameter; deterministic nodes and data must not receive initial values", name)
		}
		switch v := value.(type) {
		case []any:
			if len(v) != len(names) {
				return nil, fmt.Errorf("%s has %d elements, got %d initial values", name, len(names), len(v))
			}
			for i, elem := range v {
				f, err := toFloat(elem)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				in[names[i]] = f
			}
		default:
			if len(names) > 1 {
				return nil, fmt.Errorf("%s is indexed with %d elements; supply a list", name, len(names))
			}
			f, err := toFloat(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			in[names[0]] = f
		}
	}
	return in, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
