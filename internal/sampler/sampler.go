// Package sampler runs MCMC over a compiled model. The Engine interface is
// the narrow boundary the harness submits work through; Metropolis is the
// built-in engine. Any engine receives (model, config, per-chain initial
// values) and returns an immutable draw bundle or fails outright.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/calder-labs/kiln/internal/draws"
	"github.com/calder-labs/kiln/internal/model"
)

// Config is the run configuration for one sampler invocation.
type Config struct {
	// Iterations is the total sampling steps per chain, burn-in included.
	Iterations int
	// BurnIn is the leading step count discarded before retention begins.
	BurnIn int
	// Chains is the number of independent chains. Must equal the length of
	// the initial-value sequence.
	Chains int
	// Thin retains every Thin-th post-burn-in step.
	Thin int
	// Seed is the base pseudorandom seed; chain c derives its stream from
	// (Seed, c).
	Seed int64
	// Monitors names the parameters to retain. Empty means every parameter.
	Monitors []string
}

// Retained returns the retained draw count per chain.
func (c Config) Retained() int {
	return (c.Iterations - c.BurnIn) / c.Thin
}

// Validate checks the run configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("iterations must be positive, got %d", c.Iterations))
	}
	if c.BurnIn < 0 {
		errs = append(errs, fmt.Errorf("burn-in must not be negative, got %d", c.BurnIn))
	}
	if c.BurnIn >= c.Iterations {
		errs = append(errs, fmt.Errorf("burn-in %d must be below iterations %d", c.BurnIn, c.Iterations))
	}
	if c.Chains <= 0 {
		errs = append(errs, fmt.Errorf("chain count must be positive, got %d", c.Chains))
	}
	if c.Thin < 1 {
		errs = append(errs, fmt.Errorf("thinning must be at least 1, got %d", c.Thin))
	}
	return errors.Join(errs...)
}

// Inits assigns one starting value per parameter for one chain, keyed by
// parameter name (elements of indexed parameters use their element name,
// e.g. theta[2]).
type Inits map[string]float64

// Engine is the sampling engine boundary. Implementations must return a
// bundle covering exactly the resolved monitors across all chains, or an
// error with no partial bundle.
type Engine interface {
	Sample(ctx context.Context, m *model.Compiled, cfg Config, inits []Inits) (*draws.Bundle, error)
}

// ErrChainMismatch reports an initial-value sequence whose length disagrees
// with the configured chain count.
var ErrChainMismatch = errors.New("initial-value sequence length does not match chain count")

// SupportError reports an initial value outside its parameter's domain.
type SupportError struct {
	Chain int
	Param string
	Value float64
}

func (e *SupportError) Error() string {
	return fmt.Sprintf("chain %d: initial value %g for %s is outside the parameter's support",
		e.Chain+1, e.Value, e.Param)
}

// validateInits checks the initial-value sequence against the model and
// configuration before any sampling work starts.
func validateInits(m *model.Compiled, cfg Config, inits []Inits) error {
	if len(inits) != cfg.Chains {
		return fmt.Errorf("%w: %d chains configured, %d initial-value sets supplied",
			ErrChainMismatch, cfg.Chains, len(inits))
	}

	params := m.Params()
	for chain, in := range inits {
		for name := range in {
			found := false
			for _, p := range params {
				if p == name {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("chain %d: %q is not a sampled parameter; deterministic nodes and data must not receive initial values", chain+1, name)
			}
		}
		vec := make([]float64, len(params))
		for i, p := range params {
			v, ok := in[p]
			if !ok {
				return fmt.Errorf("chain %d: missing initial value for parameter %s", chain+1, p)
			}
			vec[i] = v
		}

		ev := m.NewEval()
		for i, p := range params {
			if lp := ev.PriorLogProbAt(i, vec); math.IsInf(lp, -1) {
				return &SupportError{Chain: chain, Param: p, Value: vec[i]}
			}
		}
	}
	return nil
}
