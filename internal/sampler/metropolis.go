package sampler

// metropolis.go - the built-in engine: single-site random-walk Metropolis
// with per-parameter proposal scales adapted during burn-in. Every proposal
// re-evaluates the full joint log density; a proposal outside any node's
// support evaluates to -Inf and is rejected, never clamped.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/calder-labs/kiln/internal/draws"
	"github.com/calder-labs/kiln/internal/model"
)

const (
	// adaptBatch is the burn-in window over which acceptance is measured
	// before nudging a proposal scale.
	adaptBatch = 50
	// targetAccept is the acceptance rate the adaptation steers toward.
	targetAccept = 0.44
	// adaptFactor is the multiplicative scale adjustment per batch.
	adaptFactor = 1.1
)

// Metropolis is an adaptive single-site random-walk Metropolis engine.
type Metropolis struct {
	logger *slog.Logger
}

// NewMetropolis creates the built-in engine. A nil logger discards output.
func NewMetropolis(logger *slog.Logger) *Metropolis {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Metropolis{logger: logger}
}

// chainResult holds one chain's retained values and acceptance counts.
type chainResult struct {
	retained [][]float64 // monitor index -> retained values
	accepted []int       // parameter index -> accepted proposals post burn-in
	postN    int         // post-burn-in proposals per parameter
}

// Sample runs the configured chains and returns the retained draw bundle.
// All validation failures (bad config, chain-count mismatch, missing or
// out-of-support initial values, unknown monitors) abort before any chain
// starts; no partial bundle is ever produced. An initial state whose joint
// log density is -Inf, as with an observed value outside the likelihood's
// support, fails the run before any draw is retained.
func (s *Metropolis) Sample(ctx context.Context, m *model.Compiled, cfg Config, inits []Inits) (*draws.Bundle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateInits(m, cfg, inits); err != nil {
		return nil, err
	}
	monitors, err := m.ResolveMonitors(cfg.Monitors)
	if err != nil {
		return nil, err
	}

	params := m.Params()
	retainedPerChain := cfg.Retained()

	s.logger.Info("starting sampler",
		"model", m.Name,
		"parameters", len(params),
		"chains", cfg.Chains,
		"iterations", cfg.Iterations,
		"burnin", cfg.BurnIn,
		"thin", cfg.Thin,
		"retained_per_chain", retainedPerChain)

	results := make([]*chainResult, cfg.Chains)
	g, ctx := errgroup.WithContext(ctx)
	for chain := 0; chain < cfg.Chains; chain++ {
		g.Go(func() error {
			res, err := s.runChain(ctx, m, cfg, monitors, inits[chain], chain)
			if err != nil {
				return err
			}
			results[chain] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, len(monitors))
	for i, mon := range monitors {
		names[i] = mon.Name
	}
	bundle := draws.NewBundle(names, cfg.Chains, retainedPerChain)
	for chain, res := range results {
		for i, mon := range monitors {
			for _, v := range res.retained[i] {
				bundle.Append(mon.Name, chain, v)
			}
		}
	}
	for i, p := range params {
		rates := make([]float64, cfg.Chains)
		for chain, res := range results {
			rates[chain] = float64(res.accepted[i]) / float64(res.postN)
		}
		bundle.SetAcceptance(p, rates)
	}

	s.logger.Info("sampler finished", "model", m.Name, "retained_total", cfg.Chains*retainedPerChain)
	return bundle, nil
}

// runChain executes one chain. Each chain owns an independent PCG stream
// derived from the base seed and the chain index.
func (s *Metropolis) runChain(ctx context.Context, m *model.Compiled, cfg Config, monitors []model.Monitor, in Inits, chain int) (*chainResult, error) {
	params := m.Params()
	np := len(params)
	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(chain)+1))
	ev := m.NewEval()

	current := make([]float64, np)
	for i, p := range params {
		current[i] = in[p]
	}
	logp := ev.LogDensity(current)
	if math.IsInf(logp, -1) {
		return nil, fmt.Errorf("chain %d: initial state has zero joint density; check observed data against the likelihood's support", chain+1)
	}

	scales := make([]float64, np)
	for i := range scales {
		scales[i] = 1.0
	}
	batchAccepted := make([]int, np)

	res := &chainResult{
		retained: make([][]float64, len(monitors)),
		accepted: make([]int, np),
	}
	retainedPerChain := cfg.Retained()
	for i := range res.retained {
		res.retained[i] = make([]float64, 0, retainedPerChain)
	}
	monitorBuf := make([]float64, len(monitors))
	retainedCount := 0

	for it := 1; it <= cfg.Iterations; it++ {
		if it%256 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		burnin := it <= cfg.BurnIn
		for j := 0; j < np; j++ {
			old := current[j]
			current[j] = old + rng.NormFloat64()*scales[j]
			newLogp := ev.LogDensity(current)

			accept := newLogp >= logp || math.Exp(newLogp-logp) > rng.Float64()
			if accept && !math.IsInf(newLogp, -1) {
				logp = newLogp
				if burnin {
					batchAccepted[j]++
				} else {
					res.accepted[j]++
				}
			} else {
				current[j] = old
			}
		}

		// Adapt proposal scales during burn-in, frozen afterwards.
		if burnin && it%adaptBatch == 0 {
			for j := 0; j < np; j++ {
				rate := float64(batchAccepted[j]) / adaptBatch
				if rate > targetAccept {
					scales[j] *= adaptFactor
				} else {
					scales[j] /= adaptFactor
				}
				batchAccepted[j] = 0
			}
		}

		if !burnin && retainedCount < retainedPerChain && (it-cfg.BurnIn-1)%cfg.Thin == 0 {
			ev.MonitorValues(monitors, current, monitorBuf)
			for i, v := range monitorBuf {
				res.retained[i] = append(res.retained[i], v)
			}
			retainedCount++
		}
	}

	res.postN = cfg.Iterations - cfg.BurnIn
	s.logger.Debug("chain finished", "model", m.Name, "chain", chain+1, "retained", retainedCount)
	return res, nil
}
