package engine

// run.go - run orchestration: one sampler invocation per call, recorded in
// the store. Failures mark the run failed and carry no partial bundle.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/calder-labs/kiln/internal/draws"
	"github.com/calder-labs/kiln/internal/model"
	"github.com/calder-labs/kiln/internal/sampler"
	"github.com/calder-labs/kiln/internal/state"
)

// Run compiles the named model, assembles initial values, invokes the
// sampler, and persists the result. The returned run reflects the final
// status; the bundle is nil on failure.
func (e *Engine) Run(ctx context.Context, modelName string, cfg sampler.Config) (*state.Run, *draws.Bundle, error) {
	e.logger.Info("starting run", "model", modelName,
		"iterations", cfg.Iterations, "burnin", cfg.BurnIn,
		"chains", cfg.Chains, "thin", cfg.Thin, "seed", cfg.Seed)

	compiled, _, err := e.LoadModel(modelName)
	if err != nil {
		return nil, nil, err
	}
	if compiled.NumParams() == 0 {
		return nil, nil, fmt.Errorf("model %s has no unobserved stochastic parameters to sample", modelName)
	}

	inits, err := e.loadInits(compiled, modelName, cfg)
	if err != nil {
		return nil, nil, err
	}

	run := &state.Run{
		ID:         state.NewRunID(),
		Model:      modelName,
		Iterations: cfg.Iterations,
		BurnIn:     cfg.BurnIn,
		Chains:     cfg.Chains,
		Thin:       cfg.Thin,
		Seed:       cfg.Seed,
	}
	if err := e.store.CreateRun(run); err != nil {
		return nil, nil, err
	}

	bundle, err := e.smplr.Sample(ctx, compiled, cfg, inits)
	if err != nil {
		e.logger.Error("run failed", "run_id", run.ID, "model", modelName, "error", err.Error())
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, err.Error())
		run, _ = e.store.GetRun(run.ID)
		return run, nil, err
	}

	if err := e.store.SaveBundle(run.ID, bundle); err != nil {
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, err.Error())
		run, _ = e.store.GetRun(run.ID)
		return run, nil, err
	}
	if err := e.store.CompleteRun(run.ID, state.RunStatusCompleted, ""); err != nil {
		return nil, nil, err
	}

	e.logger.Info("run completed", "run_id", run.ID, "model", modelName,
		"retained_rows", bundle.Chains()*bundle.PerChain())
	run, err = e.store.GetRun(run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, bundle, nil
}

// loadInits returns the per-chain initial values: an inits YAML file when
// one exists for the model, prior draws otherwise.
func (e *Engine) loadInits(compiled *model.Compiled, modelName string, cfg sampler.Config) ([]sampler.Inits, error) {
	if e.initsDir != "" {
		path := filepath.Join(e.initsDir, modelName+".yaml")
		if _, err := os.Stat(path); err == nil {
			e.logger.Debug("loading initial values from file", "model", modelName, "path", path)
			return sampler.LoadInitsFile(compiled, path)
		}
	}
	return sampler.FromPriors(compiled, cfg.Chains, cfg.Seed)
}

// LatestBundle loads the most recent completed run and its draws for a
// model, feeding the summary, diagnostics, and plot commands.
func (e *Engine) LatestBundle(modelName string) (*state.Run, *draws.Bundle, error) {
	run, err := e.store.LatestRun(modelName)
	if err != nil {
		return nil, nil, err
	}
	bundle, err := e.store.LoadBundle(run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, bundle, nil
}
