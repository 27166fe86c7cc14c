package commands

import (
	"fmt"
	"time"

	"github.com/calder-labs/kiln/internal/cli/output"
	"github.com/calder-labs/kiln/internal/sampler"
	"github.com/spf13/cobra"
)

// runResult is the JSON shape for a completed run.
type runResult struct {
	RunID      string   `json:"run_id"`
	Model      string   `json:"model"`
	Iterations int      `json:"iterations"`
	BurnIn     int      `json:"burnin"`
	Chains     int      `json:"chains"`
	Thin       int      `json:"thin"`
	Seed       int64    `json:"seed"`
	Retained   int      `json:"retained_per_chain"`
	FlatRows   int      `json:"flat_rows"`
	Monitors   []string `json:"monitors"`
	Duration   string   `json:"duration"`
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var (
		iterations int
		burnIn     int
		chains     int
		thin       int
		seed       int64
		monitors   []string
	)

	cmd := &cobra.Command{
		Use:   "run <model>",
		Short: "Run the sampler for a model",
		Long: `Compile a model, assemble its data, initialize each chain, and run the
sampler. Draws are persisted to the run store for later inspection.

Initial values come from the model's inits file when one exists (one YAML
document per chain), otherwise each chain draws its starting point from the
priors with a chain-specific stream.`,
		Example: `  # Run with configured defaults
  kiln run linreg

  # Override the sampler configuration
  kiln run linreg --iterations 20000 --burnin 5000 --chains 3 --thin 3

  # Retain only selected nodes
  kiln run linreg --monitor alpha --monitor beta`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := cmdCtx.Cfg
			runCfg := sampler.Config{
				Iterations: cfg.Sampling.Iterations,
				BurnIn:     cfg.Sampling.BurnIn,
				Chains:     cfg.Sampling.Chains,
				Thin:       cfg.Sampling.Thin,
				Seed:       cfg.Sampling.Seed,
			}
			if cmd.Flags().Changed("iterations") {
				runCfg.Iterations = iterations
			}
			if cmd.Flags().Changed("burnin") {
				runCfg.BurnIn = burnIn
			}
			if cmd.Flags().Changed("chains") {
				runCfg.Chains = chains
			}
			if cmd.Flags().Changed("thin") {
				runCfg.Thin = thin
			}
			if cmd.Flags().Changed("seed") {
				runCfg.Seed = seed
			}

			modelName := args[0]
			runCfg.Monitors = monitors
			if len(runCfg.Monitors) == 0 {
				runCfg.Monitors = cfg.Monitor[modelName]
			}

			start := time.Now()
			run, bundle, err := cmdCtx.Engine.Run(cmd.Context(), modelName, runCfg)
			if err != nil {
				return fmt.Errorf("run failed for model %s: %w", modelName, err)
			}
			elapsed := time.Since(start)

			result := runResult{
				RunID:      run.ID,
				Model:      run.Model,
				Iterations: run.Iterations,
				BurnIn:     run.BurnIn,
				Chains:     run.Chains,
				Thin:       run.Thin,
				Seed:       run.Seed,
				Retained:   bundle.PerChain(),
				FlatRows:   bundle.Chains() * bundle.PerChain(),
				Monitors:   bundle.Params(),
				Duration:   elapsed.Round(time.Millisecond).String(),
			}

			r := cmdCtx.Renderer
			if r.Mode() == output.ModeJSON {
				return r.JSON(result)
			}

			r.Header(fmt.Sprintf("Run %s", result.RunID))
			r.KeyValue("Model", result.Model)
			r.KeyValue("Iterations", fmt.Sprintf("%d (burn-in %d, thin %d)", result.Iterations, result.BurnIn, result.Thin))
			r.KeyValue("Chains", result.Chains)
			r.KeyValue("Retained", fmt.Sprintf("%d per chain (%d total rows)", result.Retained, result.FlatRows))
			r.KeyValue("Duration", result.Duration)
			r.Println()
			r.Println("Use `kiln summary " + modelName + "` for posterior summaries.")
			return nil
		},
	}

	cmd.Flags().IntVar(&iterations, "iterations", 0, "Total sampling steps per chain")
	cmd.Flags().IntVar(&burnIn, "burnin", 0, "Leading steps discarded per chain")
	cmd.Flags().IntVar(&chains, "chains", 0, "Number of independent chains")
	cmd.Flags().IntVar(&thin, "thin", 0, "Retain every n-th post-burn-in step")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Base pseudorandom seed")
	cmd.Flags().StringArrayVar(&monitors, "monitor", nil, "Node to retain (repeatable; default: all parameters)")

	return cmd
}
