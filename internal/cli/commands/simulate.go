package commands

import (
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/calder-labs/kiln/internal/cli/output"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat/distuv"
)

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand() *cobra.Command {
	var (
		name      string
		n         int
		intercept float64
		slope     float64
		sd        float64
		seed      uint64
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic linear-regression dataset",
		Long: `Write a synthetic dataset to the data directory: predictor x drawn
uniformly on [0, 10) and response y = intercept + slope*x + noise, with
Gaussian noise of the given standard deviation. The resulting CSV pairs
with the linreg example model scaffolded by kiln init.`,
		Example: `  # Defaults: 100 rows, intercept 15, slope 3, noise sd 4
  kiln simulate

  # A larger, noisier dataset under a different name
  kiln simulate --name wide --n 1000 --sd 8`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)

			if n <= 0 {
				return fmt.Errorf("row count must be positive, got %d", n)
			}
			if sd <= 0 {
				return fmt.Errorf("noise standard deviation must be positive, got %g", sd)
			}

			src := rand.NewPCG(seed, 0)
			rng := rand.New(src)
			noise := distuv.Normal{Mu: 0, Sigma: sd, Src: src}

			dataDir := cmdCtx.Cfg.DataPath()
			if err := os.MkdirAll(dataDir, 0750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}

			path := filepath.Join(dataDir, name+".csv")
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create dataset: %w", err)
			}
			defer func() { _ = f.Close() }()

			w := csv.NewWriter(f)
			if err := w.Write([]string{"x", "y"}); err != nil {
				return fmt.Errorf("failed to write dataset: %w", err)
			}
			for i := 0; i < n; i++ {
				x := rng.Float64() * 10
				y := intercept + slope*x + noise.Rand()
				record := []string{
					strconv.FormatFloat(x, 'g', -1, 64),
					strconv.FormatFloat(y, 'g', -1, 64),
				}
				if err := w.Write(record); err != nil {
					return fmt.Errorf("failed to write dataset: %w", err)
				}
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return fmt.Errorf("failed to write dataset: %w", err)
			}

			cmdCtx.Logger.Debug("simulated dataset",
				"path", path, "rows", n,
				"intercept", intercept, "slope", slope,
				"noise_sd", sd, "noise_precision", 1/(sd*sd))

			r := cmdCtx.Renderer
			if r.Mode() == output.ModeJSON {
				return r.JSON(map[string]any{
					"path":      path,
					"rows":      n,
					"intercept": intercept,
					"slope":     slope,
					"noise_sd":  sd,
				})
			}
			r.Printf("Wrote %d rows to %s (y = %g + %g*x + N(0, %g^2))\n", n, path, intercept, slope, sd)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "linreg", "Dataset name (file written as <name>.csv)")
	cmd.Flags().IntVar(&n, "n", 100, "Number of rows")
	cmd.Flags().Float64Var(&intercept, "intercept", 15, "True intercept")
	cmd.Flags().Float64Var(&slope, "slope", 3, "True slope")
	cmd.Flags().Float64Var(&sd, "sd", 4, "Noise standard deviation")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "Pseudorandom seed")

	return cmd
}
