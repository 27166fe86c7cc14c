package commands

import (
	"fmt"

	"github.com/calder-labs/kiln/internal/cli/output"
	"github.com/calder-labs/kiln/internal/diag"
	"github.com/spf13/cobra"
)

// NewSummaryCommand creates the summary command.
func NewSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <model>",
		Short: "Show posterior summaries for the latest run",
		Long: `Summarize the latest completed run of a model: posterior mean, standard
deviation, Monte Carlo standard error, quantiles, effective sample size,
and the Gelman-Rubin statistic per monitored node.`,
		Example: `  kiln summary linreg
  kiln summary linreg --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			modelName := args[0]
			run, bundle, err := cmdCtx.Engine.LatestBundle(modelName)
			if err != nil {
				return fmt.Errorf("no completed run for model %s: %w", modelName, err)
			}

			summaries, err := diag.Summarize(bundle)
			if err != nil {
				return fmt.Errorf("failed to summarize run %s: %w", run.ID, err)
			}

			r := cmdCtx.Renderer
			if r.Mode() == output.ModeJSON {
				return r.JSON(summaries)
			}

			r.Header(fmt.Sprintf("Posterior summary: %s (run %s)", modelName, run.ID))
			t := r.NewTable()
			t.AppendHeader(tableRow("NODE", "MEAN", "SD", "MCSE", "2.5%", "MEDIAN", "97.5%", "ESS", "RHAT"))
			for _, s := range summaries {
				t.AppendRow(tableRow(
					s.Name,
					fmtFloat(s.Mean),
					fmtFloat(s.SD),
					fmtFloat(s.MCSE),
					fmtFloat(s.Q2_5),
					fmtFloat(s.Median),
					fmtFloat(s.Q97_5),
					fmt.Sprintf("%.0f", s.ESS),
					fmt.Sprintf("%.3f", s.RHat),
				))
			}
			t.Render()
			return nil
		},
	}
}
