package commands

import (
	"fmt"

	"github.com/calder-labs/kiln/internal/cli/output"
	"github.com/calder-labs/kiln/internal/diag"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

// diagRow is the JSON shape for one node's convergence diagnostics.
type diagRow struct {
	Name       string  `json:"name"`
	RHat       float64 `json:"rhat"`
	ESS        float64 `json:"ess"`
	Acceptance float64 `json:"acceptance,omitempty"`
	Converged  bool    `json:"converged"`
}

// NewDiagCommand creates the diag command.
func NewDiagCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diag <model>",
		Short: "Show convergence diagnostics for the latest run",
		Long: `Report the Gelman-Rubin statistic, effective sample size, and mean
proposal acceptance rate per monitored node. Nodes whose Gelman-Rubin
statistic exceeds ` + fmt.Sprintf("%.1f", diag.RHatThreshold) + ` are flagged as not converged.`,
		Example: `  kiln diag linreg
  kiln diag linreg --output json`,
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
				return fmt.Errorf("failed to compute diagnostics for run %s: %w", run.ID, err)
			}

			rows := make([]diagRow, 0, len(summaries))
			var suspect []string
			for _, s := range summaries {
				row := diagRow{
					Name:      s.Name,
					RHat:      s.RHat,
					ESS:       s.ESS,
					Converged: s.Converged(),
				}
				if rates := bundle.Acceptance(s.Name); len(rates) > 0 {
					row.Acceptance = stat.Mean(rates, nil)
				}
				if !row.Converged {
					suspect = append(suspect, s.Name)
				}
				rows = append(rows, row)
			}

			r := cmdCtx.Renderer
			if r.Mode() == output.ModeJSON {
				return r.JSON(rows)
			}

			r.Header(fmt.Sprintf("Diagnostics: %s (run %s, %d chains x %d draws)",
				modelName, run.ID, bundle.Chains(), bundle.PerChain()))
			t := r.NewTable()
			t.AppendHeader(tableRow("NODE", "RHAT", "ESS", "ACCEPT", "CONVERGED"))
			for _, row := range rows {
				converged := "yes"
				if !row.Converged {
					converged = "NO"
				}
				t.AppendRow(tableRow(
					row.Name,
					fmt.Sprintf("%.3f", row.RHat),
					fmt.Sprintf("%.0f", row.ESS),
					fmt.Sprintf("%.2f", row.Acceptance),
					converged,
				))
			}
			t.Render()

			if len(suspect) > 0 {
				r.Println()
				r.Printf("Warning: %d node(s) exceed the Gelman-Rubin threshold %.1f: %v\n",
					len(suspect), diag.RHatThreshold, suspect)
				r.Println("Consider more iterations or a longer burn-in.")
			}
			return nil
		},
	}
}
