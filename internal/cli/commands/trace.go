package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/calder-labs/kiln/internal/cli/output"
	"github.com/calder-labs/kiln/internal/plot"
	"github.com/spf13/cobra"
)

// sanitizeNode makes a node name safe for filenames (theta[2] -> theta_2).
func sanitizeNode(name string) string {
	repl := strings.NewReplacer("[", "_", "]", "", ",", "_")
	return repl.Replace(name)
}

// NewTraceCommand creates the trace command.
func NewTraceCommand() *cobra.Command {
	var nodes []string

	cmd := &cobra.Command{
		Use:   "trace <model>",
		Short: "Write trace and density plots for the latest run",
		Long: `Render one trace plot (draw value against retained position, one line per
chain) and one posterior density histogram per monitored node, as PNG files
under the plots directory.`,
		Example: `  # Plot every monitored node
  kiln trace linreg

  # Plot selected nodes only
  kiln trace linreg --node alpha --node beta`,
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

			selected := nodes
			if len(selected) == 0 {
				selected = bundle.Params()
			}

			dir := filepath.Join(cmdCtx.Cfg.PlotsPath(), modelName)
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create plots directory: %w", err)
			}

			flat := bundle.Flatten()
			written := make([]string, 0, 2*len(selected))
			for _, node := range selected {
				chains, err := bundle.ChainView(node)
				if err != nil {
					return fmt.Errorf("run %s: %w", run.ID, err)
				}

				base := sanitizeNode(node)
				tracePath := filepath.Join(dir, base+"_trace.png")
				if err := plot.Trace(node, chains, tracePath); err != nil {
					return fmt.Errorf("failed to write trace plot for %s: %w", node, err)
				}
				written = append(written, tracePath)

				values, err := flat.Column(node)
				if err != nil {
					return fmt.Errorf("run %s: %w", run.ID, err)
				}
				densPath := filepath.Join(dir, base+"_density.png")
				if err := plot.Density(node, values, densPath); err != nil {
					return fmt.Errorf("failed to write density plot for %s: %w", node, err)
				}
				written = append(written, densPath)
			}

			r := cmdCtx.Renderer
			if r.Mode() == output.ModeJSON {
				return r.JSON(map[string]any{"run_id": run.ID, "plots": written})
			}
			for _, path := range written {
				r.Println("wrote", path)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&nodes, "node", nil, "Node to plot (repeatable; default: all monitored nodes)")

	return cmd
}
