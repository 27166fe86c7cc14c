package commands

import (
	"fmt"
	"strings"

	"github.com/calder-labs/kiln/internal/cli/output"
	"github.com/spf13/cobra"
)

// modelInfo is the JSON shape for one listed model.
type modelInfo struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters"`
	DataRows   int      `json:"data_rows"`
	LastRun    string   `json:"last_run,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List models and their parameters",
		Long: `List every model file in the models directory with its free parameters,
observation count, and most recent run status.`,
		Example: `  # List all models
  kiln list

  # List models as JSON
  kiln list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}
}

func runList(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	names, err := cmdCtx.Engine.ListModels()
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	infos := make([]modelInfo, 0, len(names))
	for _, name := range names {
		info := modelInfo{Name: name}
		compiled, ds, loadErr := cmdCtx.Engine.LoadModel(name)
		if loadErr != nil {
			info.Error = loadErr.Error()
		} else {
			info.Parameters = compiled.Params()
			if ds != nil {
				info.DataRows = ds.N
			}
		}
		if run, _, runErr := cmdCtx.Engine.LatestBundle(name); runErr == nil && run != nil {
			info.LastRun = string(run.Status)
		}
		infos = append(infos, info)
	}

	r := cmdCtx.Renderer
	if r.Mode() == output.ModeJSON {
		return r.JSON(infos)
	}

	if len(infos) == 0 {
		r.Println("No models found in", cmdCtx.Cfg.ModelsPath())
		return nil
	}

	t := r.NewTable()
	t.AppendHeader(tableRow("MODEL", "PARAMETERS", "ROWS", "LAST RUN"))
	for _, info := range infos {
		if info.Error != "" {
			t.AppendRow(tableRow(info.Name, "error: "+info.Error, "", ""))
			continue
		}
		last := info.LastRun
		if last == "" {
			last = "-"
		}
		t.AppendRow(tableRow(info.Name, strings.Join(info.Parameters, ", "), info.DataRows, last))
	}
	t.Render()
	return nil
}
