package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new kiln project",
		Long: `Initialize a new kiln project with the default directory structure and
configuration.

This creates:
  - kiln.yaml configuration file
  - models/ directory with a linear-regression example (linreg) and a
    Poisson count-model exercise (seedbank)
  - data/ directory for observation CSVs
  - inits/ directory for optional fixed initial values`,
		Example: `  # Initialize in the current directory
  kiln init

  # Initialize in a new directory
  kiln init my-analysis

  # Overwrite existing scaffold files
  kiln init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			return runInit(cmdCtx, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func runInit(cmdCtx *CommandContext, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, "kiln.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("kiln.yaml already exists, use --force to overwrite")
	}

	if err := copyTemplate("project", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	// Empty directories do not survive embedding.
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	r := cmdCtx.Renderer
	files, _ := listTemplateFiles("project")
	for _, f := range files {
		r.Println("created", filepath.Join(dir, f))
	}

	r.Println()
	r.Println("kiln project initialized.")
	r.Println()
	r.Println("Next steps:")
	r.Println("  1. Run `kiln simulate` to generate the example dataset")
	r.Println("  2. Run `kiln run linreg` to sample the example model")
	r.Println("  3. Run `kiln summary linreg` to inspect the posterior")
	return nil
}
