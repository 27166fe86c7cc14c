package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// maxUpwardSearchLevels limits how far up the directory tree to search for
// config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking.
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // stores the loaded config for access by commands
)

// configExistsIn checks if a kiln config file exists in the directory.
func configExistsIn(dir string) bool {
	for _, name := range []string{"kiln.yaml", "kiln.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findConfigFile finds the config file to use inside a directory.
// Priority: kiln.yaml > kiln.yml.
func findConfigFile(dir string) string {
	for _, name := range []string{"kiln.yaml", "kiln.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// findProjectRootUpward searches upward from startDir for a kiln config
// file. Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Explicit --project-dir flag
//  2. Search upward from CWD for kiln.yaml
//  3. Current working directory
func inferProjectRoot(flags *pflag.FlagSet) string {
	if flags != nil {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" && flags.Changed("project-dir") {
			return projectDir
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// Load resolves the configuration: defaults < kiln.yaml < KILN_* env <
// flags. An explicit cfgFile skips the upward search.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil

	projectRoot := inferProjectRoot(flags)

	defaults := DefaultConfig()
	if err := k.Load(confmap.Provider(map[string]any{
		"project_dir":         projectRoot,
		"models_dir":          defaults.ModelsDir,
		"data_dir":            defaults.DataDir,
		"inits_dir":           defaults.InitsDir,
		"plots_dir":           defaults.PlotsDir,
		"state_path":          defaults.StatePath,
		"output":              defaults.OutputFormat,
		"verbose":             defaults.Verbose,
		"sampling.iterations": defaults.Sampling.Iterations,
		"sampling.burnin":     defaults.Sampling.BurnIn,
		"sampling.chains":     defaults.Sampling.Chains,
		"sampling.thin":       defaults.Sampling.Thin,
		"sampling.seed":       defaults.Sampling.Seed,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile(projectRoot)
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		configFileUsed = configPath
	}

	if err := k.Load(env.Provider("KILN_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "KILN_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Sampling flags are command-local overlays applied by the run command
	// after loading; only the persistent directory and output flags layer
	// through koanf here.
	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfig returns the last loaded config, or nil.
func GetConfig() *Config {
	return currentConfig
}

// GetConfigFileUsed returns the path of the config file that was loaded,
// or empty if none was found.
func GetConfigFileUsed() string {
	return configFileUsed
}

// Resolve joins a configured path with the project root unless it is
// already absolute.
func (c *Config) Resolve(path string) string {
	if filepath.IsAbs(path) || c.ProjectDir == "" {
		return path
	}
	return filepath.Join(c.ProjectDir, path)
}

// ModelsPath returns the resolved models directory.
func (c *Config) ModelsPath() string { return c.Resolve(c.ModelsDir) }

// DataPath returns the resolved data directory.
func (c *Config) DataPath() string { return c.Resolve(c.DataDir) }

// InitsPath returns the resolved inits directory.
func (c *Config) InitsPath() string { return c.Resolve(c.InitsDir) }

// PlotsPath returns the resolved plots directory.
func (c *Config) PlotsPath() string { return c.Resolve(c.PlotsDir) }

// StateFile returns the resolved run store path.
func (c *Config) StateFile() string { return c.Resolve(c.StatePath) }
