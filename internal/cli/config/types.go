// Package config provides configuration management for the kiln CLI.
// Configuration is layered: built-in defaults, then kiln.yaml, then KILN_*
// environment variables, then command-line flags.
package config

// SamplingConfig holds the default run configuration for sampler
// invocations. Command-line flags override per run.
type SamplingConfig struct {
	Iterations int   `koanf:"iterations"`
	BurnIn     int   `koanf:"burnin"`
	Chains     int   `koanf:"chains"`
	Thin       int   `koanf:"thin"`
	Seed       int64 `koanf:"seed"`
}

// Config is the resolved CLI configuration.
type Config struct {
	// ProjectDir is the project root (where kiln.yaml lives).
	ProjectDir string `koanf:"project_dir"`
	// ModelsDir is the model files directory, relative to the project root.
	ModelsDir string `koanf:"models_dir"`
	// DataDir is the observation CSV directory.
	DataDir string `koanf:"data_dir"`
	// InitsDir is the per-model initial-value YAML directory.
	InitsDir string `koanf:"inits_dir"`
	// PlotsDir is where trace/density PNGs are written.
	PlotsDir string `koanf:"plots_dir"`
	// StatePath is the SQLite run store path.
	StatePath string `koanf:"state_path"`
	// OutputFormat selects the renderer mode (text or json).
	OutputFormat string `koanf:"output"`
	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`

	// Sampling holds the default run configuration.
	Sampling SamplingConfig `koanf:"sampling"`

	// Monitor maps a model name to the node names retained for it. A model
	// absent from the map retains every parameter.
	Monitor map[string][]string `koanf:"monitor"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ModelsDir:    "models",
		DataDir:      "data",
		InitsDir:     "inits",
		PlotsDir:     "plots",
		StatePath:    ".kiln/state.db",
		OutputFormat: "text",
		Sampling: SamplingConfig{
			Iterations: 20000,
			BurnIn:     5000,
			Chains:     3,
			Thin:       1,
			Seed:       1,
		},
	}
}
