package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "models", cfg.ModelsDir)
	assert.Equal(t, ".kiln/state.db", cfg.StatePath)
	assert.Equal(t, "text", cfg.OutputFormat)
	assert.Equal(t, 20000, cfg.Sampling.Iterations)
	assert.Equal(t, 5000, cfg.Sampling.BurnIn)
	assert.Equal(t, 3, cfg.Sampling.Chains)
	assert.Equal(t, 1, cfg.Sampling.Thin)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetConfig())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
models_dir: specs
output: json
sampling:
  iterations: 500
  burnin: 100
  chains: 2
monitor:
  linreg: [alpha, beta]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kiln.yaml"), []byte(content), 0600))
	t.Chdir(dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "specs", cfg.ModelsDir)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, 500, cfg.Sampling.Iterations)
	assert.Equal(t, 2, cfg.Sampling.Chains)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1, cfg.Sampling.Thin)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Monitor["linreg"])
	assert.Equal(t, filepath.Join(dir, "kiln.yaml"), GetConfigFileUsed())
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: observations\n"), 0600))
	t.Chdir(t.TempDir())

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "observations", cfg.DataDir)
}

func TestLoad_UpwardSearch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "kiln.yaml"), []byte("plots_dir: figures\n"), 0600))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0750))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "figures", cfg.PlotsDir)
	assert.Equal(t, root, cfg.ProjectDir)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KILN_MODELS_DIR", "env-models")
	t.Setenv("KILN_SAMPLING__CHAINS", "5")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "env-models", cfg.ModelsDir)
	assert.Equal(t, 5, cfg.Sampling.Chains)
}

func TestLoad_FlagOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kiln.yaml"), []byte("models_dir: from-file\n"), 0600))
	t.Chdir(dir)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("models-dir", "", "")
	flags.Int("iterations", 0, "")
	require.NoError(t, flags.Set("models-dir", "from-flag"))
	require.NoError(t, flags.Set("iterations", "777"))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.ModelsDir, "flags beat the config file")
	// Sampling flags belong to the run command, which overlays them after
	// loading; the loader must not route them into the sampling section.
	assert.Equal(t, DefaultConfig().Sampling.Iterations, cfg.Sampling.Iterations)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kiln.yaml"),
		[]byte("output: xml\nsampling:\n  thin: 0\n"), 0600))
	t.Chdir(dir)

	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output format")
	assert.Contains(t, err.Error(), "thin")
}

func TestConfig_Resolve(t *testing.T) {
	cfg := &Config{ProjectDir: "/proj", ModelsDir: "models", StatePath: "/abs/state.db"}
	assert.Equal(t, filepath.Join("/proj", "models"), cfg.ModelsPath())
	assert.Equal(t, "/abs/state.db", cfg.StateFile(), "absolute paths pass through")
}
