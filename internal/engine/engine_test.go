package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/calder-labs/kiln/internal/sampler"
	"github.com/calder-labs/kiln/internal/state"
)

const linregModel = `model {
  for (i in 1:N) {
    mu[i] <- alpha + beta * x[i]
    y[i] ~ dnorm(mu[i], tau)
  }
  alpha ~ dnorm(0, 0.0001)
  beta ~ dnorm(0, 0.0001)
  tau ~ dgamma(0.001, 0.001)
  sigma <- 1 / sqrt(tau)
}
`

// scaffold creates a throwaway project directory with models/, data/ and
// inits/ and returns an engine over it.
func scaffold(t *testing.T) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"models", "data", "inits"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0750))
	}

	eng, err := New(Config{
		ModelsDir: filepath.Join(root, "models"),
		DataDir:   filepath.Join(root, "data"),
		InitsDir:  filepath.Join(root, "inits"),
		StatePath: filepath.Join(root, ".kiln", "state.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, root
}

// writeLinreg writes the regression model and a synthetic dataset with the
// given true parameters.
func writeLinreg(t *testing.T, root string, n int, intercept, slope, noiseSD float64) {
	t.Helper()
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "models", "linreg.kiln"), []byte(linregModel), 0600))

	rng := rand.New(rand.NewPCG(99, 1))
	var sb strings.Builder
	sb.WriteString("x,y\n")
	for i := 0; i < n; i++ {
		x := rng.Float64() * 10
		y := intercept + slope*x + rng.NormFloat64()*noiseSD
		fmt.Fprintf(&sb, "%g,%g\n", x, y)
	}
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "data", "linreg.csv"), []byte(sb.String()), 0600))
}

func TestEngine_ListModels(t *testing.T) {
	eng, root := scaffold(t)

	names, err := eng.ListModels()
	require.NoError(t, err)
	assert.Empty(t, names)

	writeLinreg(t, root, 10, 1, 1, 1)
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "models", "other.kiln"), []byte("model { a ~ dnorm(0, 1) }"), 0600))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "models", "notes.txt"), []byte("ignored"), 0600))

	names, err = eng.ListModels()
	require.NoError(t, err)
	assert.Equal(t, []string{"linreg", "other"}, names)
}

func TestEngine_LoadModel(t *testing.T) {
	eng, root := scaffold(t)
	writeLinreg(t, root, 10, 1, 1, 1)

	compiled, ds, err := eng.LoadModel("linreg")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "tau"}, compiled.Params())
	require.NotNil(t, ds)
	assert.Equal(t, 10, ds.N)

	_, _, err = eng.LoadModel("missing")
	require.Error(t, err)
}

func TestEngine_LoadModel_NoData(t *testing.T) {
	eng, root := scaffold(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "models", "prior.kiln"),
		[]byte("model { theta ~ dnorm(0, 1) }"), 0600))

	compiled, ds, err := eng.LoadModel("prior")
	require.NoError(t, err)
	assert.Nil(t, ds)
	assert.Equal(t, []string{"theta"}, compiled.Params())
}

func TestEngine_Run(t *testing.T) {
	eng, root := scaffold(t)
	writeLinreg(t, root, 20, 2, 1, 0.5)

	cfg := sampler.Config{Iterations: 600, BurnIn: 100, Chains: 2, Thin: 2, Seed: 1}
	run, bundle, err := eng.Run(context.Background(), "linreg", cfg)
	require.NoError(t, err)

	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, 250, bundle.PerChain())
	assert.Len(t, bundle.Flatten().Rows, 500)

	// The read side sees the same shape.
	latest, loaded, err := eng.LatestBundle("linreg")
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, bundle.Params(), loaded.Params())
	assert.Equal(t, bundle.PerChain(), loaded.PerChain())
}

func TestEngine_Run_UsesInitsFile(t *testing.T) {
	eng, root := scaffold(t)
	writeLinreg(t, root, 10, 1, 1, 1)

	// One chain configured but two init sets supplied: the mismatch proves
	// the file was read, and the run must be recorded as failed.
	inits := "- alpha: 0\n  beta: 0\n  tau: 1\n- alpha: 1\n  beta: 1\n  tau: 1\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "inits", "linreg.yaml"), []byte(inits), 0600))

	cfg := sampler.Config{Iterations: 100, BurnIn: 10, Chains: 1, Thin: 1, Seed: 1}
	run, bundle, err := eng.Run(context.Background(), "linreg", cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, sampler.ErrChainMismatch)
	assert.Nil(t, bundle)
	require.NotNil(t, run)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "initial-value")
}

func TestEngine_Run_NoParameters(t *testing.T) {
	eng, root := scaffold(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "models", "flat.kiln"),
		[]byte("model { for (i in 1:N) { y[i] ~ dnorm(0, 1) } }"), 0600))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "data", "flat.csv"), []byte("y\n1\n2\n"), 0600))

	_, _, err := eng.Run(context.Background(),
		"flat", sampler.Config{Iterations: 10, BurnIn: 0, Chains: 1, Thin: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no unobserved stochastic parameters")
}

// TestEngine_Run_RecoverTruth runs the full default workload on data with
// known parameters and checks the posterior centers on them.
func TestEngine_Run_RecoverTruth(t *testing.T) {
	if testing.Short() {
		t.Skip("full-length sampling run")
	}

	eng, root := scaffold(t)
	writeLinreg(t, root, 100, 15, 3, 4)

	// Overdispersed fixed starting points, one per chain.
	inits := `
- alpha: 0
  beta: 0
  tau: 1
- alpha: 30
  beta: -3
  tau: 0.01
- alpha: -10
  beta: 8
  tau: 0.5
`
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "inits", "linreg.yaml"), []byte(inits), 0600))

	cfg := sampler.Config{Iterations: 20000, BurnIn: 5000, Chains: 3, Thin: 3, Seed: 1}
	run, bundle, err := eng.Run(context.Background(), "linreg", cfg)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, run.Status)

	require.Equal(t, 5000, bundle.PerChain())
	table := bundle.Flatten()
	require.Len(t, table.Rows, 15000)

	alpha, err := table.Column("alpha")
	require.NoError(t, err)
	beta, err := table.Column("beta")
	require.NoError(t, err)

	assert.InDelta(t, 15, stat.Mean(alpha, nil), 2)
	assert.InDelta(t, 3, stat.Mean(beta, nil), 2)
}
