package sampler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/calder-labs/kiln/internal/model"
)

// compileMean compiles a normal-mean model over the given observations.
func compileMean(t *testing.T, y []float64) *model.Compiled {
	t.Helper()
	src := `model {
  for (i in 1:N) {
    y[i] ~ dnorm(mu, 1)
  }
  mu ~ dnorm(0, 0.0001)
}`
	m, err := model.Parse("mean", src)
	require.NoError(t, err)
	compiled, err := model.Compile(m, &model.Data{
		Arrays:  map[string][]float64{"y": y},
		Scalars: map[string]float64{"N": float64(len(y))},
	})
	require.NoError(t, err)
	return compiled
}

// compileRegression compiles a two-parameter regression with a precision
// parameter, used to exercise indexed data and support checks.
func compileRegression(t *testing.T) *model.Compiled {
	t.Helper()
	src := `model {
  for (i in 1:N) {
    mu[i] <- alpha + beta * x[i]
    y[i] ~ dnorm(mu[i], tau)
  }
  alpha ~ dnorm(0, 0.0001)
  beta ~ dnorm(0, 0.0001)
  tau ~ dgamma(0.001, 0.001)
  sigma <- 1 / sqrt(tau)
}`
	m, err := model.Parse("linreg", src)
	require.NoError(t, err)
	compiled, err := model.Compile(m, &model.Data{
		Arrays: map[string][]float64{
			"x": {1, 2, 3, 4, 5},
			"y": {3.1, 4.8, 7.2, 8.9, 11.1},
		},
		Scalars: map[string]float64{"N": 5},
	})
	require.NoError(t, err)
	return compiled
}

func TestConfig_Retained(t *testing.T) {
	tests := []struct {
		iterations, burnin, thin, want int
	}{
		{1000, 0, 1, 1000},
		{1000, 100, 1, 900},
		{1000, 100, 3, 300},
		{103, 23, 4, 20},
		{20000, 5000, 3, 5000},
	}
	for _, tt := range tests {
		cfg := Config{Iterations: tt.iterations, BurnIn: tt.burnin, Thin: tt.thin}
		assert.Equal(t, tt.want, cfg.Retained(),
			"iterations=%d burnin=%d thin=%d", tt.iterations, tt.burnin, tt.thin)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{Iterations: 100, BurnIn: 10, Chains: 2, Thin: 1}
	require.NoError(t, valid.Validate())

	bad := []Config{
		{Iterations: 0, Chains: 2, Thin: 1},
		{Iterations: 100, BurnIn: -1, Chains: 2, Thin: 1},
		{Iterations: 100, BurnIn: 100, Chains: 2, Thin: 1},
		{Iterations: 100, Chains: 0, Thin: 1},
		{Iterations: 100, Chains: 2, Thin: 0},
	}
	for i, cfg := range bad {
		assert.Error(t, cfg.Validate(), "case %d", i)
	}
}

func TestFromPriors_DistinctAcrossChains(t *testing.T) {
	compiled := compileRegression(t)

	inits, err := FromPriors(compiled, 3, 1)
	require.NoError(t, err)
	require.Len(t, inits, 3)

	for chain, in := range inits {
		require.Len(t, in, compiled.NumParams(), "chain %d", chain)
		assert.Greater(t, in["tau"], 0.0, "chain %d: tau must respect its prior support", chain)
	}

	// Chains drawn from vague priors must not share a starting point.
	assert.NotEqual(t, inits[0], inits[1])
	assert.NotEqual(t, inits[1], inits[2])
	assert.NotEqual(t, inits[0], inits[2])
}

func TestLoadInitsFile(t *testing.T) {
	compiled := compileRegression(t)

	path := filepath.Join(t.TempDir(), "linreg.yaml")
	content := `
- alpha: 0
  beta: 0
  tau: 1
- alpha: 10
  beta: -5
  tau: 0.1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	inits, err := LoadInitsFile(compiled, path)
	require.NoError(t, err)
	require.Len(t, inits, 2)
	assert.Equal(t, 10.0, inits[1]["alpha"])
	assert.Equal(t, 0.1, inits[1]["tau"])
}

func TestLoadInitsFile_RejectsDeterministicEntry(t *testing.T) {
	compiled := compileRegression(t)

	path := filepath.Join(t.TempDir(), "linreg.yaml")
	content := "- alpha: 0\n  beta: 0\n  tau: 1\n  sigma: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := LoadInitsFile(compiled, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sigma")
}

func TestLoadInitsFile_IndexedList(t *testing.T) {
	src := `model {
  for (i in 1:3) {
    theta[i] ~ dnorm(0, 1)
  }
}`
	m, err := model.Parse("vec", src)
	require.NoError(t, err)
	compiled, err := model.Compile(m, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "vec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- theta: [1, 2, 3]\n"), 0600))

	inits, err := LoadInitsFile(compiled, path)
	require.NoError(t, err)
	assert.Equal(t, Inits{"theta[1]": 1, "theta[2]": 2, "theta[3]": 3}, inits[0])

	// Wrong element count is an error.
	require.NoError(t, os.WriteFile(path, []byte("- theta: [1, 2]\n"), 0600))
	_, err = LoadInitsFile(compiled, path)
	require.Error(t, err)
}

func TestMetropolis_RetainedShape(t *testing.T) {
	compiled := compileMean(t, []float64{4.8, 5.1, 5.3, 4.9, 5.0})
	eng := NewMetropolis(nil)

	cfg := Config{Iterations: 103, BurnIn: 23, Chains: 2, Thin: 4, Seed: 1}
	inits := []Inits{{"mu": 0}, {"mu": 10}}

	bundle, err := eng.Sample(context.Background(), compiled, cfg, inits)
	require.NoError(t, err)

	assert.Equal(t, 20, bundle.PerChain(), "floor((103-23)/4)")
	assert.Equal(t, 2, bundle.Chains())
	assert.Len(t, bundle.Flatten().Rows, 40, "chains * retained per chain")
}

func TestMetropolis_MonitorSubset(t *testing.T) {
	compiled := compileRegression(t)
	eng := NewMetropolis(nil)

	cfg := Config{Iterations: 200, BurnIn: 50, Chains: 2, Thin: 1, Seed: 1,
		Monitors: []string{"alpha", "sigma"}}
	inits := []Inits{
		{"alpha": 0, "beta": 0, "tau": 1},
		{"alpha": 1, "beta": 1, "tau": 0.5},
	}

	bundle, err := eng.Sample(context.Background(), compiled, cfg, inits)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "sigma"}, bundle.Params())
	assert.Equal(t, []string{"alpha", "sigma"}, bundle.Flatten().Columns)
}

func TestMetropolis_ChainMismatch(t *testing.T) {
	compiled := compileMean(t, []float64{5})
	eng := NewMetropolis(nil)

	cfg := Config{Iterations: 100, BurnIn: 10, Chains: 3, Thin: 1, Seed: 1}
	inits := []Inits{{"mu": 0}, {"mu": 1}}

	_, err := eng.Sample(context.Background(), compiled, cfg, inits)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainMismatch)
}

func TestMetropolis_SupportViolation(t *testing.T) {
	compiled := compileRegression(t)
	eng := NewMetropolis(nil)

	cfg := Config{Iterations: 100, BurnIn: 10, Chains: 1, Thin: 1, Seed: 1}
	inits := []Inits{{"alpha": 0, "beta": 0, "tau": -1}}

	_, err := eng.Sample(context.Background(), compiled, cfg, inits)
	require.Error(t, err)
	var serr *SupportError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "tau", serr.Param)
	assert.Equal(t, -1.0, serr.Value)
}

func TestMetropolis_ObservationOutsideSupport(t *testing.T) {
	src := `model {
  for (i in 1:N) {
    y[i] ~ dpois(lambda)
  }
  lambda ~ dgamma(1, 1)
}`
	m, err := model.Parse("counts", src)
	require.NoError(t, err)
	compiled, err := model.Compile(m, &model.Data{
		Arrays:  map[string][]float64{"y": {2, 2.5, 3}},
		Scalars: map[string]float64{"N": 3},
	})
	require.NoError(t, err)

	eng := NewMetropolis(nil)
	cfg := Config{Iterations: 100, BurnIn: 10, Chains: 1, Thin: 1, Seed: 1}

	bundle, err := eng.Sample(context.Background(), compiled, cfg, []Inits{{"lambda": 1}})
	require.Error(t, err)
	assert.Nil(t, bundle)
	assert.Contains(t, err.Error(), "zero joint density")
}

func TestMetropolis_MissingAndUnknownInits(t *testing.T) {
	compiled := compileRegression(t)
	eng := NewMetropolis(nil)
	cfg := Config{Iterations: 100, BurnIn: 10, Chains: 1, Thin: 1, Seed: 1}

	_, err := eng.Sample(context.Background(), compiled, cfg,
		[]Inits{{"alpha": 0, "beta": 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing initial value")

	_, err = eng.Sample(context.Background(), compiled, cfg,
		[]Inits{{"alpha": 0, "beta": 0, "tau": 1, "sigma": 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sigma")
}

func TestMetropolis_PosteriorMean(t *testing.T) {
	y := []float64{4.7, 5.2, 4.9, 5.4, 5.1, 4.8, 5.0, 5.3, 4.6, 5.2,
		5.1, 4.9, 5.0, 5.2, 4.8, 5.1, 4.9, 5.3, 5.0, 4.7}
	compiled := compileMean(t, y)
	eng := NewMetropolis(nil)

	cfg := Config{Iterations: 4000, BurnIn: 1000, Chains: 2, Thin: 1, Seed: 3}
	inits := []Inits{{"mu": 0}, {"mu": 10}}

	bundle, err := eng.Sample(context.Background(), compiled, cfg, inits)
	require.NoError(t, err)

	mu, err := bundle.Flatten().Column("mu")
	require.NoError(t, err)
	assert.InDelta(t, stat.Mean(y, nil), stat.Mean(mu, nil), 0.5)
}

func TestMetropolis_Reproducible(t *testing.T) {
	compiled := compileMean(t, []float64{4.9, 5.1, 5.0})
	eng := NewMetropolis(nil)

	cfg := Config{Iterations: 300, BurnIn: 50, Chains: 2, Thin: 2, Seed: 9}
	inits := []Inits{{"mu": 0}, {"mu": 1}}

	first, err := eng.Sample(context.Background(), compiled, cfg, inits)
	require.NoError(t, err)
	second, err := eng.Sample(context.Background(), compiled, cfg, inits)
	require.NoError(t, err)

	assert.Equal(t, first.Flatten().Rows, second.Flatten().Rows)
}

func TestMetropolis_ContextCancel(t *testing.T) {
	compiled := compileMean(t, []float64{5})
	eng := NewMetropolis(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config{Iterations: 100000, BurnIn: 1000, Chains: 1, Thin: 1, Seed: 1}
	_, err := eng.Sample(ctx, compiled, cfg, []Inits{{"mu": 0}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
