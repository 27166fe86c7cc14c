package plot

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	chains := make([][]float64, 2)
	for c := range chains {
		chains[c] = make([]float64, 100)
		for i := range chains[c] {
			chains[c][i] = rng.NormFloat64()
		}
	}

	path := filepath.Join(t.TempDir(), "alpha_trace.png")
	require.NoError(t, Trace("alpha", chains, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestDensity(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 1))
	values := make([]float64, 500)
	for i := range values {
		values[i] = 5 + rng.NormFloat64()
	}

	path := filepath.Join(t.TempDir(), "alpha_density.png")
	require.NoError(t, Density("alpha", values, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
