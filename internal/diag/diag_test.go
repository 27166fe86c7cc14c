package diag

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-labs/kiln/internal/draws"
)

// iidChains draws m chains of n standard-normal values from separate
// streams.
func iidChains(m, n int, seed uint64) [][]float64 {
	chains := make([][]float64, m)
	for c := range chains {
		rng := rand.New(rand.NewPCG(seed, uint64(c)+1))
		chains[c] = make([]float64, n)
		for i := range chains[c] {
			chains[c][i] = rng.NormFloat64()
		}
	}
	return chains
}

func TestGelmanRubin_WellMixed(t *testing.T) {
	rhat, err := GelmanRubin(iidChains(3, 2000, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rhat, 0.05, "independent draws from one target should give R-hat near 1")
}

func TestGelmanRubin_SeparatedChains(t *testing.T) {
	chains := iidChains(2, 500, 2)
	for i := range chains[1] {
		chains[1][i] += 50 // one chain stuck far from the other
	}
	rhat, err := GelmanRubin(chains)
	require.NoError(t, err)
	assert.Greater(t, rhat, RHatThreshold)
}

func TestGelmanRubin_Errors(t *testing.T) {
	_, err := GelmanRubin([][]float64{{1, 2, 3}})
	require.Error(t, err, "single chain")

	_, err = GelmanRubin([][]float64{{1}, {2}})
	require.Error(t, err, "one draw per chain")

	_, err = GelmanRubin([][]float64{{1, 2, 3}, {1, 2}})
	require.Error(t, err, "unequal lengths")
}

func TestGelmanRubin_ConstantChains(t *testing.T) {
	rhat, err := GelmanRubin([][]float64{{2, 2, 2}, {2, 2, 2}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, rhat)
}

func TestESS_Independent(t *testing.T) {
	chains := iidChains(2, 2000, 3)
	ess := ESS(chains)
	total := float64(2 * 2000)
	assert.Greater(t, ess, 0.5*total, "independent draws should keep most of the nominal size")
	assert.LessOrEqual(t, ess, total, "ESS is capped at the draw count")
}

func TestESS_Autocorrelated(t *testing.T) {
	// AR(1) with strong positive correlation shrinks the effective size.
	rng := rand.New(rand.NewPCG(4, 1))
	n := 2000
	chain := make([]float64, n)
	for i := 1; i < n; i++ {
		chain[i] = 0.95*chain[i-1] + rng.NormFloat64()
	}
	ess := ESS([][]float64{chain})
	assert.Less(t, ess, float64(n)/4)
}

func TestSummarize(t *testing.T) {
	b := draws.NewBundle([]string{"mu"}, 2, 1000)
	for c := 0; c < 2; c++ {
		rng := rand.New(rand.NewPCG(5, uint64(c)+1))
		for i := 0; i < 1000; i++ {
			b.Append("mu", c, 10+2*rng.NormFloat64())
		}
	}

	summaries, err := Summarize(b)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "mu", s.Name)
	assert.InDelta(t, 10, s.Mean, 0.3)
	assert.InDelta(t, 2, s.SD, 0.3)
	assert.InDelta(t, 10, s.Median, 0.3)
	assert.Less(t, s.Q2_5, s.Median)
	assert.Greater(t, s.Q97_5, s.Median)
	assert.Greater(t, s.ESS, 0.0)
	assert.False(t, math.IsNaN(s.RHat))
	assert.True(t, s.Converged())
	assert.InDelta(t, s.SD/math.Sqrt(s.ESS), s.MCSE, 1e-12)
}

func TestSummarize_SingleChain(t *testing.T) {
	b := draws.NewBundle([]string{"mu"}, 1, 100)
	rng := rand.New(rand.NewPCG(6, 1))
	for i := 0; i < 100; i++ {
		b.Append("mu", 0, rng.NormFloat64())
	}

	summaries, err := Summarize(b)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(summaries[0].RHat), "single chain has no between-chain statistic")
	assert.True(t, summaries[0].Converged())
}
