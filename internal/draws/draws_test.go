package draws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillBundle(chains, perChain int) *Bundle {
	b := NewBundle([]string{"alpha", "beta"}, chains, perChain)
	for c := 0; c < chains; c++ {
		for i := 0; i < perChain; i++ {
			b.Append("alpha", c, float64(100*c+i))
			b.Append("beta", c, float64(-100*c-i))
		}
	}
	return b
}

func TestBundle_ChainView(t *testing.T) {
	b := fillBundle(2, 3)

	cs, err := b.ChainView("alpha")
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.Equal(t, []float64{0, 1, 2}, cs[0])
	assert.Equal(t, []float64{100, 101, 102}, cs[1])

	_, err = b.ChainView("gamma")
	require.Error(t, err)
}

func TestBundle_Flatten(t *testing.T) {
	b := fillBundle(3, 4)
	table := b.Flatten()

	assert.Equal(t, []string{"alpha", "beta"}, table.Columns)
	assert.Len(t, table.Rows, 3*4, "one row per draw across all chains")

	alpha, err := table.Column("alpha")
	require.NoError(t, err)
	assert.Len(t, alpha, 12)
	// First chain's draws come first, in sampling order.
	assert.Equal(t, []float64{0, 1, 2, 3}, alpha[:4])

	_, err = table.Column("gamma")
	require.Error(t, err)
}

func TestBundle_Acceptance(t *testing.T) {
	b := NewBundle([]string{"alpha"}, 2, 1)
	assert.Nil(t, b.Acceptance("alpha"))

	b.SetAcceptance("alpha", []float64{0.4, 0.5})
	assert.Equal(t, []float64{0.4, 0.5}, b.Acceptance("alpha"))
}
