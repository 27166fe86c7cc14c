package commands

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestNewSimulateCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := NewSimulateCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--n", "200", "--intercept", "15", "--slope", "3", "--sd", "0.01", "--seed", "7"})
	require.NoError(t, cmd.Execute())

	f, err := os.Open(filepath.Join("data", "linreg.csv"))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 201, "header plus 200 rows")
	assert.Equal(t, []string{"x", "y"}, records[0])

	// With near-zero noise an OLS fit pins the true coefficients.
	var xs, ys []float64
	for _, rec := range records[1:] {
		x, err := strconv.ParseFloat(rec[0], 64)
		require.NoError(t, err)
		y, err := strconv.ParseFloat(rec[1], 64)
		require.NoError(t, err)
		xs = append(xs, x)
		ys = append(ys, y)
	}
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	assert.InDelta(t, 15, intercept, 0.01)
	assert.InDelta(t, 3, slope, 0.01)
}

func TestNewSimulateCommand_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := NewSimulateCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--n", "0"})
	require.Error(t, cmd.Execute())

	cmd = NewSimulateCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--sd", "-1"})
	require.Error(t, cmd.Execute())
}
