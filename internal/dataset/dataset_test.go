package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obs.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeCSV(t, "x,y\n1,2.5\n2,4.5\n3,7\n")

	d, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "obs", d.Name)
	assert.Equal(t, 3, d.N)
	assert.Equal(t, []string{"x", "y"}, d.Columns())

	y, ok := d.Column("y")
	require.True(t, ok)
	assert.Equal(t, []float64{2.5, 4.5, 7}, y)

	_, ok = d.Column("z")
	assert.False(t, ok)
}

func TestLoad_Mapping(t *testing.T) {
	path := writeCSV(t, "x,y\n1,2\n2,4\n")

	d, err := Load(path)
	require.NoError(t, err)

	data := d.Mapping()
	assert.Equal(t, []float64{1, 2}, data.Arrays["x"])
	assert.Equal(t, 2.0, data.Scalars["N"])
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"header only", "x,y\n", "at least one observation"},
		{"empty column name", "x,\n1,2\n", "empty name"},
		{"duplicate column", "x,x\n1,2\n", "duplicate column"},
		{"non-numeric field", "x,y\n1,abc\n", "invalid number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeCSV(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}
