package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		args      []string
		wantErr   bool
		wantFiles []string
	}{
		{
			name: "init empty directory",
			args: []string{},
			wantFiles: []string{
				"kiln.yaml",
				".gitignore",
				"models/linreg.kiln",
				"models/seedbank.kiln",
				"inits/linreg.yaml.example",
				"data",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "kiln.yaml"), []byte("existing"), 0600)
			},
			args:    []string{},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "kiln.yaml"), []byte("existing"), 0600)
			},
			args: []string{"--force"},
			wantFiles: []string{
				"kiln.yaml",
				"models/linreg.kiln",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, dir)
			}

			cmd := NewInitCommand()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(append([]string{dir}, tt.args...))

			err := cmd.Execute()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				_, statErr := os.Stat(filepath.Join(dir, f))
				assert.NoError(t, statErr, "expected %s to exist", f)
			}
		})
	}
}

func TestNewInitCommand_ForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kiln.yaml"), []byte("old"), 0600))

	cmd := NewInitCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{dir, "--force"})
	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile(filepath.Join(dir, "kiln.yaml"))
	require.NoError(t, err)
	assert.NotEqual(t, "old", string(content))
}

func TestSanitizeNode(t *testing.T) {
	assert.Equal(t, "alpha", sanitizeNode("alpha"))
	assert.Equal(t, "theta_2", sanitizeNode("theta[2]"))
}
