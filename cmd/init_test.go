package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/repo-monitor/internal/config"
)

func TestValidationTarget(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "monitor.toml")

	t.Run("missing config file falls back to the written template", func(t *testing.T) {
		assert.Equal(t, filepath.Join(dir, config.DefaultPath), validationTarget(tomlPath))
	})

	t.Run("existing config file is validated as given", func(t *testing.T) {
		require.NoError(t, os.WriteFile(tomlPath, []byte("[repository]\n"), 0o644))
		assert.Equal(t, tomlPath, validationTarget(tomlPath))
	})
}
