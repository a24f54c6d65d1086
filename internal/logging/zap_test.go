package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConsoleLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(-1), "debug should be disabled without verbose")
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	t.Parallel()

	logger, err := New(Options{Verbose: true, JSON: true})
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(-1))
}

func TestNewWritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voxscribe.log")
	logger, err := New(Options{File: path})
	require.NoError(t, err)

	logger.Info("panel started")
	_ = logger.Sync()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "panel started")
}
