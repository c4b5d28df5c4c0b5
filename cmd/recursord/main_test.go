package main

import (
	"path/filepath"
	"testing"

	"github.com/dnslab/recursor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunGenconfigWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, run([]string{"genconfig", path}))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestRunWithNoArgsReturnsUsageError(t *testing.T) {
	assert.Error(t, run(nil))
}

func TestRunWithUnknownSubcommandReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	assert.Error(t, run([]string{"bogus", path}))
}

func TestRunVerboseFlagIsAccepted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	assert.NoError(t, run([]string{"-v", "genconfig", path}))
}

func TestRunRunSubcommandFailsOnMissingConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.json")
	err := run([]string{"run", missing})
	assert.Error(t, err)
}

func TestRunWithTooManyArgsReturnsUsageError(t *testing.T) {
	assert.Error(t, run([]string{"run", "a", "b"}))
}
