package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.2", cfg.Hostname)
	assert.Equal(t, uint16(53), cfg.Port)
	assert.Equal(t, uint32(5), cfg.MaxThreads)
	assert.Equal(t, uint32(100), cfg.CacheSize)
	assert.Equal(t, "cache.pkl", cfg.CacheFile)
	assert.Equal(t, "a.root-servers.net", cfg.ProxyHostname)
	assert.Equal(t, uint16(53), cfg.ProxyPort)
	assert.Equal(t, "", cfg.RedisAddr)
	assert.Equal(t, "", cfg.AuditDSN)
	assert.Equal(t, uint32(1), cfg.SweepIntervalSeconds)
	assert.Len(t, cfg.RootHints, 13)
}

func TestLoadMissingKeysFallBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 5353}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(5353), cfg.Port)
	assert.Equal(t, "127.0.0.2", cfg.Hostname)
	assert.Equal(t, uint32(100), cfg.CacheSize)
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 5353, "nonsense_key": true}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(5353), cfg.Port)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestWriteDefaultThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
