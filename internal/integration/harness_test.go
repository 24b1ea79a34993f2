package integration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabled(t *testing.T) {
	t.Setenv(envEnable, "")
	assert.False(t, Enabled())

	t.Setenv(envEnable, "1")
	assert.True(t, Enabled())
}

func TestTestImage(t *testing.T) {
	t.Setenv(envImage, "")
	assert.Equal(t, defaultImage, TestImage())

	t.Setenv(envImage, "alpine:3.20")
	assert.Equal(t, "alpine:3.20", TestImage())
}

func TestTestConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := TestConfig(dir, "abc123")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.StateDir)
	assert.Equal(t, "desklab-it-abc123", cfg.BaseRepo)
	assert.Equal(t, "desklab-it-abc123_alice", cfg.UserRepo("alice"))
	assert.Equal(t, "desklab-it-abc123-s1", cfg.ContainerName("s1"))
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, filepath.Join(dir, "documents"), cfg.Store.Path)
	// Untouched settings keep their defaults.
	assert.Equal(t, 6081, cfg.DisplayPort)
	assert.Equal(t, 6000, cfg.PortRange.From)
}

// TestIntegrationExample shows how to write an integration test.
// This test is always skipped unless DESKLAB_INTEGRATION_TESTS=1.
func TestIntegrationExample(t *testing.T) {
	h := NewHarness(t) // Skips if integration tests disabled

	id, port := h.Launch("alice")
	t.Logf("Launched session %s on port %d", id, port)
}
