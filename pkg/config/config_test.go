package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/share/pkg/config"
)

func TestLoadFillsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coordinator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("socket:\n  path: /tmp/custom.sock\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.sock", cfg.Socket.Path)
	assert.Equal(t, config.Default().Channel.Capacity, cfg.Channel.Capacity)
	assert.Equal(t, config.Default().Log.Level, cfg.Log.Level)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coordinator.yaml")
	doc := `
socket:
  path: /run/share/test.sock
channel:
  capacity: 128
  replyTimeout: 2s
  shutdownWait: 1s
log:
  level: debug
  json: false
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.Channel.Capacity)
	assert.Equal(t, 2*time.Second, cfg.Channel.ReplyTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
