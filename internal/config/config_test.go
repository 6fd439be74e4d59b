package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_StreamingConfig(t *testing.T) {
	path := writeConfig(t, `
sdkKey: sdk-123
dataSource:
  mode: streaming
  streamUri: https://stream.example.com
events:
  eventsUri: https://events.example.com
  flushInterval: 5s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sdk-123", cfg.SDKKey)
	assert.Equal(t, ModeStreaming, cfg.DataSource.Mode)
	assert.Equal(t, "https://stream.example.com", cfg.DataSource.StreamURI)
	assert.Equal(t, 5*time.Second, cfg.Events.FlushInterval)
}

func TestLoad_MissingSDKKeyFails(t *testing.T) {
	path := writeConfig(t, `
dataSource:
  mode: streaming
  streamUri: https://stream.example.com
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_LazyLoadRequiresKnownBackend(t *testing.T) {
	path := writeConfig(t, `
sdkKey: sdk-123
dataSource:
  mode: lazyLoad
  lazyLoad:
    backend: memcached
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "backend")
}

func TestLoad_LazyLoadRedisBackendValid(t *testing.T) {
	path := writeConfig(t, `
sdkKey: sdk-123
dataSource:
  mode: lazyLoad
  lazyLoad:
    backend: redis
    redis:
      address: localhost:6379
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.DataSource.LazyLoad.Redis.Address)
}

func TestLoad_UnknownModeFails(t *testing.T) {
	path := writeConfig(t, `
sdkKey: sdk-123
dataSource:
  mode: carrierPigeon
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "dataSource.mode")
}
