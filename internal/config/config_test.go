package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, int64(10*1024*1024), cfg.Analyzer.MaxImageSize)
	assert.Equal(t, 30*time.Millisecond, cfg.Typing.Interval)
	assert.Equal(t, "http://localhost:8000", cfg.Client.BaseURL)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Same(t, cfg, Get())
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
storage:
  type: disk
  data_dir: /tmp/nutrimind
typing:
  interval: 10ms
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "disk", cfg.Storage.Type)
	assert.Equal(t, "/tmp/nutrimind", cfg.Storage.DataDir)
	assert.Equal(t, 10*time.Millisecond, cfg.Typing.Interval)
	// 未覆盖的键保持默认值
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
}
