package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.LLMURL)
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout)
	assert.Equal(t, "qwen2.5:1.5b", cfg.LLMModel)
	assert.True(t, cfg.ExpandEnabled)
	assert.Equal(t, 2, cfg.ExpandCount)
	assert.True(t, cfg.RerankEnabled)
	assert.Equal(t, 20, cfg.RerankTopK)
	assert.Equal(t, 60.0, cfg.RRFConstant)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 30, cfg.CacheTTLDays)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("LOCALSEEK_LLM_URL", "http://ollama.internal:11434")
	t.Setenv("LOCALSEEK_LLM_TIMEOUT", "5s")
	t.Setenv("LOCALSEEK_EXPAND_ENABLED", "false")
	t.Setenv("LOCALSEEK_RERANK_TOPK", "5")
	t.Setenv("LOCALSEEK_RRF_K", "10")
	t.Setenv("LOCALSEEK_DB_PATH", "/tmp/custom-index.sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://ollama.internal:11434", cfg.LLMURL)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
	assert.False(t, cfg.ExpandEnabled)
	assert.Equal(t, 5, cfg.RerankTopK)
	assert.Equal(t, 10.0, cfg.RRFConstant)
	assert.Equal(t, "/tmp/custom-index.sqlite", cfg.DBPath)
}

func TestLoadPathDefaults(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)

	cfg, err := Load()
	require.NoError(t, err)

	dir := filepath.Join(xdg, "localseek")
	assert.Equal(t, filepath.Join(dir, "index.sqlite"), cfg.DBPath)
	assert.Equal(t, filepath.Join(dir, "cache.sqlite"), cfg.CacheDBPath)
	assert.Equal(t, filepath.Join(dir, "metrics.sqlite"), cfg.MetricsDBPath)
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("LOCALSEEK_LLM_TIMEOUT", "not-a-duration")

	_, err := Load()
	assert.Error(t, err)
}

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	assert.Equal(t, filepath.Join("/custom/cache", "localseek"), CacheDir())
}
