// Package config loads configuration from environment variables and .env files.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for localseek
type Config struct {
	// Core paths (defaults are filled in relative to the cache dir when empty)
	DBPath        string `env:"LOCALSEEK_DB_PATH"`
	CacheDBPath   string `env:"LOCALSEEK_CACHE_DB"`
	MetricsDBPath string `env:"LOCALSEEK_METRICS_DB"`

	// LLM integration (Ollama)
	LLMURL     string        `env:"LOCALSEEK_LLM_URL" envDefault:"http://localhost:11434"`
	LLMTimeout time.Duration `env:"LOCALSEEK_LLM_TIMEOUT" envDefault:"60s"`
	LLMModel   string        `env:"LOCALSEEK_LLM_MODEL" envDefault:"qwen2.5:1.5b"`

	// Query expansion
	ExpandEnabled bool `env:"LOCALSEEK_EXPAND_ENABLED" envDefault:"true"`
	ExpandCount   int  `env:"LOCALSEEK_EXPAND_COUNT" envDefault:"2"`

	// Reranking
	RerankEnabled bool `env:"LOCALSEEK_RERANK_ENABLED" envDefault:"true"`
	RerankTopK    int  `env:"LOCALSEEK_RERANK_TOPK" envDefault:"20"`

	// Fusion
	RRFConstant float64 `env:"LOCALSEEK_RRF_K" envDefault:"60"`

	// Cache
	CacheEnabled bool `env:"LOCALSEEK_CACHE_ENABLED" envDefault:"true"`
	CacheTTLDays int  `env:"LOCALSEEK_CACHE_TTL_DAYS" envDefault:"30"`

	// Metrics
	MetricsEnabled bool `env:"LOCALSEEK_METRICS_ENABLED" envDefault:"true"`

	// Logging: off, error, warn, info, debug
	LogLevel string `env:"LOCALSEEK_LOG_LEVEL" envDefault:"warn"`
}

// Load loads configuration from a .env file (if present) and environment
// variables, filling path defaults under the user cache directory.
func Load() (*Config, error) {
	// Ignore error if no .env file exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	dir := CacheDir()
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(dir, "index.sqlite")
	}
	if cfg.CacheDBPath == "" {
		cfg.CacheDBPath = filepath.Join(dir, "cache.sqlite")
	}
	if cfg.MetricsDBPath == "" {
		cfg.MetricsDBPath = filepath.Join(dir, "metrics.sqlite")
	}

	return cfg, nil
}

// CacheDir returns the localseek cache directory, respecting XDG_CACHE_HOME.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "localseek")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".localseek")
	}
	return filepath.Join(home, ".cache", "localseek")
}
