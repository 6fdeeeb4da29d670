package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/localseek/internal/cache"
	"github.com/dshills/localseek/internal/config"
	"github.com/dshills/localseek/internal/expander"
	"github.com/dshills/localseek/internal/fusion"
	"github.com/dshills/localseek/internal/indexer"
	"github.com/dshills/localseek/internal/llm"
	"github.com/dshills/localseek/internal/metrics"
	"github.com/dshills/localseek/internal/pipeline"
	"github.com/dshills/localseek/internal/reranker"
	"github.com/dshills/localseek/internal/storage"
	"github.com/dshills/localseek/internal/summarize"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "localseek",
	Short: "Private document search with local LLM ranking",
	Long: `localseek indexes folders of documents into a local SQLite full-text
index and searches them with BM25 retrieval, LLM query expansion, and
LLM reranking. Everything runs locally; no document content or query
ever leaves the machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (built %s, %s build, driver %s)",
		version, buildTime, storage.BuildMode, storage.DriverName)
}

// app bundles the wired search stack for command handlers
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	storage    storage.Storage
	cache      *cache.Store
	recorder   *metrics.Recorder
	indexer    *indexer.Indexer
	pipeline   *pipeline.Pipeline
	summarizer *summarize.Summarizer
}

// newApp loads configuration and wires the full stack. Components behind
// disabled features stay nil and the pipeline degrades around them.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, storage: store}

	if cfg.CacheEnabled {
		cacheStore, err := cache.Open(cfg.CacheDBPath, logger)
		if err != nil {
			// A broken cache must never block search
			logger.Warn("cache unavailable, continuing without it", zap.Error(err))
		} else {
			a.cache = cacheStore
		}
	}

	if cfg.MetricsEnabled {
		recorder, err := metrics.Open(cfg.MetricsDBPath)
		if err != nil {
			logger.Warn("metrics unavailable", zap.Error(err))
		} else {
			a.recorder = recorder
		}
	}

	var client llm.Client = llm.NewBreakerClient(
		llm.NewOllamaClient(cfg.LLMURL, cfg.LLMModel, cfg.LLMTimeout),
		llm.DefaultBreakerConfig(), logger)

	var exp *expander.Expander
	if cfg.ExpandEnabled {
		exp = expander.New(client, a.cache, logger)
	}
	var rr *reranker.Reranker
	if cfg.RerankEnabled {
		rr = reranker.New(client, a.cache, store, reranker.Config{TopK: cfg.RerankTopK}, logger)
	}

	var inv indexer.Invalidator
	if a.cache != nil {
		inv = a.cache
	}
	a.indexer = indexer.New(store, inv, logger)

	a.pipeline = pipeline.New(store, fusion.New(store, logger), exp, rr, a.recorder, logger)
	a.summarizer = summarize.New(client, logger)
	return a, nil
}

// Close releases every open database
func (a *app) Close() {
	if a.recorder != nil {
		_ = a.recorder.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	_ = a.storage.Close()
	_ = a.logger.Sync()
}

// newLogger builds a stderr zap logger at the configured level; stdout
// stays reserved for command output and the MCP protocol.
func newLogger(level string) *zap.Logger {
	if level == "off" {
		return zap.NewNop()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.WarnLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
