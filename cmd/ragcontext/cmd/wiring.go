package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
	"github.com/Aman-CERP/ragcontext/internal/config"
	"github.com/Aman-CERP/ragcontext/internal/corpus"
	"github.com/Aman-CERP/ragcontext/internal/embed"
	"github.com/Aman-CERP/ragcontext/internal/search"
	"github.com/Aman-CERP/ragcontext/internal/store"
	"github.com/Aman-CERP/ragcontext/internal/telemetry"
)

// loadConfig loads the project configuration and applies the persistent
// flag overrides.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	dir := opts.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	if opts.corpus != "" {
		p, err := filepath.Abs(opts.corpus)
		if err != nil {
			return nil, fmt.Errorf("invalid corpus path: %w", err)
		}
		cfg.Corpus.Path = p
	}
	if opts.embedder != "" {
		p, err := embed.ParseProvider(opts.embedder)
		if err != nil {
			return nil, err
		}
		cfg.Embeddings.Provider = string(p)
	}
	return cfg, nil
}

// newBuilder builds the chunk pipeline from the chunking settings.
func newBuilder(cfg *config.Config) (*corpus.Builder, error) {
	patterns := append(append([]string{}, chunk.DefaultNoisePatterns...), cfg.Chunking.NoisePatterns...)
	cleaner, err := chunk.NewCleaner(patterns)
	if err != nil {
		return nil, fmt.Errorf("invalid noise pattern: %w", err)
	}

	splitter := chunk.NewSplitter()
	if cfg.Chunking.MaxChars > 0 {
		splitter.MaxChars = cfg.Chunking.MaxChars
	}
	if cfg.Chunking.MinChars > 0 {
		splitter.MinChars = cfg.Chunking.MinChars
	}
	if cfg.Chunking.MinFinalChars > 0 {
		splitter.MinFinalChars = cfg.Chunking.MinFinalChars
	}

	tokenizer := chunk.NewTokenizer(cfg.Chunking.StopWords)
	return corpus.NewBuilder(cleaner, splitter, tokenizer), nil
}

// newEmbedder builds the configured provider. A missing credential is not an
// error: the engine runs lexical-only and says so in the log.
func newEmbedder(ctx context.Context, cfg *config.Config, tok *chunk.Tokenizer) (embed.Embedder, error) {
	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}

	guard := embed.DefaultGuardConfig()
	if cfg.Embeddings.RequestsPerSecond > 0 {
		guard.RequestsPerSecond = cfg.Embeddings.RequestsPerSecond
	}
	if cfg.Embeddings.Burst > 0 {
		guard.Burst = cfg.Embeddings.Burst
	}

	e, err := embed.NewEmbedder(ctx, embed.Options{
		Provider:       provider,
		Model:          cfg.Embeddings.Model,
		BaseURL:        cfg.Embeddings.BaseURL,
		APIKeyEnv:      cfg.Embeddings.APIKeyEnv,
		BatchSize:      cfg.Embeddings.BatchSize,
		Timeout:        config.Duration(cfg.Embeddings.Timeout, embed.DefaultTimeout),
		MaxRetries:     cfg.Embeddings.MaxRetries,
		QueryCacheSize: cfg.Embeddings.QueryCacheSize,
		Guard:          &guard,
		Tokenizer:      tok,
	})
	if errors.Is(err, embed.ErrMissingCredential) {
		slog.Warn("embedder_unavailable",
			slog.String("provider", string(provider)),
			slog.String("reason", "missing credential"),
			slog.String("api_key_env", cfg.Embeddings.APIKeyEnv))
		return nil, nil
	}
	return e, err
}

// app is a loaded engine and the resources it owns.
type app struct {
	cfg      *config.Config
	engine   *search.Engine
	embedder embed.Embedder
	metrics  *telemetry.QueryMetrics
	store    *telemetry.SQLiteMetricsStore
}

// appOptions selects the optional parts of openApp.
type appOptions struct {
	// telemetry persists query metrics when enabled in the config
	telemetry bool
	// noLoad skips the initial corpus load
	noLoad bool
}

// openApp wires config, chunking, provider, telemetry and engine, then loads
// the corpus.
func openApp(ctx context.Context, opts *globalOptions, ao appOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return openAppWithConfig(ctx, cfg, ao)
}

func openAppWithConfig(ctx context.Context, cfg *config.Config, ao appOptions) (*app, error) {
	builder, err := newBuilder(cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(ctx, cfg, builder.Tokenizer())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, embedder: embedder}

	if ao.telemetry && cfg.Telemetry.Enabled {
		mcfg := telemetry.DefaultQueryMetricsConfig()
		mcfg.FlushInterval = config.Duration(cfg.Telemetry.FlushInterval, mcfg.FlushInterval)
		st, err := telemetry.OpenSQLiteMetricsStore(cfg.TelemetryPath())
		if err != nil {
			// metrics stay in memory
			slog.Warn("telemetry_store_unavailable",
				slog.String("path", cfg.TelemetryPath()),
				slog.String("error", err.Error()))
			a.metrics = telemetry.NewQueryMetricsWithConfig(nil, mcfg)
		} else {
			a.store = st
			a.metrics = telemetry.NewQueryMetricsWithConfig(st, mcfg)
		}
	}

	engineOpts := []search.EngineOption{search.WithBuilder(builder)}
	if embedder != nil {
		engineOpts = append(engineOpts, search.WithEmbedder(embedder))
	}
	if a.metrics != nil {
		engineOpts = append(engineOpts, search.WithMetrics(a.metrics))
	}

	a.engine = search.NewEngine(search.EngineConfig{
		TopK:            cfg.Search.TopK,
		CandidateK:      cfg.Search.CandidateK,
		Lambda:          cfg.Search.Lambda,
		LexicalBackend:  cfg.Lexical.Backend,
		LexicalBasePath: cfg.LexicalBasePath(),
		BM25:            bm25Config(cfg),
		CachePath:       cfg.Embeddings.CachePath,
		CacheModel:      cfg.Embeddings.Model,
		Defaults:        cfg.Defaults(),
		QueryTimeout:    config.Duration(cfg.Search.QueryTimeout, search.DefaultQueryTimeout),
	}, engineOpts...)

	if !ao.noLoad {
		if err := a.engine.LoadCorpus(ctx, cfg.Corpus.Path); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	return a, nil
}

// providerName reports the active provider, "none" when lexical-only.
func (a *app) providerName() string {
	if a.embedder == nil {
		return string(embed.ProviderNone)
	}
	return a.cfg.Embeddings.Provider
}

// Close releases the engine and flushes telemetry.
func (a *app) Close() error {
	var errs []error
	if a.engine != nil {
		errs = append(errs, a.engine.Close())
	}
	if a.metrics != nil {
		errs = append(errs, a.metrics.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func bm25Config(cfg *config.Config) store.BM25Config {
	bm := store.DefaultBM25Config()
	if cfg.Lexical.K1 > 0 {
		bm.K1 = cfg.Lexical.K1
	}
	if cfg.Lexical.B > 0 {
		bm.B = cfg.Lexical.B
	}
	return bm
}
