package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/ragcontext/internal/async"
	"github.com/Aman-CERP/ragcontext/internal/config"
	"github.com/Aman-CERP/ragcontext/internal/logging"
	"github.com/Aman-CERP/ragcontext/internal/mcp"
	"github.com/Aman-CERP/ragcontext/internal/search"
	"github.com/Aman-CERP/ragcontext/internal/watcher"
)

type serveOptions struct {
	watch     bool
	warm      bool
	transport string
}

func newServeCmd(global *globalOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Start the Model Context Protocol server. Clients call relevant_context
to get a context block for a message, corpus_status to inspect the index
and reload_corpus to rebuild it.

stdout carries the protocol, so logs go to ~/.ragcontext/logs/ only.

With --watch the corpus file is watched and the index is rebuilt whenever
it changes. Queries in flight finish against the previous index.

With --warm missing chunk embeddings are computed in the background while
the server answers queries; corpus_status reports the progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), global, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Rebuild the index when the corpus file changes")
	cmd.Flags().BoolVar(&opts.warm, "warm", false, "Fill the embedding cache in the background")
	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport (default from config: stdio)")

	return cmd
}

func runServe(ctx context.Context, global *globalOptions, opts serveOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}

	if !global.debug {
		cleanup, err := logging.SetupServerMode(filepath.Join(cfg.LogDir(), logging.LogFileName), cfg.Server.LogLevel)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openAppWithConfig(ctx, cfg, appOptions{telemetry: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	srv, err := mcp.NewServer(a.engine, cfg, cfg.Corpus.Path)
	if err != nil {
		return err
	}
	if a.metrics != nil {
		srv.SetMetrics(a.metrics)
	}

	transport := opts.transport
	if transport == "" {
		transport = cfg.Server.Transport
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.watch || cfg.Watch.Enabled {
		wopts := watcher.DefaultOptions()
		wopts.DebounceWindow = config.Duration(cfg.Watch.Debounce, wopts.DebounceWindow)
		cw, err := watcher.NewCorpusWatcher(cfg.Corpus.Path, wopts)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return cw.Run(gctx, srv.Reload)
		})
	}
	if (opts.warm || cfg.Warm.OnServe) && a.embedder != nil {
		warmer := newBackgroundWarmer(a)
		srv.SetWarmProgress(warmer.Progress())
		warmer.Start(gctx)
		defer warmer.Stop()
	}
	g.Go(func() error {
		err := srv.Serve(gctx, transport)
		// the client closing stdin ends the session and the watcher with it
		stop()
		return err
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		slog.Error("serve_stopped", slog.String("error", err.Error()))
	}
	return err
}

// newBackgroundWarmer fills the embedding cache while the server runs.
// Failed batches are logged, not fatal; the next run picks them up.
func newBackgroundWarmer(a *app) *async.BackgroundWarmer {
	if async.HasIncompleteLock(a.cfg.DataDir) {
		slog.Info("warm_resuming", slog.String("data_dir", a.cfg.DataDir))
	}
	return async.NewBackgroundWarmer(async.WarmerConfig{DataDir: a.cfg.DataDir},
		func(ctx context.Context, p *async.Progress) error {
			stats, err := a.engine.Warm(ctx, search.WarmOptions{
				BatchSize: a.cfg.Warm.BatchSize,
				Workers:   a.cfg.Warm.Workers,
				Progress: func(wp search.WarmProgress) {
					p.Update(wp.Done, wp.Failed, wp.Total)
				},
			})
			p.Update(stats.Embedded+stats.Failed, stats.Failed, stats.Total)
			if err != nil {
				slog.Warn("warm_failed", slog.String("error", err.Error()))
				return err
			}
			slog.Info("warm_complete",
				slog.Int("embedded", stats.Embedded),
				slog.Int("failed", stats.Failed),
				slog.Duration("duration", stats.Duration))
			return nil
		})
}
