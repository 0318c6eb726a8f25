package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragcontext/internal/search"
	"github.com/Aman-CERP/ragcontext/internal/ui"
)

type warmOptions struct {
	batchSize int
	workers   int
	plain     bool
	noColor   bool
}

func newWarmCmd(global *globalOptions) *cobra.Command {
	var opts warmOptions

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Embed every chunk missing from the embedding cache",
		Long: `Fill the embedding cache ahead of time so queries never wait on chunk
embeddings. Batches are written to the cache file as they finish, so an
interrupted run keeps its progress.

Examples:
  ragcontext warm
  ragcontext warm --batch-size 32 --workers 4
  ragcontext warm --plain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWarm(cmd.Context(), cmd, global, opts)
		},
	}

	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Chunks per provider request (default from config)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent batches (default from config)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain line output instead of the progress UI")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runWarm(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts warmOptions) error {
	a, err := openApp(ctx, global, appOptions{noLoad: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor),
		ui.WithTitle("ragcontext warm"),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLoading, Message: a.cfg.Corpus.Path})
	if err := a.engine.LoadCorpus(ctx, a.cfg.Corpus.Path); err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}

	st := a.engine.Status()
	renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Current: st.Chunks,
		Total:   st.Chunks,
		Message: st.LexicalBackend,
	})

	batchSize := opts.batchSize
	if batchSize <= 0 {
		batchSize = a.cfg.Warm.BatchSize
	}
	workers := opts.workers
	if workers <= 0 {
		workers = a.cfg.Warm.Workers
	}

	slog.Info("warm_started",
		slog.Int("chunks", st.Chunks),
		slog.Int("cached", st.CachedEmbeddings),
		slog.Int("batch_size", batchSize),
		slog.Int("workers", workers))

	stats, err := a.engine.Warm(ctx, search.WarmOptions{
		BatchSize: batchSize,
		Workers:   workers,
		Progress: func(p search.WarmProgress) {
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   ui.StageEmbedding,
				Current: p.Done,
				Total:   p.Total,
				Failed:  p.Failed,
			})
		},
	})
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}
	if stats.Failed > 0 {
		renderer.AddError(ui.ErrorEvent{
			Err:    fmt.Errorf("%d chunks could not be embedded, run warm again to retry", stats.Failed),
			IsWarn: true,
		})
	}

	provider := ui.ProviderInfo{Name: a.providerName()}
	if a.embedder != nil {
		provider.Model = a.embedder.ModelName()
		provider.Dimensions = a.embedder.Dimensions()
	}
	renderer.Complete(ui.CompletionStats{
		Documents: st.Documents,
		Chunks:    st.Chunks,
		Embedded:  stats.Embedded,
		Failed:    stats.Failed,
		Batches:   stats.Batches,
		Duration:  stats.Duration,
		Provider:  provider,
	})

	slog.Info("warm_complete",
		slog.Int("embedded", stats.Embedded),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))
	return nil
}
