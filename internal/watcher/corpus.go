package watcher

import (
	"context"
	"log/slog"
	"time"
)

// ReloadFunc rebuilds state from the changed corpus.
type ReloadFunc func(ctx context.Context) error

// CorpusWatcher reloads the corpus whenever its file changes.
type CorpusWatcher struct {
	path    string
	watcher *FileWatcher
}

// NewCorpusWatcher watches the corpus file at path.
func NewCorpusWatcher(path string, opts Options) (*CorpusWatcher, error) {
	w, err := NewFileWatcher(opts, path)
	if err != nil {
		return nil, err
	}
	return &CorpusWatcher{path: path, watcher: w}, nil
}

// Run calls reload once per debounced batch of changes until ctx is done.
// Reload errors are logged and do not stop the watcher; a later change
// retries.
func (c *CorpusWatcher) Run(ctx context.Context, reload ReloadFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startErr := make(chan error, 1)
	go func() { startErr <- c.watcher.Start(ctx) }()
	defer func() { _ = c.watcher.Stop() }()

	slog.Info("corpus_watch_started",
		slog.String("path", c.path),
		slog.String("mode", c.watcher.Mode()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-startErr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case err, ok := <-c.watcher.Errors():
			if !ok {
				return nil
			}
			slog.Warn("corpus_watch_error", slog.String("error", err.Error()))
		case batch, ok := <-c.watcher.Events():
			if !ok {
				return nil
			}
			last := batch[len(batch)-1]
			slog.Info("corpus_changed",
				slog.String("path", c.path),
				slog.String("op", last.Operation.String()))

			start := time.Now()
			if err := reload(ctx); err != nil {
				slog.Warn("corpus_reload_failed",
					slog.String("path", c.path),
					slog.String("error", err.Error()))
				continue
			}
			slog.Info("corpus_reloaded",
				slog.String("path", c.path),
				slog.Duration("duration", time.Since(start)))
		}
	}
}
