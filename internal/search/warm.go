package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Aman-CERP/ragcontext/internal/embed"
	"github.com/Aman-CERP/ragcontext/internal/errors"
)

// WarmOptions control cache warm-up.
type WarmOptions struct {
	BatchSize int
	Workers   int
	// Progress is called after each batch; calls are serialized.
	Progress func(WarmProgress)
}

// WarmProgress reports warm-up state.
type WarmProgress struct {
	Done   int // chunks processed, embedded or failed
	Failed int
	Total  int // chunks missing an embedding at start
}

// WarmStats summarizes a warm-up run.
type WarmStats struct {
	Total    int           `json:"total"`
	Embedded int           `json:"embedded"`
	Failed   int           `json:"failed"`
	Batches  int           `json:"batches"`
	Duration time.Duration `json:"duration_ns"`
}

// Warm embeds every chunk that has no cached vector, in batches spread over
// a worker pool. Each batch is flushed to the cache file as it completes, so
// an interrupted run keeps its progress. Failed batches are counted, not
// retried. When a corpus reload retires the index being warmed, the
// remaining work moves to the newly published index.
func (e *Engine) Warm(ctx context.Context, opts WarmOptions) (WarmStats, error) {
	start := time.Now()
	if e.embedder == nil {
		return WarmStats{}, errors.ProviderError("no embedding provider configured", nil).
			WithSuggestion("Set OPENAI_API_KEY or choose another provider with --embedder")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = embed.DefaultBatchSize
	}
	opts.BatchSize = min(opts.BatchSize, embed.MaxBatchSize)
	if opts.Workers <= 0 {
		opts.Workers = 2
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		return WarmStats{}, errors.InternalError("failed to create worker pool", err)
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		stats    WarmStats
		firstErr error
	)
	done := func(n int, err error) {
		mu.Lock()
		defer mu.Unlock()
		stats.Batches++
		if err != nil {
			stats.Failed += n
			if firstErr == nil {
				firstErr = err
			}
		} else {
			stats.Embedded += n
		}
		if opts.Progress != nil {
			opts.Progress(WarmProgress{Done: stats.Embedded + stats.Failed, Failed: stats.Failed, Total: stats.Total})
		}
	}
	// Chunks of a retired index are dropped from the total; the next
	// round counts the published index afresh.
	drop := func(n int) {
		mu.Lock()
		stats.Total -= n
		mu.Unlock()
	}

	warmIndex := func(ix *RetrievalIndex) (complete bool) {
		all := make([]int, ix.Len())
		for i := range all {
			all[i] = i
		}
		missing := ix.cache.Missing(all)
		mu.Lock()
		stats.Total += len(missing)
		mu.Unlock()

		var wg sync.WaitGroup
		for startIdx := 0; startIdx < len(missing); startIdx += opts.BatchSize {
			if ctx.Err() != nil {
				break
			}
			if ix.isRetired() {
				drop(len(missing) - startIdx)
				break
			}
			batch := missing[startIdx:min(startIdx+opts.BatchSize, len(missing))]

			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				if ix.isRetired() {
					drop(len(batch))
					return
				}
				done(len(batch), ix.EnsureEmbeddings(ctx, e.embedder, batch))
			}); err != nil {
				wg.Done()
				done(len(batch), err)
			}
		}
		wg.Wait()
		return !ix.isRetired()
	}

	for ctx.Err() == nil {
		ix := e.acquire()
		complete := warmIndex(ix)
		ix.release()
		if complete {
			break
		}
		slog.Info("warm_follows_reload", slog.Int("generation", e.Index().generation))
	}

	stats.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Embedded == 0 && firstErr != nil {
		return stats, firstErr
	}
	return stats, nil
}
