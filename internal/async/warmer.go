package async

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LockFileName marks a warm-up in progress inside the data directory.
const LockFileName = "warming.lock"

// WarmFunc does the actual warm-up work, reporting through progress.
type WarmFunc func(ctx context.Context, progress *Progress) error

// WarmerConfig configures the BackgroundWarmer.
type WarmerConfig struct {
	DataDir string
}

// BackgroundWarmer runs a WarmFunc in a goroutine with progress tracking.
// It runs at most once.
type BackgroundWarmer struct {
	config   WarmerConfig
	progress *Progress
	fn       WarmFunc

	stopCh chan struct{}
	doneCh chan struct{}

	mu       sync.Mutex
	started  bool
	running  bool
	stopOnce sync.Once
	err      error
}

// NewBackgroundWarmer creates a warmer for fn.
func NewBackgroundWarmer(cfg WarmerConfig, fn WarmFunc) *BackgroundWarmer {
	return &BackgroundWarmer{
		config:   cfg,
		progress: NewProgress(),
		fn:       fn,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker for this warmer.
func (b *BackgroundWarmer) Progress() *Progress {
	return b.progress
}

// IsRunning returns true if the warmer is currently running.
func (b *BackgroundWarmer) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start begins warm-up in a background goroutine and returns immediately.
// Later calls are no-ops. Use Wait to block until completion.
func (b *BackgroundWarmer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.running = true
	b.mu.Unlock()

	b.progress.Start()
	go b.run(ctx)
}

func (b *BackgroundWarmer) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if b.config.DataDir != "" {
		lockPath := filepath.Join(b.config.DataDir, LockFileName)
		if err := os.MkdirAll(b.config.DataDir, 0o755); err != nil {
			b.fail(err)
			return
		}
		if err := os.WriteFile(lockPath, []byte(time.Now().Format(time.RFC3339)), 0o644); err != nil {
			b.fail(err)
			return
		}
		defer func() { _ = os.Remove(lockPath) }()
	}

	if b.fn != nil {
		if err := b.fn(ctx, b.progress); err != nil {
			b.fail(err)
			return
		}
	}
	b.progress.SetReady()
}

func (b *BackgroundWarmer) fail(err error) {
	b.progress.SetError(err.Error())
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

// Stop cancels a running warm-up and waits for it to finish.
func (b *BackgroundWarmer) Stop() {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return
	}

	b.stopOnce.Do(func() { close(b.stopCh) })
	<-b.doneCh
}

// Wait blocks until the warmer completes and returns any error. It returns
// nil immediately if the warmer was never started.
func (b *BackgroundWarmer) Wait() error {
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if !started {
		return nil
	}

	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// HasIncompleteLock reports whether a previous warm-up was interrupted.
func HasIncompleteLock(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, LockFileName))
	return err == nil
}
