package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Lifecycle
// =============================================================================

func TestNewBackgroundWarmer(t *testing.T) {
	// Given/When: a new warmer
	w := NewBackgroundWarmer(WarmerConfig{DataDir: t.TempDir()}, nil)

	// Then: idle with a pending tracker
	require.NotNil(t, w)
	assert.NotNil(t, w.Progress())
	assert.False(t, w.IsRunning())
	assert.Equal(t, "pending", w.Progress().Snapshot().Status)
}

func TestBackgroundWarmer_RunsInBackground(t *testing.T) {
	// Given: a warmer whose work blocks until released
	release := make(chan struct{})
	var calls atomic.Int32
	w := NewBackgroundWarmer(WarmerConfig{DataDir: t.TempDir()}, func(ctx context.Context, p *Progress) error {
		calls.Add(1)
		<-release
		return nil
	})

	// When: starting
	w.Start(context.Background())

	// Then: Start returned while the work is still running
	assert.True(t, w.IsRunning())
	close(release)
	require.NoError(t, w.Wait())
	assert.False(t, w.IsRunning())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "ready", w.Progress().Snapshot().Status)
}

func TestBackgroundWarmer_StartTwiceRunsOnce(t *testing.T) {
	var calls atomic.Int32
	w := NewBackgroundWarmer(WarmerConfig{}, func(ctx context.Context, p *Progress) error {
		calls.Add(1)
		return nil
	})

	w.Start(context.Background())
	w.Start(context.Background())
	require.NoError(t, w.Wait())

	assert.Equal(t, int32(1), calls.Load())
}

func TestBackgroundWarmer_ReportsProgress(t *testing.T) {
	w := NewBackgroundWarmer(WarmerConfig{}, func(ctx context.Context, p *Progress) error {
		p.Update(4, 1, 4)
		return nil
	})

	w.Start(context.Background())
	require.NoError(t, w.Wait())

	snap := w.Progress().Snapshot()
	assert.Equal(t, 4, snap.Done)
	assert.Equal(t, 1, snap.Failed)
}

// =============================================================================
// Errors and cancellation
// =============================================================================

func TestBackgroundWarmer_Error(t *testing.T) {
	// Given: work that fails
	boom := errors.New("provider unavailable")
	w := NewBackgroundWarmer(WarmerConfig{}, func(ctx context.Context, p *Progress) error {
		return boom
	})

	// When: running to completion
	w.Start(context.Background())
	err := w.Wait()

	// Then: the error surfaces in Wait and in the snapshot
	assert.ErrorIs(t, err, boom)
	snap := w.Progress().Snapshot()
	assert.Equal(t, "error", snap.Status)
	assert.Equal(t, "provider unavailable", snap.ErrorMessage)
}

func TestBackgroundWarmer_StopCancelsWork(t *testing.T) {
	// Given: work that runs until cancelled
	w := NewBackgroundWarmer(WarmerConfig{}, func(ctx context.Context, p *Progress) error {
		<-ctx.Done()
		return ctx.Err()
	})
	w.Start(context.Background())

	// When: stopping
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	// Then: Stop returns and the work saw the cancellation
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.ErrorIs(t, w.Wait(), context.Canceled)
	assert.False(t, w.IsRunning())

	// Stop again is safe
	w.Stop()
}

func TestBackgroundWarmer_ParentContextCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewBackgroundWarmer(WarmerConfig{}, func(ctx context.Context, p *Progress) error {
		<-ctx.Done()
		return ctx.Err()
	})

	w.Start(ctx)
	cancel()

	assert.ErrorIs(t, w.Wait(), context.Canceled)
}

func TestBackgroundWarmer_StopAndWaitBeforeStart(t *testing.T) {
	w := NewBackgroundWarmer(WarmerConfig{}, nil)

	w.Stop()
	assert.NoError(t, w.Wait())
}

// =============================================================================
// Lock file
// =============================================================================

func TestBackgroundWarmer_LockFileLifecycle(t *testing.T) {
	// Given: a warmer with a data dir
	dir := filepath.Join(t.TempDir(), "data")
	sawLock := make(chan bool, 1)
	w := NewBackgroundWarmer(WarmerConfig{DataDir: dir}, func(ctx context.Context, p *Progress) error {
		sawLock <- HasIncompleteLock(dir)
		return nil
	})

	// When: running
	w.Start(context.Background())
	require.NoError(t, w.Wait())

	// Then: the lock existed during the run and is gone after
	assert.True(t, <-sawLock)
	assert.False(t, HasIncompleteLock(dir))
}

func TestBackgroundWarmer_LockRemovedOnError(t *testing.T) {
	dir := t.TempDir()
	w := NewBackgroundWarmer(WarmerConfig{DataDir: dir}, func(ctx context.Context, p *Progress) error {
		return errors.New("boom")
	})

	w.Start(context.Background())
	require.Error(t, w.Wait())

	assert.False(t, HasIncompleteLock(dir))
}

func TestHasIncompleteLock_LeftoverFile(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasIncompleteLock(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, LockFileName), []byte("x"), 0o644))

	assert.True(t, HasIncompleteLock(dir))
}

func TestBackgroundWarmer_UnwritableDataDir(t *testing.T) {
	// Given: a data dir path that is a file
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	var calls atomic.Int32
	w := NewBackgroundWarmer(WarmerConfig{DataDir: filepath.Join(file, "sub")}, func(ctx context.Context, p *Progress) error {
		calls.Add(1)
		return nil
	})

	// When: running
	w.Start(context.Background())

	// Then: fails before doing work
	assert.Error(t, w.Wait())
	assert.Zero(t, calls.Load())
	assert.Equal(t, "error", w.Progress().Snapshot().Status)
}
