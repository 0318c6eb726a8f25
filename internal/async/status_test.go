package async

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_StartsPending(t *testing.T) {
	p := NewProgress()

	snap := p.Snapshot()
	assert.Equal(t, "pending", snap.Status)
	assert.Zero(t, snap.ElapsedSeconds)
	assert.False(t, p.IsWarming())
}

func TestProgress_Lifecycle(t *testing.T) {
	// Given: a started tracker
	p := NewProgress()
	p.Start()
	assert.True(t, p.IsWarming())

	// When: half the chunks are processed
	p.Update(5, 1, 10)

	// Then: the snapshot reflects the counts
	snap := p.Snapshot()
	assert.Equal(t, "warming", snap.Status)
	assert.Equal(t, 5, snap.Done)
	assert.Equal(t, 1, snap.Failed)
	assert.InDelta(t, 50.0, snap.ProgressPct, 0.001)

	// When: marked ready
	p.SetReady()

	// Then: no longer warming
	assert.False(t, p.IsWarming())
	assert.Equal(t, "ready", p.Snapshot().Status)
}

func TestProgress_ReadyWithNothingToDo(t *testing.T) {
	p := NewProgress()
	p.Start()
	p.SetReady()

	assert.InDelta(t, 100.0, p.Snapshot().ProgressPct, 0.001)
}

func TestProgress_SetError(t *testing.T) {
	p := NewProgress()
	p.Start()

	p.SetError("provider unavailable")

	snap := p.Snapshot()
	assert.Equal(t, "error", snap.Status)
	assert.Equal(t, "provider unavailable", snap.ErrorMessage)
}

func TestProgress_StartResetsCounters(t *testing.T) {
	p := NewProgress()
	p.Start()
	p.Update(3, 3, 3)
	p.SetError("boom")

	p.Start()

	snap := p.Snapshot()
	assert.Equal(t, "warming", snap.Status)
	assert.Zero(t, snap.Done)
	assert.Empty(t, snap.ErrorMessage)
}

func TestProgress_ConcurrentAccess(t *testing.T) {
	p := NewProgress()
	p.Start()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Update(i, 0, 50)
		}()
		go func() {
			defer wg.Done()
			_ = p.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, p.Snapshot().Total)
}
