package ui

import (
	"sync"
	"time"
)

// etaSmoothingFactor weights the newest ETA estimate; batch embedding
// latency varies a lot from one batch to the next.
const etaSmoothingFactor = 0.3

// ProgressTracker holds progress state shared by the renderer and the TUI
// model. Safe for concurrent use.
type ProgressTracker struct {
	mu         sync.Mutex
	stage      Stage
	current    int
	total      int
	failed     int
	message    string
	stageStart time.Time
	lastETA    time.Duration
	errors     int
	warnings   int
}

// ProgressStats is a snapshot of the tracker.
type ProgressStats struct {
	Stage    Stage
	Current  int
	Total    int
	Failed   int
	Message  string
	Progress float64 // 0.0-1.0
	ETA      time.Duration
	Rate     float64 // chunks per second in the current stage
	Errors   int
	Warnings int
}

// NewProgressTracker creates a tracker in the loading stage.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{stage: StageLoading, stageStart: time.Now()}
}

// Apply records an event, resetting timing when the stage changes.
func (p *ProgressTracker) Apply(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Stage != p.stage {
		p.stage = event.Stage
		p.stageStart = time.Now()
		p.lastETA = 0
	}
	p.current = event.Current
	p.total = event.Total
	p.failed = event.Failed
	if event.Message != "" {
		p.message = event.Message
	}
}

// AddError counts an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Stats returns a snapshot. It takes the write lock because the ETA is
// smoothed across calls.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := ProgressStats{
		Stage:    p.stage,
		Current:  p.current,
		Total:    p.total,
		Failed:   p.failed,
		Message:  p.message,
		Errors:   p.errors,
		Warnings: p.warnings,
	}
	if p.total > 0 {
		s.Progress = min(float64(p.current)/float64(p.total), 1.0)
	}
	if elapsed := time.Since(p.stageStart).Seconds(); elapsed > 0 {
		s.Rate = float64(p.current) / elapsed
	}
	s.ETA = p.calculateETA(s.Progress)
	return s
}

// calculateETA must be called with the lock held.
func (p *ProgressTracker) calculateETA(progress float64) time.Duration {
	if progress <= 0 || progress >= 1.0 {
		return 0
	}
	elapsed := time.Since(p.stageStart)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}
	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}
	p.lastETA = time.Duration(etaSmoothingFactor*float64(raw) + (1-etaSmoothingFactor)*float64(p.lastETA))
	return p.lastETA
}
