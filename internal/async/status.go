// Package async runs cache warm-up in the background while the server
// answers queries, and tracks its progress for corpus_status.
package async

import (
	"sync"
	"time"
)

// WarmStatus represents the overall warm-up state.
type WarmStatus string

const (
	// StatusPending indicates warm-up has not started.
	StatusPending WarmStatus = "pending"
	// StatusWarming indicates chunks are being embedded.
	StatusWarming WarmStatus = "warming"
	// StatusReady indicates every reachable chunk has a cached vector.
	StatusReady WarmStatus = "ready"
	// StatusError indicates warm-up stopped with an error.
	StatusError WarmStatus = "error"
)

// ProgressSnapshot is an immutable snapshot of warm-up progress.
type ProgressSnapshot struct {
	Status         string  `json:"status"`
	Total          int     `json:"total"`
	Done           int     `json:"done"`
	Failed         int     `json:"failed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// Progress provides thread-safe tracking of warm-up progress.
type Progress struct {
	mu sync.RWMutex

	status       WarmStatus
	total        int
	done         int
	failed       int
	startTime    time.Time
	errorMessage string
}

// NewProgress creates a pending progress tracker.
func NewProgress() *Progress {
	return &Progress{status: StatusPending}
}

// Start marks warm-up as running and resets the counters.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusWarming
	p.total, p.done, p.failed = 0, 0, 0
	p.errorMessage = ""
	p.startTime = time.Now()
}

// Update records the chunks processed so far.
func (p *Progress) Update(done, failed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = done
	p.failed = failed
	p.total = total
}

// SetError marks warm-up as failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.errorMessage = message
}

// SetReady marks warm-up as complete.
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
}

// IsWarming returns true while warm-up is in progress.
func (p *Progress) IsWarming() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusWarming
}

// Snapshot returns an immutable copy of the current progress state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := ProgressSnapshot{
		Status:       string(p.status),
		Total:        p.total,
		Done:         p.done,
		Failed:       p.failed,
		ErrorMessage: p.errorMessage,
	}
	switch {
	case p.total > 0:
		snap.ProgressPct = float64(p.done) / float64(p.total) * 100.0
	case p.status == StatusReady:
		snap.ProgressPct = 100
	}
	if !p.startTime.IsZero() {
		snap.ElapsedSeconds = int(time.Since(p.startTime).Seconds())
	}
	return snap
}
