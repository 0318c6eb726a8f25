package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per update, for CI and pipes.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors int
	warns  int
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case event.Total > 0:
		line := fmt.Sprintf("[%s] %d/%d", event.Stage.Icon(), event.Current, event.Total)
		if event.Failed > 0 {
			line += fmt.Sprintf(" (%d failed)", event.Failed)
		}
		if event.Message != "" {
			line += " - " + event.Message
		}
		_, _ = fmt.Fprintln(r.out, line)
	case event.Message != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.Message)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
		r.warns++
	} else {
		r.errors++
	}
	_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d documents, %d chunks", stats.Documents, stats.Chunks)
	if stats.Embedded > 0 || stats.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, ", %d embedded in %d batches", stats.Embedded, stats.Batches)
		if stats.Failed > 0 {
			_, _ = fmt.Fprintf(r.out, " (%d failed)", stats.Failed)
		}
	}
	_, _ = fmt.Fprintf(r.out, " in %s\n", stats.Duration.Round(100*time.Millisecond))

	if stats.Embedded > 0 && stats.Duration > 0 {
		_, _ = fmt.Fprintf(r.out, "Throughput: %.1f chunks/sec\n", float64(stats.Embedded)/stats.Duration.Seconds())
	}
	if stats.Provider.Name != "" {
		_, _ = fmt.Fprintf(r.out, "Provider: %s (%s, %d dims)\n",
			stats.Provider.Name, stats.Provider.Model, stats.Provider.Dimensions)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
