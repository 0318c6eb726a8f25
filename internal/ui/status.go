package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes a loaded corpus for the index command.
type StatusInfo struct {
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Generation  int       `json:"generation"`
	Documents   int       `json:"documents"`
	Chunks      int       `json:"chunks"`
	Terms       int       `json:"terms"`
	AvgChunkLen float64   `json:"avg_chunk_tokens"`
	LoadedAt    time.Time `json:"loaded_at"`

	LexicalBackend string `json:"lexical_backend"`

	// Embedding cache
	CachedEmbeddings int    `json:"cached_embeddings"`
	CachePath        string `json:"cache_path,omitempty"`
	CacheSize        int64  `json:"cache_size_bytes"`

	Provider       string `json:"provider"`
	ProviderModel  string `json:"provider_model,omitempty"`
	ProviderStatus string `json:"provider_status"` // ready, unavailable, disabled
}

// StatusRenderer displays corpus status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Corpus: "+info.Source))

	_, _ = fmt.Fprintf(r.out, "  Documents:   %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Chunks:      %d\n", info.Chunks)
	_, _ = fmt.Fprintf(r.out, "  Terms:       %d\n", info.Terms)
	_, _ = fmt.Fprintf(r.out, "  Avg length:  %.1f tokens\n", info.AvgChunkLen)
	if info.Fingerprint != "" {
		_, _ = fmt.Fprintf(r.out, "  Fingerprint: %s\n", info.Fingerprint)
	}
	_, _ = fmt.Fprintf(r.out, "  Backend:     %s\n", info.LexicalBackend)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Embeddings:")
	_, _ = fmt.Fprintf(r.out, "    Provider: %s\n", info.Provider)
	if info.ProviderModel != "" {
		_, _ = fmt.Fprintf(r.out, "    Model:    %s\n", info.ProviderModel)
	}
	_, _ = fmt.Fprintf(r.out, "    Status:   %s\n", r.renderStatus(info.ProviderStatus))
	coverage := 0.0
	if info.Chunks > 0 {
		coverage = float64(info.CachedEmbeddings) / float64(info.Chunks) * 100
	}
	_, _ = fmt.Fprintf(r.out, "    Cached:   %d/%d (%.0f%%)\n", info.CachedEmbeddings, info.Chunks, coverage)
	if info.CachePath != "" {
		_, _ = fmt.Fprintf(r.out, "    Cache:    %s (%s)\n", info.CachePath, FormatBytes(info.CacheSize))
	}
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "unavailable", "disabled":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
