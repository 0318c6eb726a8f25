package search

import (
	"strings"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
)

// headerSeparator joins the metadata fields of a chunk header.
const headerSeparator = " · "

// contextSeparator joins formatted chunks.
const contextSeparator = "\n\n"

// FormatChunk renders "[kind · date · topic] text". Empty fields are
// omitted, and the brackets too when all of them are empty.
func FormatChunk(c *chunk.Chunk) string {
	if c == nil {
		return ""
	}
	fields := make([]string, 0, 3)
	for _, f := range []string{c.Kind, c.Date, c.Topic} {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return c.Text
	}
	return "[" + strings.Join(fields, headerSeparator) + "] " + c.Text
}

// FormatContext renders chunks in order, separated by a blank line.
func FormatContext(chunks []ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for _, sc := range chunks {
		if s := FormatChunk(sc.Chunk); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, contextSeparator)
}
