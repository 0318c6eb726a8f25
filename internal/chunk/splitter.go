package chunk

import (
	"strings"
	"unicode/utf8"
)

// Splitter greedily packs cleaned lines into passages.
//
// A line is appended to the current buffer unless doing so would exceed
// MaxChars while the buffer already holds at least MinChars; then the buffer
// is emitted and the line starts a new one. A single line longer than
// MaxChars therefore becomes its own oversized passage. The trailing buffer
// is kept only when it reaches MinFinalChars.
type Splitter struct {
	MaxChars      int
	MinChars      int
	MinFinalChars int
}

// NewSplitter returns a splitter with the default bounds.
func NewSplitter() *Splitter {
	return &Splitter{
		MaxChars:      DefaultMaxChars,
		MinChars:      DefaultMinChars,
		MinFinalChars: DefaultMinFinalChars,
	}
}

// ChunkLines packs lines into passages. Lengths are counted in characters.
func (s *Splitter) ChunkLines(lines []string) []string {
	var chunks []string
	buf := ""
	for _, line := range lines {
		next := line
		if buf != "" {
			next = buf + " " + line
		}
		next = strings.TrimSpace(next)
		if runeLen(next) > s.MaxChars && runeLen(buf) >= s.MinChars {
			chunks = append(chunks, buf)
			buf = strings.TrimSpace(line)
			continue
		}
		buf = next
	}
	if buf = strings.TrimSpace(buf); buf != "" && runeLen(buf) >= s.MinFinalChars {
		chunks = append(chunks, buf)
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
