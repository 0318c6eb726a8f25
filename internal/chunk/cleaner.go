package chunk

import (
	"fmt"
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// DefaultNoisePatterns match boilerplate lines of the scanned archive:
// publisher footers, page numbers, list markers and citation stubs.
var DefaultNoisePatterns = []string{
	`www\.jdperon\.gov\.ar`,
	`austria 2593`,
	`1425 buenos aires`,
	`instituto nacional .*per[oó]n`,
	`tlfs\.`,
	`^\d+$`,
	`^\d+\.$`,
	`^[a-z]\.$`,
	`^[ivxlcdm]+\.$`,
	`^art\.$`,
	`^registro n\.?$`,
	`^documento n\.?$`,
	`^cit\.$`,
	`^cit\.,?\s*p(p)?\.$`,
}

// Cleaner normalizes whitespace and removes noise lines.
type Cleaner struct {
	noise []*regexp.Regexp
}

// NewCleaner compiles the noise patterns case-insensitively. A nil slice
// selects DefaultNoisePatterns.
func NewCleaner(patterns []string) (*Cleaner, error) {
	if patterns == nil {
		patterns = DefaultNoisePatterns
	}
	c := &Cleaner{noise: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid noise pattern %q: %w", p, err)
		}
		c.noise = append(c.noise, re)
	}
	return c, nil
}

// MustNewCleaner is NewCleaner for patterns known to be valid.
func MustNewCleaner(patterns []string) *Cleaner {
	c, err := NewCleaner(patterns)
	if err != nil {
		panic(err)
	}
	return c
}

// CleanLines collapses whitespace, trims, and drops empty and noise lines.
func (c *Cleaner) CleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		s := strings.TrimSpace(whitespaceRegex.ReplaceAllString(line, " "))
		if s == "" || c.IsNoise(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// IsNoise reports whether a single cleaned line matches a noise pattern.
func (c *Cleaner) IsNoise(line string) bool {
	for _, re := range c.noise {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
