package chunk

import (
	"regexp"
	"strings"
)

// splitRegex matches runs of characters that separate tokens after
// normalization.
var splitRegex = regexp.MustCompile(`[^a-z0-9]+`)

// DefaultStopWords are the Spanish function words dropped from every token
// stream.
var DefaultStopWords = strings.Fields(`que para con del los las una uno por como pero sus nos
ya asi ese esa esto esta estos estas toda todo todas todos muy mas menos hay fue ser son era
han al el la y o de a en un se lo su si no mi tu es me te le les`)

// Tokenizer turns text into normalized index terms.
type Tokenizer struct {
	stopWords map[string]struct{}
}

// NewTokenizer creates a tokenizer. A nil stopWords slice selects
// DefaultStopWords; an empty non-nil slice disables stopword filtering.
func NewTokenizer(stopWords []string) *Tokenizer {
	if stopWords == nil {
		stopWords = DefaultStopWords
	}
	return &Tokenizer{stopWords: BuildStopWordMap(stopWords)}
}

// Tokenize normalizes text, splits on non-alphanumerics and drops short
// tokens and stopwords. Output order follows the input.
func (t *Tokenizer) Tokenize(text string) []string {
	parts := splitRegex.Split(Normalize(text), -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) < MinTokenLength {
			continue
		}
		tokens = append(tokens, p)
	}
	return FilterStopWords(tokens, t.stopWords)
}

// IsStopWord reports whether the normalized word is filtered.
func (t *Tokenizer) IsStopWord(word string) bool {
	_, ok := t.stopWords[Normalize(word)]
	return ok
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[token]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a normalized lookup set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[Normalize(word)] = struct{}{}
	}
	return m
}
