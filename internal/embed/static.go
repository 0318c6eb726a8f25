package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
)

// StaticModelName identifies vectors produced by StaticEmbedder in the cache.
const StaticModelName = "static-hash-v1"

// Weights for vector generation
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// StaticEmbedder generates embeddings by feature hashing. It needs no network
// and no model, so it backs offline runs and tests. Vectors are deterministic
// and share the lexical tokenizer, which keeps accent-folded Spanish words
// aligned with the BM25 side.
type StaticEmbedder struct {
	tok *chunk.Tokenizer

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder. A nil tokenizer selects the
// default Spanish stop words.
func NewStaticEmbedder(tok *chunk.Tokenizer) *StaticEmbedder {
	if tok == nil {
		tok = chunk.NewTokenizer(nil)
	}
	return &StaticEmbedder{tok: tok}
}

// Embed generates embedding for a single text.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrEmbedderClosed
	}
	if strings.TrimSpace(text) == "" {
		return make([]float32, StaticDimensions), nil
	}
	return normalizeVector(e.generateVector(text)), nil
}

func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	for _, token := range e.tok.Tokenize(text) {
		vector[hashToIndex(token, StaticDimensions)] += tokenWeight
	}
	for _, gram := range extractNgrams(compact(chunk.Normalize(text)), ngramSize) {
		vector[hashToIndex(gram, StaticDimensions)] += ngramWeight
	}
	return vector
}

// compact keeps letters and digits only.
func compact(text string) []rune {
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return out
}

// extractNgrams returns n-rune sliding windows.
func extractNgrams(runes []rune, n int) []string {
	if len(runes) < n {
		return []string{}
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i <= len(runes)-n; i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

// hashToIndex uses FNV-64 to map a string to an index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return StaticModelName }

// Available reports true until Close.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
