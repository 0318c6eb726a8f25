package embed

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/Aman-CERP/ragcontext/internal/errors"
)

// Common embedding constants
const (
	// MaxBatchSize caps a single provider request
	MaxBatchSize = 256

	// DefaultBatchSize is the default batch size for embedding requests
	DefaultBatchSize = 64

	// DefaultTimeout bounds one provider request, retries included
	DefaultTimeout = 25 * time.Second

	// StaticDimensions is the embedding dimension of the static embedder
	StaticDimensions = 256
)

// ErrEmbedderClosed is returned by embedders after Close.
var ErrEmbedderClosed = errors.New(errors.ErrCodeProviderUnavailable, "embedder is closed", nil)

// ErrMissingCredential signals that a provider cannot run without a key.
// The engine treats it as "no provider": retrieval is lexical-only.
var ErrMissingCredential = errors.New(errors.ErrCodeMissingCredential, "embedding provider credential not set", nil)

// Embedder generates vector embeddings for text
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per text, in order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension (0 if not yet known)
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// checkBatch verifies a provider answered with one non-empty vector per text.
func checkBatch(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return errors.New(errors.ErrCodeProviderResponse,
			"provider returned a different number of embeddings than requested", nil).
			WithDetail("requested", strconv.Itoa(len(texts))).
			WithDetail("returned", strconv.Itoa(len(vectors)))
	}
	return nil
}
