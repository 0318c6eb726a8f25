package embed

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Aman-CERP/ragcontext/internal/errors"
)

// OpenAI defaults
const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "text-embedding-3-small"
	DefaultOpenAIKeyEnv  = "OPENAI_API_KEY"
)

// knownOpenAIDimensions lets Dimensions answer before the first request.
var knownOpenAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	// BaseURL of the API. A URL ending in /embeddings is accepted and trimmed.
	BaseURL string

	// Model is the embedding model name
	Model string

	// APIKey takes precedence over APIKeyEnv
	APIKey string

	// APIKeyEnv names the environment variable holding the key
	APIKeyEnv string

	// BatchSize caps texts per request
	BatchSize int

	// Timeout bounds one request
	Timeout time.Duration

	// MaxRetries for transient failures
	MaxRetries int
}

// DefaultOpenAIConfig returns defaults.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:    DefaultOpenAIBaseURL,
		Model:      DefaultOpenAIModel,
		APIKeyEnv:  DefaultOpenAIKeyEnv,
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		MaxRetries: 2,
	}
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint through
// langchaingo.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
	config   OpenAIConfig
	logger   *slog.Logger

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// ResolveAPIKey returns the configured key, or the value of the key
// environment variable.
func (c OpenAIConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	env := c.APIKeyEnv
	if env == "" {
		env = DefaultOpenAIKeyEnv
	}
	return strings.TrimSpace(os.Getenv(env))
}

// NewOpenAIEmbedder builds the embedder. It returns ErrMissingCredential when
// no key is available; no request is made.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	def := DefaultOpenAIConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/embeddings")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	cfg.BatchSize = min(cfg.BatchSize, MaxBatchSize)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	key := cfg.ResolveAPIKey()
	if key == "" {
		return nil, ErrMissingCredential
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(key),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, errors.ProviderError("failed to create OpenAI client", err)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(cfg.BatchSize),
	)
	if err != nil {
		return nil, errors.ProviderError("failed to create embedder", err)
	}

	return &OpenAIEmbedder{
		embedder: emb,
		config:   cfg,
		logger:   slog.Default().With("component", "openai-embedder"),
		dims:     knownOpenAIDimensions[cfg.Model],
	}, nil
}

// Embed generates embedding for a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order. The provider must answer with exactly
// one vector per text.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrEmbedderClosed
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.logger.Debug("generating embeddings", "count", len(texts), "model", e.config.Model)

	cfg := errors.DefaultRetryConfig()
	cfg.MaxRetries = e.config.MaxRetries

	vecs, err := errors.RetryWithResult(ctx, cfg, func() ([][]float32, error) {
		reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		out, err := e.embedder.EmbedDocuments(reqCtx, texts)
		if err != nil {
			return nil, classifyOpenAIError(reqCtx, err)
		}
		return out, nil
	})
	if err != nil {
		e.logger.Warn("embedding request failed", "count", len(texts), "err", err)
		return nil, err
	}
	if err := checkBatch(texts, vecs); err != nil {
		return nil, err
	}

	if e.Dimensions() == 0 && len(vecs[0]) > 0 {
		e.mu.Lock()
		e.dims = len(vecs[0])
		e.mu.Unlock()
	}
	return vecs, nil
}

// classifyOpenAIError maps client errors onto error codes. The client reports
// HTTP failures as text, so the status is recovered from the message.
func classifyOpenAIError(ctx context.Context, err error) error {
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.New(errors.ErrCodeProviderTimeout, "embedding request timed out", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return errors.New(errors.ErrCodeRateLimited, "embedding provider rate limited the request", err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api key"):
		return errors.New(errors.ErrCodeMissingCredential, "embedding provider rejected the credential", err).
			WithSuggestion("Check the value of " + DefaultOpenAIKeyEnv)
	case strings.Contains(msg, "status code: 5") || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host"):
		return errors.New(errors.ErrCodeProviderUnavailable, "embedding provider unavailable", err)
	default:
		return errors.New(errors.ErrCodeProviderResponse, "embedding request failed", err)
	}
}

// Dimensions returns the embedding dimension, 0 until known.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier
func (e *OpenAIEmbedder) ModelName() string { return e.config.Model }

// Available reports whether the embedder can take requests. It does not
// probe the network.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
