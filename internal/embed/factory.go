package embed

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
	"github.com/Aman-CERP/ragcontext/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOpenAI calls an OpenAI-compatible /embeddings endpoint (default)
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama server
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings, offline
	ProviderStatic ProviderType = "static"

	// ProviderNone disables embeddings; retrieval is lexical-only
	ProviderNone ProviderType = "none"
)

// EnvProvider overrides the configured provider.
const EnvProvider = "RAGCONTEXT_EMBEDDER"

// ValidProviders lists the accepted provider names.
func ValidProviders() []string {
	return []string{string(ProviderOpenAI), string(ProviderOllama), string(ProviderStatic), string(ProviderNone)}
}

// ParseProvider parses a provider name. Empty selects openai.
func ParseProvider(s string) (ProviderType, error) {
	switch p := ProviderType(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProviderOpenAI, nil
	case ProviderOpenAI, ProviderOllama, ProviderStatic, ProviderNone:
		return p, nil
	default:
		return "", errors.ValidationError("unknown embedding provider", nil).
			WithDetail("provider", s).
			WithSuggestion("Use one of: " + strings.Join(ValidProviders(), ", "))
	}
}

// Options selects and configures an embedder.
type Options struct {
	Provider   ProviderType
	Model      string
	BaseURL    string
	APIKeyEnv  string
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int

	// QueryCacheSize sizes the in-memory LRU; negative disables it
	QueryCacheSize int

	// Guard limits provider traffic; nil disables the guard
	Guard *GuardConfig

	// Tokenizer is shared with the static embedder
	Tokenizer *chunk.Tokenizer
}

// NewEmbedder builds the configured embedder, wrapped in the guard and the
// query cache. ProviderNone returns (nil, nil). A missing OpenAI key returns
// ErrMissingCredential.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	if env := os.Getenv(EnvProvider); env != "" {
		p, err := ParseProvider(env)
		if err != nil {
			return nil, err
		}
		opts.Provider = p
	}

	if opts.Provider == "" {
		opts.Provider = ProviderOpenAI
	}

	var (
		e   Embedder
		err error
	)
	switch opts.Provider {
	case ProviderNone:
		return nil, nil
	case ProviderStatic:
		e = NewStaticEmbedder(opts.Tokenizer)
	case ProviderOllama:
		cfg := DefaultOllamaConfig()
		if opts.BaseURL != "" {
			cfg.Host = opts.BaseURL
		}
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.BatchSize > 0 {
			cfg.BatchSize = opts.BatchSize
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		cfg.MaxRetries = opts.MaxRetries
		e, err = NewOllamaEmbedder(ctx, cfg)
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    opts.BaseURL,
			Model:      opts.Model,
			APIKeyEnv:  opts.APIKeyEnv,
			BatchSize:  opts.BatchSize,
			Timeout:    opts.Timeout,
			MaxRetries: opts.MaxRetries,
		})
	default:
		_, err = ParseProvider(string(opts.Provider))
	}
	if err != nil {
		return nil, err
	}

	if opts.Guard != nil && opts.Provider != ProviderStatic {
		e = NewGuardedEmbedder(e, *opts.Guard)
	}
	if opts.QueryCacheSize >= 0 {
		e = NewCachedEmbedder(e, opts.QueryCacheSize)
	}

	slog.Debug("embedder_ready",
		slog.String("provider", string(opts.Provider)),
		slog.String("model", e.ModelName()),
		slog.Int("dimensions", e.Dimensions()))
	return e, nil
}
