package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/ragcontext/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint
	DefaultOllamaHost = "http://localhost:11434"
	// DefaultOllamaModel is a multilingual embedding model that handles Spanish prose
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaConfig configures the Ollama embedder. Zero fields take the
// defaults of DefaultOllamaConfig.
type OllamaConfig struct {
	Host  string
	Model string
	// FallbackModels are tried in order if Model is not installed
	FallbackModels []string
	// Dimensions overrides detection; 0 probes the model at startup
	Dimensions int
	BatchSize  int
	Timeout    time.Duration // per request
	// ConnectTimeout bounds model discovery at startup
	ConnectTimeout time.Duration
	MaxRetries     int
	PoolSize       int
	// SkipHealthCheck skips model discovery (tests)
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns the local-server defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultOllamaModel,
		FallbackModels: []string{"mxbai-embed-large", "bge-m3"},
		BatchSize:      DefaultBatchSize,
		Timeout:        DefaultTimeout,
		ConnectTimeout: 10 * time.Second,
		MaxRetries:     2,
		PoolSize:       4,
	}
}

// Wire types of /api/embed and /api/tags.
type (
	ollamaEmbedRequest struct {
		Model string `json:"model"`
		Input any    `json:"input"` // string, or []string for a batch
	}
	ollamaEmbedResponse struct {
		Model      string      `json:"model"`
		Embeddings [][]float64 `json:"embeddings"`
	}
	ollamaTagsResponse struct {
		Models []ollamaModel `json:"models"`
	}
	ollamaModel struct {
		Name string `json:"name"`
	}
)

// OllamaEmbedder generates embeddings using Ollama's HTTP API
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	modelName string

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama embedder and, unless disabled, resolves
// an installed model and its dimension.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	def := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.FallbackModels == nil {
		cfg.FallbackModels = def.FallbackModels
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	cfg.BatchSize = min(cfg.BatchSize, MaxBatchSize)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}

	// No client-level timeout: each request carries its own context deadline.
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}

	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()

		name, err := e.findAvailableModel(checkCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, err
		}
		e.modelName = name

		if e.dims == 0 {
			vecs, err := e.doEmbed(checkCtx, []string{"dimension detection"})
			if err != nil {
				transport.CloseIdleConnections()
				return nil, err
			}
			if len(vecs) == 0 || len(vecs[0]) == 0 {
				transport.CloseIdleConnections()
				return nil, errors.New(errors.ErrCodeProviderResponse, "ollama returned an empty embedding", nil)
			}
			e.dims = len(vecs[0])
		}
	}

	return e, nil
}

func (e *OllamaEmbedder) listModels(ctx context.Context) ([]ollamaModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.ProviderError("failed to connect to Ollama", err).
			WithDetail("host", e.config.Host).
			WithSuggestion("Start Ollama with 'ollama serve' or choose another embedding provider")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.New(errors.ErrCodeProviderResponse, "failed to decode model list", err)
	}
	return result.Models, nil
}

// findAvailableModel matches the configured model, then the fallbacks, by
// full name or by name without tag.
func (e *OllamaEmbedder) findAvailableModel(ctx context.Context) (string, error) {
	models, err := e.listModels(ctx)
	if err != nil {
		return "", err
	}

	available := make(map[string]string)
	for _, m := range models {
		name := strings.ToLower(m.Name)
		available[name] = m.Name
		base := strings.Split(name, ":")[0]
		if _, exists := available[base]; !exists {
			available[base] = m.Name
		}
	}

	for _, candidate := range append([]string{e.config.Model}, e.config.FallbackModels...) {
		name := strings.ToLower(candidate)
		if actual, ok := available[name]; ok {
			return actual, nil
		}
		if actual, ok := available[strings.Split(name, ":")[0]]; ok {
			return actual, nil
		}
	}

	return "", errors.ProviderError("no embedding model available in Ollama", nil).
		WithDetail("model", e.config.Model).
		WithSuggestion("Run 'ollama pull " + e.config.Model + "'")
}

func (e *OllamaEmbedder) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

// Embed generates embedding for a single text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in BatchSize groups. Blank texts get an empty
// vector without a request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.isClosed() {
		return nil, ErrEmbedderClosed
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var (
		idx   []int
		batch []string
	)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = []float32{}
			continue
		}
		idx = append(idx, i)
		batch = append(batch, text)
	}

	for start := 0; start < len(batch); start += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.config.BatchSize, len(batch))

		vecs, err := e.doEmbedWithRetry(ctx, batch[start:end])
		if err != nil {
			return nil, err
		}
		if err := checkBatch(batch[start:end], vecs); err != nil {
			return nil, err
		}
		for j, v := range vecs {
			results[idx[start+j]] = v
		}
	}

	if e.Dimensions() == 0 {
		for _, v := range results {
			if len(v) > 0 {
				e.mu.Lock()
				e.dims = len(v)
				e.mu.Unlock()
				break
			}
		}
	}
	return results, nil
}

func (e *OllamaEmbedder) doEmbedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	cfg := errors.DefaultRetryConfig()
	cfg.MaxRetries = e.config.MaxRetries

	attempt := 0
	return errors.RetryWithResult(ctx, cfg, func() ([][]float32, error) {
		attempt++
		reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()

		vecs, err := e.doEmbed(reqCtx, texts)
		if err != nil {
			slog.Debug("embedding_attempt_failed",
				slog.String("provider", "ollama"),
				slog.Int("attempt", attempt),
				slog.Int("texts_count", len(texts)),
				slog.String("error", err.Error()))
		}
		return vecs, err
	})
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, errors.InternalError("failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.ErrCodeProviderTimeout, "ollama request timed out", err)
		}
		return nil, errors.ProviderError("ollama request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var apiResult ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResult); err != nil {
		return nil, errors.New(errors.ErrCodeProviderResponse, "failed to decode embedding response", err)
	}

	out := make([][]float32, len(apiResult.Embeddings))
	for i, emb := range apiResult.Embeddings {
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		out[i] = normalizeVector(vec)
	}
	return out, nil
}

// statusError maps a non-200 response to a coded error.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("provider returned status %d", resp.StatusCode)

	code := errors.ErrCodeProviderResponse
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		code = errors.ErrCodeRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		code = errors.ErrCodeMissingCredential
	case resp.StatusCode >= 500:
		code = errors.ErrCodeProviderUnavailable
	}

	return errors.New(code, msg, nil).
		WithDetail("status", strconv.Itoa(resp.StatusCode)).
		WithDetail("body", strings.TrimSpace(string(body)))
}

// Dimensions returns the embedding dimension, 0 until known.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier
func (e *OllamaEmbedder) ModelName() string {
	return e.modelName
}

// Available checks if Ollama is running and the model is installed
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.isClosed() {
		return false
	}
	models, err := e.listModels(ctx)
	if err != nil {
		return false
	}
	want := strings.ToLower(e.modelName)
	for _, m := range models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == strings.Split(want, ":")[0] {
			return true
		}
	}
	return false
}

// Close releases idle connections. It is idempotent.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
