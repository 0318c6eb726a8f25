package embed

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/Aman-CERP/ragcontext/internal/errors"
)

// GuardConfig bounds how hard the provider is driven.
type GuardConfig struct {
	// RequestsPerSecond caps request rate; 0 disables limiting
	RequestsPerSecond float64
	// Burst allows short spikes above the rate
	Burst int
	// MaxFailures opens the circuit after this many consecutive failures
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before a probe
	ResetTimeout time.Duration
}

// DefaultGuardConfig returns defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RequestsPerSecond: 5,
		Burst:             2,
		MaxFailures:       5,
		ResetTimeout:      30 * time.Second,
	}
}

// GuardedEmbedder rate-limits provider calls and stops calling a provider
// that keeps failing. An open circuit surfaces as ErrCircuitOpen, which the
// engine treats like any provider failure and falls back to lexical ranking.
type GuardedEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
	breaker *errors.CircuitBreaker
}

var _ Embedder = (*GuardedEmbedder)(nil)

// NewGuardedEmbedder wraps inner.
func NewGuardedEmbedder(inner Embedder, cfg GuardConfig, opts ...errors.CircuitBreakerOption) *GuardedEmbedder {
	g := &GuardedEmbedder{inner: inner}
	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	cbOpts := []errors.CircuitBreakerOption{
		errors.WithMaxFailures(cfg.MaxFailures),
		errors.WithResetTimeout(cfg.ResetTimeout),
	}
	g.breaker = errors.NewCircuitBreaker("embed:"+inner.ModelName(), append(cbOpts, opts...)...)
	return g
}

// Breaker exposes the circuit breaker for status reporting.
func (g *GuardedEmbedder) Breaker() *errors.CircuitBreaker { return g.breaker }

func (g *GuardedEmbedder) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// Embed generates embedding for a single text
func (g *GuardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return errors.CircuitExecute(g.breaker, func() ([]float32, error) {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		return g.inner.Embed(ctx, text)
	})
}

// EmbedBatch generates embeddings for multiple texts
func (g *GuardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return errors.CircuitExecute(g.breaker, func() ([][]float32, error) {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		return g.inner.EmbedBatch(ctx, texts)
	})
}

// Dimensions delegates to the wrapped embedder.
func (g *GuardedEmbedder) Dimensions() int { return g.inner.Dimensions() }

// ModelName delegates to the wrapped embedder.
func (g *GuardedEmbedder) ModelName() string { return g.inner.ModelName() }

// Available is false while the circuit is open.
func (g *GuardedEmbedder) Available(ctx context.Context) bool {
	return g.breaker.State() != errors.StateOpen && g.inner.Available(ctx)
}

// Close closes the wrapped embedder.
func (g *GuardedEmbedder) Close() error { return g.inner.Close() }
