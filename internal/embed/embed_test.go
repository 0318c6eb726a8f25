package embed

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragcontext/internal/errors"
)

// countingEmbedder records calls and returns a fixed vector per text.
type countingEmbedder struct {
	calls  atomic.Int32
	texts  atomic.Int32
	err    error
	closed bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.texts.Add(int32(len(texts)))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int                  { return 2 }
func (c *countingEmbedder) ModelName() string                { return "counting" }
func (c *countingEmbedder) Available(_ context.Context) bool { return true }
func (c *countingEmbedder) Close() error                     { c.closed = true; return nil }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ============================================================================
// Static embedder
// ============================================================================

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder(nil)
	ctx := context.Background()

	a, err := e.Embed(ctx, "La comunidad organizada")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "La comunidad organizada")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestStaticEmbedder_AccentInsensitive(t *testing.T) {
	e := NewStaticEmbedder(nil)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "Nación")
	b, _ := e.Embed(ctx, "nacion")
	assert.Equal(t, a, b)
}

func TestStaticEmbedder_RelatedTextsScoreHigher(t *testing.T) {
	e := NewStaticEmbedder(nil)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "justicia social para los trabajadores")
	near, _ := e.Embed(ctx, "la justicia social y los trabajadores argentinos")
	far, _ := e.Embed(ctx, "el petróleo y la energía nuclear")

	assert.Greater(t, cosine(q, near), cosine(q, far))
}

func TestStaticEmbedder_BlankTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(nil)
	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, v, StaticDimensions)
	assert.Zero(t, cosine(v, v))
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder(nil)
	require.NoError(t, e.Close())

	_, err := e.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrEmbedderClosed)
	assert.False(t, e.Available(context.Background()))
}

// ============================================================================
// Cached embedder
// ============================================================================

func TestCachedEmbedder_ReusesVectors(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	// Given one text already embedded
	_, err := c.Embed(ctx, "uno")
	require.NoError(t, err)

	// When a batch repeats it next to new texts
	vecs, err := c.EmbedBatch(ctx, []string{"uno", "dos", "tres"})
	require.NoError(t, err)

	// Then only the new texts reach the provider, in order
	require.Len(t, vecs, 3)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, int32(3), inner.texts.Load())
	assert.Equal(t, []float32{4, 1}, vecs[2])
	assert.Equal(t, 3, c.Len())
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.ProviderError("down", nil)}
	c := NewCachedEmbedder(inner, 8)

	_, err := c.Embed(context.Background(), "uno")
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCachedEmbedder_CloseClosesInner(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 0)
	require.NoError(t, c.Close())
	assert.True(t, inner.closed)
}

// ============================================================================
// Guarded embedder
// ============================================================================

func TestGuardedEmbedder_OpensCircuitAfterFailures(t *testing.T) {
	inner := &countingEmbedder{err: errors.New(errors.ErrCodeProviderUnavailable, "down", nil)}
	g := NewGuardedEmbedder(inner, GuardConfig{MaxFailures: 2, ResetTimeout: 1e12})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.EmbedBatch(ctx, []string{"x"})
		require.Error(t, err)
	}

	// Third call is refused without reaching the provider
	_, err := g.EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, errors.ErrCircuitOpen)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.False(t, g.Available(ctx))
}

func TestGuardedEmbedder_PassesThrough(t *testing.T) {
	inner := &countingEmbedder{}
	g := NewGuardedEmbedder(inner, DefaultGuardConfig())

	vecs, err := g.EmbedBatch(context.Background(), []string{"ab", "abc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 1}, {3, 1}}, vecs)
	assert.Equal(t, "counting", g.ModelName())
}

func TestGuardedEmbedder_CancelledWaitDoesNotTrip(t *testing.T) {
	inner := &countingEmbedder{}
	g := NewGuardedEmbedder(inner, GuardConfig{RequestsPerSecond: 0.001, Burst: 1, MaxFailures: 1})

	// The first call consumes the only token
	_, err := g.Embed(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Embed(ctx, "b")
	require.Error(t, err)
	assert.Equal(t, errors.StateClosed, g.Breaker().State())
}

// ============================================================================
// Factory
// ============================================================================

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderType
		wantErr bool
	}{
		{"", ProviderOpenAI, false},
		{"OpenAI", ProviderOpenAI, false},
		{" ollama ", ProviderOllama, false},
		{"static", ProviderStatic, false},
		{"none", ProviderNone, false},
		{"mlx", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvider(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEmbedder_None(t *testing.T) {
	t.Setenv(EnvProvider, "")
	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderNone})
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestNewEmbedder_StaticIsCached(t *testing.T) {
	t.Setenv(EnvProvider, "")
	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderStatic})
	require.NoError(t, err)

	c, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	_, ok = c.Unwrap().(*StaticEmbedder)
	assert.True(t, ok)
	assert.Equal(t, StaticModelName, e.ModelName())
}

func TestNewEmbedder_OpenAIMissingKey(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv("RAGCONTEXT_TEST_KEY", "")

	_, err := NewEmbedder(context.Background(), Options{Provider: ProviderOpenAI, APIKeyEnv: "RAGCONTEXT_TEST_KEY"})
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestNewEmbedder_EnvOverride(t *testing.T) {
	t.Setenv(EnvProvider, "static")
	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderOpenAI, QueryCacheSize: -1})
	require.NoError(t, err)
	_, ok := e.(*StaticEmbedder)
	assert.True(t, ok)
}
