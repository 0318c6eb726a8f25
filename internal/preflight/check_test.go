package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragcontext/internal/corpus"
	"github.com/Aman-CERP/ragcontext/internal/embed"
	"github.com/Aman-CERP/ragcontext/internal/store"
)

// failingEmbedder always errors.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("connection refused")
}
func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("connection refused")
}
func (failingEmbedder) Dimensions() int                { return 0 }
func (failingEmbedder) ModelName() string              { return "broken" }
func (failingEmbedder) Available(context.Context) bool { return false }
func (failingEmbedder) Close() error                   { return nil }

func writeCorpus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONStatusName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "corpus", Status: StatusWarn})

	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"WARN"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestSummaryStatus(t *testing.T) {
	c := New()

	assert.Equal(t, "ready", c.SummaryStatus([]CheckResult{{Status: StatusPass}}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{{Status: StatusPass}, {Status: StatusWarn}}))
	assert.Equal(t, "ready_with_warnings", c.SummaryStatus([]CheckResult{{Status: StatusFail}}))
	assert.Equal(t, "failed", c.SummaryStatus([]CheckResult{{Status: StatusWarn}, {Status: StatusFail, Required: true}}))
}

// ============================================================================
// Corpus
// ============================================================================

func TestCheckCorpus(t *testing.T) {
	c := New()

	t.Run("valid", func(t *testing.T) {
		path := writeCorpus(t, `[{"texto":["a","b"]},{"texto":"c"}]`)
		r := c.CheckCorpus(path, corpus.DefaultMetadata())
		assert.Equal(t, StatusPass, r.Status)
		assert.Equal(t, "2 documents, 3 lines", r.Message)
	})

	t.Run("empty", func(t *testing.T) {
		r := c.CheckCorpus(writeCorpus(t, `[]`), corpus.DefaultMetadata())
		assert.Equal(t, StatusWarn, r.Status)
	})

	t.Run("missing", func(t *testing.T) {
		r := c.CheckCorpus(filepath.Join(t.TempDir(), "none.json"), corpus.DefaultMetadata())
		assert.True(t, r.IsCritical())
		assert.Contains(t, r.Message, "not found")
		assert.Contains(t, r.Fix, "ragcontext ingest")
	})

	t.Run("malformed", func(t *testing.T) {
		r := c.CheckCorpus(writeCorpus(t, `{"texto":1}`), corpus.DefaultMetadata())
		assert.True(t, r.IsCritical())
	})
}

// ============================================================================
// Data directory
// ============================================================================

func TestCheckWritePermissions_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	r := New().CheckWritePermissions(dir)

	assert.Equal(t, StatusPass, r.Status)
	assert.DirExists(t, dir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file must be removed")
}

func TestCheckDiskSpace(t *testing.T) {
	r := New().CheckDiskSpace(t.TempDir())

	assert.NotEqual(t, StatusWarn, r.Status)
	assert.Contains(t, r.Message, "free")
}

func TestCheckDiskSpace_MissingDirUsesParent(t *testing.T) {
	// Given: a data dir that has not been created yet
	parent := t.TempDir()

	// When: checking free space
	r := New().CheckDiskSpace(filepath.Join(parent, "data", "ragcontext"))

	// Then: the closest existing parent is measured
	assert.Equal(t, parent, r.Details)
	assert.Contains(t, r.Message, "free")
}

func TestCheckDiskSpace_FileInPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	r := New().CheckDiskSpace(filepath.Join(file, "data"))

	assert.True(t, r.IsCritical())
}

// ============================================================================
// Embedding cache
// ============================================================================

func TestCheckEmbeddingCache(t *testing.T) {
	c := New()
	corpusPath := writeCorpus(t, `[{"texto":"hola"}]`)
	cachePath := filepath.Join(t.TempDir(), "cache.json")

	// Given: no cache file yet
	r := c.CheckEmbeddingCache(cachePath, "m1", corpusPath)
	assert.Equal(t, StatusWarn, r.Status)
	assert.Equal(t, "run 'ragcontext warm'", r.Fix)

	// When: a cache for this corpus revision is written
	cache := store.NewEmbeddingCache(cachePath, "m1", corpus.Fingerprint(corpusPath))
	cache.Put(0, []float32{1, 0})
	require.NoError(t, cache.Flush())

	// Then: it passes for the same model
	r = c.CheckEmbeddingCache(cachePath, "m1", corpusPath)
	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, "1 vectors for m1", r.Message)

	// And: another model finds it stale
	r = c.CheckEmbeddingCache(cachePath, "m2", corpusPath)
	assert.Equal(t, StatusWarn, r.Status)
	assert.Contains(t, r.Message, "rebuilt")
}

func TestCheckEmbeddingCache_NoPath(t *testing.T) {
	r := New().CheckEmbeddingCache("", "m1", "")

	assert.Equal(t, StatusWarn, r.Status)
	assert.False(t, r.IsCritical())
}

// ============================================================================
// Provider
// ============================================================================

func TestCheckProvider(t *testing.T) {
	c := New()
	ctx := context.Background()

	none := c.CheckProvider(ctx, nil)
	assert.Equal(t, StatusWarn, none.Status)
	assert.Contains(t, none.Message, "lexical-only")

	ok := c.CheckProvider(ctx, embed.NewStaticEmbedder(nil))
	assert.Equal(t, StatusPass, ok.Status)
	assert.Contains(t, ok.Message, embed.StaticModelName)

	bad := c.CheckProvider(ctx, failingEmbedder{})
	assert.Equal(t, StatusFail, bad.Status)
	assert.False(t, bad.IsCritical())
	assert.Contains(t, bad.Message, "connection refused")
}

// ============================================================================
// RunAll / PrintResults
// ============================================================================

func TestRunAll_PrintResults(t *testing.T) {
	// Given: a valid corpus, a fresh data dir and no provider
	var buf bytes.Buffer
	c := New(WithOutput(&buf), WithVerbose(true))
	dataDir := t.TempDir()
	target := Target{
		CorpusPath: writeCorpus(t, `[{"texto":"la justicia social"}]`),
		Defaults:   corpus.DefaultMetadata(),
		DataDir:    dataDir,
		CachePath:  filepath.Join(dataDir, "cache.json"),
		CacheModel: "m1",
	}

	// When: every check runs
	results := c.RunAll(context.Background(), target)
	c.PrintResults(results)

	// Then: nothing critical, warnings for cache and provider
	require.Len(t, results, 5)
	assert.False(t, c.HasCriticalFailures(results))
	out := buf.String()
	assert.Contains(t, out, "[PASS] corpus: 1 documents, 1 lines")
	assert.Contains(t, out, "Status: READY_WITH_WARNINGS")
	assert.Contains(t, out, "To fix:")
	assert.Contains(t, out, "  - embedding_cache: run 'ragcontext warm'")
	assert.Contains(t, out, "  - embedding_provider: set OPENAI_API_KEY")
	assert.Contains(t, out, dataDir)
}
