package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendCorpus has one clear winner for "trabajo dignidad".
var backendCorpus = [][]string{
	{"economia", "pueblo", "nacion"},
	{"trabajo", "dignidad", "trabajo", "obrero"},
	{"pueblo", "justicia", "social"},
	{"trabajo", "campo"},
}

func TestBM25Backends_AgreeOnWinner(t *testing.T) {
	for _, backend := range ValidBM25Backends() {
		t.Run(backend, func(t *testing.T) {
			// Given: an in-memory index of the backend
			idx, err := NewBM25Index(backend, "", DefaultBM25Config())
			require.NoError(t, err)
			t.Cleanup(func() { _ = idx.Close() })
			require.NoError(t, idx.Index(context.Background(), docs(backendCorpus...)))

			// When
			results, err := idx.Search(context.Background(), []string{"trabajo", "dignidad"}, 10)

			// Then: both trabajo docs match (OR semantics), doc 1 first
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, 1, results[0].DocID)
			assert.Equal(t, 3, results[1].DocID)
			for _, r := range results {
				assert.Greater(t, r.Score, 0.0)
			}
			assert.Contains(t, results[0].MatchedTerms, "dignidad")

			stats := idx.Stats()
			assert.Equal(t, 4, stats.DocumentCount)
			assert.InDelta(t, 3.0, stats.AvgDocLength, 1e-9)
		})
	}
}

func TestBM25Backends_Limit(t *testing.T) {
	for _, backend := range ValidBM25Backends() {
		t.Run(backend, func(t *testing.T) {
			idx, err := NewBM25Index(backend, "", DefaultBM25Config())
			require.NoError(t, err)
			t.Cleanup(func() { _ = idx.Close() })
			require.NoError(t, idx.Index(context.Background(), docs(backendCorpus...)))

			results, err := idx.Search(context.Background(), []string{"pueblo", "trabajo"}, 1)

			require.NoError(t, err)
			assert.Len(t, results, 1)

			none, err := idx.Search(context.Background(), []string{"inexistente"}, 5)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestBM25Backends_ClosedIndex(t *testing.T) {
	for _, backend := range ValidBM25Backends() {
		t.Run(backend, func(t *testing.T) {
			idx, err := NewBM25Index(backend, "", DefaultBM25Config())
			require.NoError(t, err)
			require.NoError(t, idx.Close())
			require.NoError(t, idx.Close())

			_, err = idx.Search(context.Background(), []string{"x"}, 1)
			assert.ErrorIs(t, err, ErrIndexClosed)
			assert.Equal(t, &IndexStats{}, idx.Stats())
		})
	}
}

func TestBM25Backends_OnDisk(t *testing.T) {
	base := filepath.Join(t.TempDir(), "lexical")

	for _, backend := range []string{"bleve", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			// Given: two consecutive builds at the same path
			first, err := NewBM25Index(backend, base, DefaultBM25Config())
			require.NoError(t, err)
			require.NoError(t, first.Index(context.Background(), docs(backendCorpus...)))
			require.NoError(t, first.Close())

			second, err := NewBM25Index(backend, base, DefaultBM25Config())
			require.NoError(t, err)
			t.Cleanup(func() { _ = second.Close() })

			// Then: the rebuild starts empty
			assert.Equal(t, 0, second.Stats().DocumentCount)
		})
	}
}

func TestNewBM25Index_UnknownBackend(t *testing.T) {
	_, err := NewBM25Index("lucene", "", DefaultBM25Config())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown BM25 backend")
}

func TestGetBM25IndexPath(t *testing.T) {
	assert.Equal(t, "/d/lexical.bleve", GetBM25IndexPath("/d/lexical", "bleve"))
	assert.Equal(t, "/d/lexical.db", GetBM25IndexPath("/d/lexical", "sqlite"))
	assert.Empty(t, GetBM25IndexPath("/d/lexical", "memory"))
	assert.Empty(t, GetBM25IndexPath("", "sqlite"))
	assert.Equal(t, filepath.Join("data", "lexical"), DefaultBM25BasePath("data"))
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"trabajo" OR "pueblo"`, ftsQuery([]string{"trabajo", "pueblo", "trabajo"}))
	assert.Empty(t, ftsQuery(nil))
}

func TestTermTokenizer(t *testing.T) {
	stream := (&termTokenizer{}).Tokenize([]byte("uno  dos tres"))

	require.Len(t, stream, 3)
	assert.Equal(t, "dos", string(stream[1].Term))
	assert.Equal(t, 5, stream[1].Start)
	assert.Equal(t, 8, stream[1].End)
	assert.Equal(t, 3, stream[2].Position)
}
