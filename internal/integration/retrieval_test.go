// Package integration exercises the retrieval pipeline end to end: corpus
// files on disk, the engine with each lexical backend, the MCP surface and
// the corpus watcher.
package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragcontext/internal/config"
	"github.com/Aman-CERP/ragcontext/internal/corpus"
	"github.com/Aman-CERP/ragcontext/internal/embed"
	ragmcp "github.com/Aman-CERP/ragcontext/internal/mcp"
	"github.com/Aman-CERP/ragcontext/internal/search"
	"github.com/Aman-CERP/ragcontext/internal/store"
)

const corpusJSON = `[
  {
    "autor": "Juan Domingo Perón",
    "tipo": "discurso",
    "fecha": "1950-05-01",
    "tema": "Trabajo",
    "texto": [
      "Los trabajadores argentinos han conquistado derechos que ningún gobierno anterior quiso reconocer.",
      "La justicia social es la base de una nación que no admite privilegios para unos pocos."
    ]
  },
  {
    "autor": "Juan Domingo Perón",
    "tipo": "carta",
    "fecha": "1952-07-26",
    "tema": "Economía",
    "texto": "La independencia económica exige una industria nacional fuerte y un comercio exterior soberano al servicio del pueblo."
  },
  {
    "tipo": "entrevista",
    "fecha": "1973-06-20",
    "tema": "Juventud",
    "texto": ["La juventud maravillosa tiene en sus manos el destino de la patria y la justicia social."]
  }
]`

func writeCorpus(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "peron_docs.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newEngine builds an engine with the static embedder so the semantic path
// runs offline.
func newEngine(t *testing.T, backend store.BM25Backend, cachePath string) *search.Engine {
	t.Helper()
	builder := corpus.NewBuilder(nil, nil, nil)
	cfg := search.DefaultEngineConfig()
	cfg.LexicalBackend = string(backend)
	cfg.LexicalBasePath = filepath.Join(t.TempDir(), "lexical")
	cfg.CachePath = cachePath
	e := search.NewEngine(cfg,
		search.WithBuilder(builder),
		search.WithEmbedder(embed.NewStaticEmbedder(builder.Tokenizer())))
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// =============================================================================
// Engine over every lexical backend
// =============================================================================

func TestRetrieval_AllBackends(t *testing.T) {
	for _, backend := range []store.BM25Backend{store.BM25BackendMemory, store.BM25BackendBleve, store.BM25BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			// Given: an engine loaded from a corpus file
			dir := t.TempDir()
			path := writeCorpus(t, dir, corpusJSON)
			e := newEngine(t, backend, filepath.Join(dir, "embeddings.json"))
			require.NoError(t, e.LoadCorpus(context.Background(), path))

			// When: asking about social justice
			res := e.Retrieve(context.Background(), "¿Qué es la justicia social?", search.SearchOptions{TopK: 2})

			// Then: reranked passages mentioning it come back, formatted
			require.NotEmpty(t, res.Chunks)
			assert.Equal(t, search.ModeSemantic, res.Mode)
			assert.Empty(t, res.Fallback)
			assert.LessOrEqual(t, len(res.Chunks), 2)
			for _, c := range res.Chunks {
				assert.Contains(t, strings.ToLower(c.Chunk.Text), "justicia social")
			}
			assert.True(t, strings.HasPrefix(res.Context(), "["))

			st := e.Status()
			assert.Equal(t, 3, st.Documents)
			assert.Equal(t, string(backend), st.LexicalBackend)
		})
	}
}

func TestRetrieval_DefaultsFillMissingMetadata(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, store.BM25BackendMemory, "")
	require.NoError(t, e.LoadCorpus(context.Background(), writeCorpus(t, dir, corpusJSON)))

	res := e.Retrieve(context.Background(), "juventud maravillosa", search.SearchOptions{TopK: 1, LexicalOnly: true})

	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "Juan Domingo Perón", res.Chunks[0].Chunk.Author)
	assert.Equal(t, "[entrevista · 1973-06-20 · Juventud] "+res.Chunks[0].Chunk.Text, res.Context())
	assert.Equal(t, search.FallbackLexicalOnly, res.Fallback)
}

func TestRetrieval_CacheSurvivesRestart(t *testing.T) {
	// Given: a warmed cache written by one engine
	dir := t.TempDir()
	path := writeCorpus(t, dir, corpusJSON)
	cachePath := filepath.Join(dir, "embeddings.json")

	first := newEngine(t, store.BM25BackendMemory, cachePath)
	require.NoError(t, first.LoadCorpus(context.Background(), path))
	stats, err := first.Warm(context.Background(), search.WarmOptions{BatchSize: 2, Workers: 2})
	require.NoError(t, err)
	require.Equal(t, stats.Total, stats.Embedded)
	require.NoError(t, first.Close())

	// When: a second engine loads the same corpus
	second := newEngine(t, store.BM25BackendMemory, cachePath)
	require.NoError(t, second.LoadCorpus(context.Background(), path))

	// Then: every chunk already has a vector
	st := second.Status()
	assert.Equal(t, st.Chunks, st.CachedEmbeddings)
}

// =============================================================================
// Ingest to retrieval
// =============================================================================

func TestRetrieval_FromIngestedFolder(t *testing.T) {
	// Given: a folder of plain text speeches converted into a corpus file
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "1951.txt"),
		[]byte("Compañeros: la tercera posición no es capitalista ni comunista.\n\nEs una doctrina nacional."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "1954.md"),
		[]byte("El pueblo organizado es invencible."), 0o644))

	docs, err := corpus.Ingest(context.Background(), src, corpus.DefaultMetadata())
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, corpus.WriteJSON(out, docs))

	// When: the engine loads it and a query runs
	e := newEngine(t, store.BM25BackendMemory, "")
	require.NoError(t, e.LoadCorpus(context.Background(), out))
	res := e.Retrieve(context.Background(), "tercera posición", search.SearchOptions{})

	// Then: the passage is found
	require.NotEmpty(t, res.Chunks)
	assert.Contains(t, res.Chunks[0].Chunk.Text, "tercera posición")
}

// =============================================================================
// MCP over the real engine
// =============================================================================

func TestRetrieval_MCPRoundTrip(t *testing.T) {
	// Given: a server over a loaded engine, connected in memory
	dir := t.TempDir()
	path := writeCorpus(t, dir, corpusJSON)
	e := newEngine(t, store.BM25BackendMemory, "")
	require.NoError(t, e.LoadCorpus(context.Background(), path))

	srv, err := ragmcp.NewServer(e, config.NewConfig(), path)
	require.NoError(t, err)

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "integration", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	// When: relevant_context is called
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      ragmcp.ToolRelevantContext,
		Arguments: map[string]any{"message": "industria nacional", "top_k": 1},
	})

	// Then: one formatted passage comes back
	require.NoError(t, err)
	require.False(t, res.IsError)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(text.Text, "[carta · 1952-07-26 · Economía] "))

	// When: corpus_status is called
	status, err := session.CallTool(ctx, &mcp.CallToolParams{Name: ragmcp.ToolCorpusStatus})
	require.NoError(t, err)
	raw, err := json.Marshal(status.StructuredContent)
	require.NoError(t, err)
	var out ragmcp.CorpusStatusOutput
	require.NoError(t, json.Unmarshal(raw, &out))

	// Then: it reflects the loaded corpus
	assert.Equal(t, 3, out.Corpus.Documents)
	assert.Equal(t, 1, out.Generation)
}
