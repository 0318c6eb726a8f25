package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragcontext/internal/config"
	ragmcp "github.com/Aman-CERP/ragcontext/internal/mcp"
	"github.com/Aman-CERP/ragcontext/internal/search"
	"github.com/Aman-CERP/ragcontext/internal/store"
	"github.com/Aman-CERP/ragcontext/internal/watcher"
)

const updatedCorpusJSON = `[
  {
    "tipo": "discurso",
    "fecha": "1974-06-12",
    "tema": "Despedida",
    "texto": ["Yo llevo en mis oídos la más maravillosa música, que para mí es la palabra del pueblo argentino."]
  }
]`

// TestWatcher_CorpusChangeRebuildsIndex runs the serve wiring: a corpus
// watcher whose reload goes through the MCP server.
func TestWatcher_CorpusChangeRebuildsIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a served engine watching its corpus file
	dir := t.TempDir()
	path := writeCorpus(t, dir, corpusJSON)
	e := newEngine(t, store.BM25BackendMemory, "")
	require.NoError(t, e.LoadCorpus(context.Background(), path))
	srv, err := ragmcp.NewServer(e, config.NewConfig(), path)
	require.NoError(t, err)

	cw, err := watcher.NewCorpusWatcher(path, watcher.Options{DebounceWindow: 100 * time.Millisecond}.WithDefaults())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cw.Run(ctx, srv.Reload) }()

	// Wait for watcher to initialize
	time.Sleep(200 * time.Millisecond)

	// When: the corpus file is replaced atomically, as ingest does
	tmp := filepath.Join(dir, "peron_docs.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(updatedCorpusJSON), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	// Then: the index is rebuilt and serves the new passage
	require.Eventually(t, func() bool {
		return e.Status().Generation >= 2
	}, 5*time.Second, 50*time.Millisecond)

	res := e.Retrieve(context.Background(), "palabra del pueblo", search.SearchOptions{TopK: 1})
	require.Len(t, res.Chunks, 1)
	assert.True(t, strings.Contains(res.Chunks[0].Chunk.Text, "maravillosa música"))
	assert.Equal(t, 1, e.Status().Documents)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_MalformedCorpusPublishesEmptyIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watched, loaded corpus
	dir := t.TempDir()
	path := writeCorpus(t, dir, corpusJSON)
	e := newEngine(t, store.BM25BackendMemory, "")
	require.NoError(t, e.LoadCorpus(context.Background(), path))
	srv, err := ragmcp.NewServer(e, config.NewConfig(), path)
	require.NoError(t, err)

	reloads := make(chan error, 16)
	cw, err := watcher.NewCorpusWatcher(path, watcher.Options{DebounceWindow: 100 * time.Millisecond}.WithDefaults())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() {
		_ = cw.Run(ctx, func(ctx context.Context) error {
			err := srv.Reload(ctx)
			reloads <- err
			return err
		})
	}()
	time.Sleep(200 * time.Millisecond)

	// When: the file is overwritten with garbage
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	// Then: the reload succeeds with an empty index and queries return nothing
	select {
	case err := <-reloads:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after corpus change")
	}
	assert.GreaterOrEqual(t, e.Status().Generation, 2)
	assert.Zero(t, e.Status().Documents)

	res := e.Retrieve(context.Background(), "justicia social", search.SearchOptions{})
	assert.Equal(t, search.ModeEmpty, res.Mode)
	assert.Empty(t, res.Chunks)
}
