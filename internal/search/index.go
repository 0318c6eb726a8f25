package search

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
	"github.com/Aman-CERP/ragcontext/internal/embed"
	"github.com/Aman-CERP/ragcontext/internal/errors"
	"github.com/Aman-CERP/ragcontext/internal/store"
)

// RetrievalIndex is one immutable load of the corpus: its chunks, their
// lexical index and their embedding cache. Engine publishes a new instance
// on every load and retires the previous one once queries release it.
type RetrievalIndex struct {
	chunks      []*chunk.Chunk
	documents   int
	tokenizer   *chunk.Tokenizer
	lexical     store.BM25Index
	lexicalName string
	lexicalPath string
	cache       *store.EmbeddingCache
	source      string
	fingerprint *string
	generation  int
	loadedAt    time.Time

	fills *fillTable

	refMu   sync.Mutex
	refs    int
	retired bool
	closed  bool
}

func newEmptyIndex(tok *chunk.Tokenizer) *RetrievalIndex {
	return &RetrievalIndex{
		tokenizer:   tok,
		lexical:     store.NewMemoryBM25Index(store.DefaultBM25Config()),
		lexicalName: string(store.BM25BackendMemory),
		cache:       store.NewEmbeddingCache("", "", nil),
		fills:       newFillTable(),
		loadedAt:    time.Now(),
	}
}

// Len returns the number of chunks.
func (ix *RetrievalIndex) Len() int { return len(ix.chunks) }

// Chunks returns the chunks in id order. The slice must not be modified.
func (ix *RetrievalIndex) Chunks() []*chunk.Chunk { return ix.chunks }

// Chunk returns the chunk with the given id.
func (ix *RetrievalIndex) Chunk(id int) (*chunk.Chunk, bool) {
	if id < 0 || id >= len(ix.chunks) {
		return nil, false
	}
	return ix.chunks[id], true
}

// Cache returns the embedding cache.
func (ix *RetrievalIndex) Cache() *store.EmbeddingCache { return ix.cache }

// Tokenize applies the index tokenizer.
func (ix *RetrievalIndex) Tokenize(text string) []string { return ix.tokenizer.Tokenize(text) }

// LexicalSearch returns up to limit chunks with a positive BM25 score,
// best first.
func (ix *RetrievalIndex) LexicalSearch(ctx context.Context, tokens []string, limit int) ([]Candidate, error) {
	if len(tokens) == 0 || limit <= 0 || len(ix.chunks) == 0 {
		return nil, nil
	}
	hits, err := ix.lexical.Search(ctx, tokens, limit)
	if err != nil {
		return nil, errors.New(errors.ErrCodeSearchFailed, "lexical search failed", err)
	}

	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		c, ok := ix.Chunk(h.DocID)
		if !ok || h.Score <= 0 {
			continue
		}
		out = append(out, Candidate{Chunk: c, Lexical: h.Score, Matched: h.MatchedTerms})
	}
	return out, nil
}

// EnsureEmbeddings makes sure every id has a cached embedding, fetching the
// missing ones in a single batch. An id another caller is already fetching
// is waited on instead of requested again.
func (ix *RetrievalIndex) EnsureEmbeddings(ctx context.Context, embedder embed.Embedder, ids []int) error {
	return ix.fills.ensure(ctx, ix, embedder, ids)
}

func (ix *RetrievalIndex) status() Status {
	s := Status{
		Source:           ix.source,
		Generation:       ix.generation,
		Documents:        ix.documents,
		Chunks:           len(ix.chunks),
		CachedEmbeddings: ix.cache.Len(),
		CacheDirty:       ix.cache.Dirty(),
		CachePath:        ix.cache.Path(),
		Model:            ix.cache.Model(),
		LexicalBackend:   ix.lexicalName,
		LoadedAt:         ix.loadedAt,
	}
	if ix.fingerprint != nil {
		s.Fingerprint = *ix.fingerprint
	}
	if st := ix.lexical.Stats(); st != nil {
		s.Lexical = *st
	}
	return s
}

// acquire pins the index for a query. It fails once the index is closed.
func (ix *RetrievalIndex) acquire() bool {
	ix.refMu.Lock()
	defer ix.refMu.Unlock()
	if ix.closed {
		return false
	}
	ix.refs++
	return true
}

func (ix *RetrievalIndex) release() {
	ix.refMu.Lock()
	defer ix.refMu.Unlock()
	ix.refs--
	if ix.retired && ix.refs == 0 {
		ix.closeLocked()
	}
}

// retire closes the index now or when the last query releases it. Its cache
// stops persisting at once: the cache file belongs to the published index.
func (ix *RetrievalIndex) retire() {
	if ix.cache != nil {
		ix.cache.Detach()
	}
	ix.refMu.Lock()
	defer ix.refMu.Unlock()
	ix.retired = true
	if ix.refs == 0 {
		ix.closeLocked()
	}
}

func (ix *RetrievalIndex) isRetired() bool {
	ix.refMu.Lock()
	defer ix.refMu.Unlock()
	return ix.retired
}

func (ix *RetrievalIndex) closeLocked() {
	if ix.closed {
		return
	}
	ix.closed = true
	if err := ix.lexical.Close(); err != nil {
		slog.Warn("lexical_index_close_failed", slog.String("error", err.Error()))
	}
	if ix.lexicalPath != "" {
		for _, p := range []string{ix.lexicalPath, ix.lexicalPath + "-wal", ix.lexicalPath + "-shm"} {
			_ = os.RemoveAll(p)
		}
	}
}

// fillTable tracks chunk ids whose embeddings are being fetched.
type fillTable struct {
	mu       sync.Mutex
	inflight map[int]*fillCall
}

type fillCall struct {
	done chan struct{}
	err  error
}

func newFillTable() *fillTable {
	return &fillTable{inflight: make(map[int]*fillCall)}
}

func (t *fillTable) ensure(ctx context.Context, ix *RetrievalIndex, embedder embed.Embedder, ids []int) error {
	missing := ix.cache.Missing(ids)
	if len(missing) == 0 {
		return nil
	}

	// Claim ids nobody is fetching; remember the ones in flight elsewhere.
	var (
		mine  []int
		waits []*fillCall
		call  = &fillCall{done: make(chan struct{})}
	)
	t.mu.Lock()
	for _, id := range missing {
		if _, ok := ix.cache.Get(id); ok {
			continue
		}
		if other, ok := t.inflight[id]; ok {
			waits = append(waits, other)
			continue
		}
		t.inflight[id] = call
		mine = append(mine, id)
	}
	t.mu.Unlock()

	if len(mine) > 0 {
		call.err = t.fetch(ctx, ix, embedder, mine)

		t.mu.Lock()
		for _, id := range mine {
			delete(t.inflight, id)
		}
		t.mu.Unlock()
		close(call.done)

		if call.err != nil {
			return call.err
		}
	}

	for _, w := range waits {
		select {
		case <-w.done:
			if w.err != nil {
				return w.err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (t *fillTable) fetch(ctx context.Context, ix *RetrievalIndex, embedder embed.Embedder, ids []int) error {
	texts := make([]string, len(ids))
	for i, id := range ids {
		c, _ := ix.Chunk(id)
		texts[i] = c.Text
	}

	vecs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(ids) {
		return errors.New(errors.ErrCodeProviderResponse, "provider returned a different number of embeddings than requested", nil)
	}

	for i, id := range ids {
		ix.cache.Put(id, vecs[i])
	}
	if err := ix.cache.Flush(); err != nil {
		slog.Warn("embedding_cache_flush_failed", errors.LogAttrs(err)...)
	}
	return nil
}
