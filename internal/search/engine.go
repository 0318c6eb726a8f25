package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
	"github.com/Aman-CERP/ragcontext/internal/corpus"
	"github.com/Aman-CERP/ragcontext/internal/embed"
	"github.com/Aman-CERP/ragcontext/internal/errors"
	"github.com/Aman-CERP/ragcontext/internal/store"
	"github.com/Aman-CERP/ragcontext/internal/telemetry"
)

// Engine answers retrieval queries against the currently published corpus.
//
// Loads build a complete RetrievalIndex aside and publish it atomically;
// queries pin the index they started with, so a reload never changes the
// data under a running query.
type Engine struct {
	config   EngineConfig
	builder  *corpus.Builder
	embedder embed.Embedder // nil: lexical-only
	reranker Reranker       // nil: MMR with the query lambda
	metrics  *telemetry.QueryMetrics

	index      atomic.Pointer[RetrievalIndex]
	loadMu     sync.Mutex
	generation int

	queries singleflight.Group
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithEmbedder enables semantic reranking. A nil embedder keeps the engine
// lexical-only.
func WithEmbedder(e embed.Embedder) EngineOption {
	return func(eng *Engine) {
		eng.embedder = e
	}
}

// WithReranker replaces the default MMR reranker.
func WithReranker(r Reranker) EngineOption {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithMetrics records every query into m.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithBuilder sets the corpus chunk builder.
func WithBuilder(b *corpus.Builder) EngineOption {
	return func(e *Engine) {
		e.builder = b
	}
}

// NewEngine creates an engine with an empty index. Call LoadCorpus to
// publish data.
func NewEngine(config EngineConfig, opts ...EngineOption) *Engine {
	def := DefaultEngineConfig()
	if config.TopK <= 0 {
		config.TopK = def.TopK
	}
	if config.CandidateK <= 0 {
		config.CandidateK = def.CandidateK
	}
	if config.Lambda <= 0 || config.Lambda > 1 {
		config.Lambda = def.Lambda
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = def.QueryTimeout
	}
	if config.BM25 == (store.BM25Config{}) {
		config.BM25 = def.BM25
	}
	if config.Defaults == (chunk.Metadata{}) {
		config.Defaults = def.Defaults
	}

	e := &Engine{config: config}
	for _, opt := range opts {
		opt(e)
	}
	if e.builder == nil {
		e.builder = corpus.NewBuilder(nil, nil, nil)
	}
	e.index.Store(newEmptyIndex(e.builder.Tokenizer()))
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig { return e.config }

// SemanticEnabled reports whether an embedder is configured.
func (e *Engine) SemanticEnabled() bool { return e.embedder != nil }

// cacheModel tags the embedding cache file.
func (e *Engine) cacheModel() string {
	if e.embedder != nil {
		return e.embedder.ModelName()
	}
	return e.config.CacheModel
}

// LoadCorpus reads the corpus at path, rebuilds every derived structure and
// publishes the result. A missing or malformed corpus publishes an empty
// index and logs a warning. Errors are returned only for cancellation and
// lexical backend failures; the previous index then stays published.
func (e *Engine) LoadCorpus(ctx context.Context, path string) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	docs, err := corpus.Load(path, e.config.Defaults)
	if err != nil {
		slog.Warn("corpus_load_failed", append([]any{slog.String("path", path)}, errors.LogAttrs(err)...)...)
		docs = nil
	}

	chunks, err := e.builder.Build(ctx, docs)
	if err != nil {
		return err
	}

	// Retry a flush the previous index could not complete.
	if prev := e.index.Load(); prev.cache.Dirty() {
		if err := prev.cache.Flush(); err != nil {
			slog.Warn("embedding_cache_flush_failed", errors.LogAttrs(err)...)
		}
	}

	e.generation++
	ix := &RetrievalIndex{
		chunks:      chunks,
		documents:   len(docs),
		tokenizer:   e.builder.Tokenizer(),
		lexicalName: e.config.LexicalBackend,
		source:      path,
		fingerprint: corpus.Fingerprint(path),
		generation:  e.generation,
		loadedAt:    time.Now(),
		fills:       newFillTable(),
	}
	if ix.lexicalName == "" {
		ix.lexicalName = string(store.BM25BackendMemory)
	}

	base := ""
	if e.config.LexicalBasePath != "" {
		base = fmt.Sprintf("%s-%d", e.config.LexicalBasePath, e.generation)
		ix.lexicalPath = store.GetBM25IndexPath(base, ix.lexicalName)
	}
	lexical, err := store.NewBM25Index(ix.lexicalName, base, e.config.BM25)
	if err != nil {
		return errors.New(errors.ErrCodeIndexFailed, "failed to create lexical index", err).
			WithDetail("backend", ix.lexicalName)
	}
	ix.lexical = lexical

	docsForIndex := make([]*store.Document, len(chunks))
	for i, c := range chunks {
		docsForIndex[i] = &store.Document{ID: c.ID, Tokens: c.Tokens}
	}
	if err := lexical.Index(ctx, docsForIndex); err != nil {
		ix.retire()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New(errors.ErrCodeIndexFailed, "failed to build lexical index", err).
			WithDetail("backend", ix.lexicalName)
	}

	ix.cache = store.NewEmbeddingCache(e.config.CachePath, e.cacheModel(), ix.fingerprint)
	if err := ix.cache.Load(); err != nil {
		slog.Warn("embedding_cache_discarded", errors.LogAttrs(err)...)
	}

	if prev := e.index.Swap(ix); prev != nil {
		prev.retire()
	}

	slog.Info("corpus_loaded",
		slog.String("path", path),
		slog.Int("generation", ix.generation),
		slog.Int("documents", len(docs)),
		slog.Int("chunks", len(chunks)),
		slog.Int("cached_embeddings", ix.cache.Len()),
		slog.String("lexical_backend", ix.lexicalName),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// acquire pins the published index.
func (e *Engine) acquire() *RetrievalIndex {
	for {
		ix := e.index.Load()
		if ix.acquire() {
			return ix
		}
	}
}

// Index returns the published index. It may be retired by a later load;
// use it for inspection only.
func (e *Engine) Index() *RetrievalIndex { return e.index.Load() }

// Status describes the published index.
func (e *Engine) Status() Status {
	ix := e.acquire()
	defer ix.release()
	s := ix.status()
	s.SemanticEnabled = e.SemanticEnabled()
	return s
}

func (e *Engine) resolve(opts SearchOptions) SearchOptions {
	if opts.TopK <= 0 {
		opts.TopK = e.config.TopK
	}
	if opts.CandidateK <= 0 {
		opts.CandidateK = e.config.CandidateK
	}
	if opts.Lambda <= 0 || opts.Lambda > 1 {
		opts.Lambda = e.config.Lambda
	}
	return opts
}

// Retrieve runs the retrieval pipeline. It never fails: every problem
// degrades to a lexical or empty result whose Fallback names the cause.
func (e *Engine) Retrieve(ctx context.Context, message string, opts SearchOptions) *Result {
	start := time.Now()
	opts = e.resolve(opts)
	res := &Result{Query: message, Mode: ModeEmpty, Chunks: []ScoredChunk{}}

	defer func() {
		res.Duration = time.Since(start)
		e.record(res)
	}()

	ix := e.acquire()
	defer ix.release()

	if strings.TrimSpace(message) == "" || ix.Len() == 0 {
		return res
	}
	tokens := ix.Tokenize(message)
	if len(tokens) == 0 {
		return res
	}

	shortlist, err := ix.LexicalSearch(ctx, tokens, opts.CandidateK)
	if err != nil {
		slog.Warn("lexical_search_failed", errors.LogAttrs(err)...)
		return res
	}
	if len(shortlist) == 0 {
		return res
	}
	res.Candidates = len(shortlist)

	lexical := func(reason string) *Result {
		res.Mode = ModeLexical
		res.Fallback = reason
		for _, c := range shortlist[:min(opts.TopK, len(shortlist))] {
			res.Chunks = append(res.Chunks, c.scored())
		}
		return res
	}

	if e.embedder == nil {
		return lexical(FallbackNoProvider)
	}
	if opts.LexicalOnly {
		return lexical(FallbackLexicalOnly)
	}

	qctx, cancel := context.WithTimeout(ctx, e.config.QueryTimeout)
	defer cancel()

	qvec, err := e.embedQuery(qctx, message)
	if err != nil {
		slog.Warn("query_embedding_failed", errors.LogAttrs(err)...)
		return lexical(FallbackQueryEmbedFailed)
	}
	if len(qvec) == 0 {
		return lexical(FallbackEmptyQueryVector)
	}

	ids := make([]int, len(shortlist))
	for i, c := range shortlist {
		ids[i] = c.Chunk.ID
	}
	if err := ix.EnsureEmbeddings(qctx, e.embedder, ids); err != nil {
		slog.Warn("chunk_embedding_failed", append(errors.LogAttrs(err), slog.Int("chunks", len(ids)))...)
		return lexical(FallbackChunkEmbedFailed)
	}

	for i := range shortlist {
		if vec, ok := ix.cache.Get(shortlist[i].Chunk.ID); ok {
			shortlist[i].Embedding = vec
			shortlist[i].Semantic = CosineSimilarity(vec, qvec)
		}
	}

	reranker := e.reranker
	if reranker == nil {
		reranker = NewMMRReranker(opts.Lambda)
	}
	res.Mode = ModeSemantic
	for _, c := range reranker.Rerank(ctx, qvec, shortlist, opts.TopK) {
		res.Chunks = append(res.Chunks, c.scored())
	}
	if len(res.Chunks) == 0 {
		res.Mode = ModeEmpty
	}
	return res
}

// RelevantContext returns the formatted context for message, or "" when
// nothing matches.
func (e *Engine) RelevantContext(ctx context.Context, message string, opts SearchOptions) string {
	return e.Retrieve(ctx, message, opts).Context()
}

// embedQuery collapses identical concurrent query embeddings into one call.
func (e *Engine) embedQuery(ctx context.Context, message string) ([]float32, error) {
	key := e.embedder.ModelName() + "\x00" + message
	v, err, _ := e.queries.Do(key, func() (any, error) {
		return e.embedder.Embed(ctx, message)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (e *Engine) record(res *Result) {
	slog.Debug("query_served",
		slog.String("mode", string(res.Mode)),
		slog.String("fallback", res.Fallback),
		slog.Int("candidates", res.Candidates),
		slog.Int("results", len(res.Chunks)),
		slog.Duration("duration", res.Duration))

	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       res.Query,
		Mode:        telemetry.QueryMode(res.Mode),
		Fallback:    res.Fallback,
		ResultCount: len(res.Chunks),
		Candidates:  res.Candidates,
		Latency:     res.Duration,
		Timestamp:   time.Now(),
	})
}

// Close flushes the cache, closes the published index and the embedder.
func (e *Engine) Close() error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	var firstErr error
	ix := e.index.Swap(newEmptyIndex(e.builder.Tokenizer()))
	if ix.cache.Dirty() {
		if err := ix.cache.Flush(); err != nil {
			firstErr = err
		}
	}
	ix.retire()

	if e.embedder != nil {
		if err := e.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
