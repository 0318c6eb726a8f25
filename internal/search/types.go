package search

import (
	"time"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
	"github.com/Aman-CERP/ragcontext/internal/corpus"
	"github.com/Aman-CERP/ragcontext/internal/store"
)

// Pipeline defaults.
const (
	DefaultTopK       = 4
	DefaultCandidateK = 40
	DefaultLambda     = 0.75

	// DefaultQueryTimeout bounds the provider work of one query.
	DefaultQueryTimeout = 30 * time.Second
)

// Mode is the path that produced a result.
type Mode string

const (
	// ModeEmpty means no chunk was returned.
	ModeEmpty Mode = "empty"
	// ModeLexical means chunks are the top of the BM25 shortlist.
	ModeLexical Mode = "lexical"
	// ModeSemantic means the shortlist was reranked with embeddings.
	ModeSemantic Mode = "semantic"
)

// Fallback reasons recorded when semantic reranking is skipped.
const (
	FallbackNoProvider       = "no_provider"
	FallbackLexicalOnly      = "lexical_only"
	FallbackQueryEmbedFailed = "query_embed_failed"
	FallbackEmptyQueryVector = "empty_query_vector"
	FallbackChunkEmbedFailed = "chunk_embed_failed"
)

// SearchOptions tune one retrieval. Zero values take the engine defaults.
type SearchOptions struct {
	TopK        int     // chunks returned
	CandidateK  int     // BM25 shortlist size
	Lambda      float64 // MMR relevance/diversity balance
	LexicalOnly bool    // skip the provider entirely
}

// DefaultSearchOptions returns the pipeline defaults.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{TopK: DefaultTopK, CandidateK: DefaultCandidateK, Lambda: DefaultLambda}
}

// ScoredChunk is a returned chunk with the scores that ranked it.
type ScoredChunk struct {
	Chunk    *chunk.Chunk `json:"-"`
	ID       int          `json:"id"`
	Lexical  float64      `json:"lexical_score"`
	Semantic float64      `json:"semantic_score"`
	Matched  []string     `json:"matched_terms,omitempty"`
}

// Candidate is a shortlisted chunk entering reranking.
type Candidate struct {
	Chunk     *chunk.Chunk
	Lexical   float64
	Semantic  float64   // cosine to the query vector
	Embedding []float32 // nil when the cache has none
	Matched   []string
}

func (c Candidate) scored() ScoredChunk {
	return ScoredChunk{Chunk: c.Chunk, ID: c.Chunk.ID, Lexical: c.Lexical, Semantic: c.Semantic, Matched: c.Matched}
}

// Result is the structured outcome of Engine.Retrieve.
type Result struct {
	Query      string        `json:"query"`
	Mode       Mode          `json:"mode"`
	Fallback   string        `json:"fallback,omitempty"`
	Chunks     []ScoredChunk `json:"chunks"`
	Candidates int           `json:"candidates"`
	Duration   time.Duration `json:"duration_ns"`
}

// Context formats the result chunks as a prompt context block.
func (r *Result) Context() string {
	if r == nil {
		return ""
	}
	return FormatContext(r.Chunks)
}

// EngineConfig configures the retrieval engine.
type EngineConfig struct {
	TopK       int
	CandidateK int
	Lambda     float64

	// LexicalBackend selects the BM25 implementation (memory, bleve, sqlite)
	LexicalBackend string
	// LexicalBasePath is where persistent backends keep their files
	LexicalBasePath string
	BM25            store.BM25Config

	// CachePath of the embedding cache file; empty keeps it in memory
	CachePath string
	// CacheModel tags the cache when no embedder is configured
	CacheModel string

	// Defaults fill missing document metadata
	Defaults chunk.Metadata

	QueryTimeout time.Duration
}

// DefaultEngineConfig returns defaults with an in-memory lexical index and
// no cache persistence.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TopK:           DefaultTopK,
		CandidateK:     DefaultCandidateK,
		Lambda:         DefaultLambda,
		LexicalBackend: string(store.BM25BackendMemory),
		BM25:           store.DefaultBM25Config(),
		Defaults:       corpus.DefaultMetadata(),
		QueryTimeout:   DefaultQueryTimeout,
	}
}

// Status describes the published index.
type Status struct {
	Source           string           `json:"source"`
	Fingerprint      string           `json:"fingerprint,omitempty"`
	Generation       int              `json:"generation"`
	Documents        int              `json:"documents"`
	Chunks           int              `json:"chunks"`
	CachedEmbeddings int              `json:"cached_embeddings"`
	CacheDirty       bool             `json:"cache_dirty"`
	CachePath        string           `json:"cache_path,omitempty"`
	Model            string           `json:"model,omitempty"`
	SemanticEnabled  bool             `json:"semantic_enabled"`
	LexicalBackend   string           `json:"lexical_backend"`
	Lexical          store.IndexStats `json:"lexical"`
	LoadedAt         time.Time        `json:"loaded_at"`
}
