package mcp

import (
	"github.com/Aman-CERP/ragcontext/internal/async"
	"github.com/Aman-CERP/ragcontext/internal/search"
	"github.com/Aman-CERP/ragcontext/internal/telemetry"
)

// Tool names.
const (
	ToolRelevantContext = "relevant_context"
	ToolCorpusStatus    = "corpus_status"
	ToolReloadCorpus    = "reload_corpus"
)

// Parameter bounds for relevant_context.
const (
	maxTopK       = 20
	maxCandidateK = 200
)

// RelevantContextInput defines the input schema for the relevant_context tool.
type RelevantContextInput struct {
	Message     string `json:"message" jsonschema:"the user message to find supporting passages for"`
	TopK        int    `json:"top_k,omitempty" jsonschema:"number of passages to return, default 4"`
	CandidateK  int    `json:"candidate_k,omitempty" jsonschema:"size of the BM25 shortlist, default 40"`
	LexicalOnly bool   `json:"lexical_only,omitempty" jsonschema:"skip semantic reranking"`
}

// RelevantContextOutput defines the output schema for the relevant_context tool.
type RelevantContextOutput struct {
	Context  string        `json:"context" jsonschema:"passages formatted as [kind · date · topic] text, separated by blank lines"`
	Mode     string        `json:"mode" jsonschema:"lexical, semantic or empty"`
	Fallback string        `json:"fallback,omitempty" jsonschema:"why semantic reranking was skipped"`
	Chunks   []ChunkOutput `json:"chunks" jsonschema:"the returned passages in rank order"`
}

// ChunkOutput is one returned passage.
type ChunkOutput struct {
	ID            int      `json:"id"`
	Text          string   `json:"text"`
	Author        string   `json:"author"`
	Kind          string   `json:"kind"`
	Date          string   `json:"date"`
	Topic         string   `json:"topic"`
	LexicalScore  float64  `json:"lexical_score"`
	SemanticScore float64  `json:"semantic_score,omitempty"`
	MatchedTerms  []string `json:"matched_terms,omitempty"`
}

// CorpusStatusInput defines the input schema for the corpus_status tool (no parameters).
type CorpusStatusInput struct{}

// CorpusStatusOutput defines the output schema for corpus_status and
// reload_corpus.
type CorpusStatusOutput struct {
	Corpus     search.Status           `json:"corpus"`
	Provider   string                  `json:"provider"`
	Model      string                  `json:"model,omitempty"`
	Queries    *QueryStats             `json:"queries,omitempty"`
	Warm       *async.ProgressSnapshot `json:"warm,omitempty"`
	Generation int                     `json:"generation"`
}

// QueryStats summarizes query telemetry since startup.
type QueryStats struct {
	Total           int64                         `json:"total"`
	ZeroResults     int64                         `json:"zero_results"`
	SemanticRate    float64                       `json:"semantic_rate"`
	ModeCounts      map[telemetry.QueryMode]int64 `json:"mode_counts"`
	FallbackCounts  map[string]int64              `json:"fallback_counts,omitempty"`
	TopTerms        []telemetry.TermCount         `json:"top_terms,omitempty"`
	ExactRepeatRate float64                       `json:"exact_repeat_rate"`
}

// ReloadCorpusInput defines the input schema for the reload_corpus tool.
type ReloadCorpusInput struct{}
