// Package store provides the lexical indexes (in-memory BM25, Bleve, SQLite
// FTS5) and the on-disk embedding cache.
package store

import (
	"context"
	"errors"
)

// ErrIndexClosed is returned by operations on a closed index.
var ErrIndexClosed = errors.New("index is closed")

// Document is a pre-tokenized chunk to be indexed.
type Document struct {
	ID     int      // Chunk ID
	Tokens []string // Normalized tokens, duplicates preserved
}

// BM25Result represents a single lexical search result.
type BM25Result struct {
	DocID        int
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about a lexical index.
type IndexStats struct {
	DocumentCount int     `json:"document_count"`
	TermCount     int     `json:"term_count"`
	AvgDocLength  float64 `json:"avg_doc_length"`
}

// BM25Index ranks chunks against query tokens.
type BM25Index interface {
	// Index adds documents, replacing any with the same ID.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents with a positive score, best first, at most limit.
	// Query tokens are scored once per occurrence.
	Search(ctx context.Context, queryTokens []string, limit int) ([]*BM25Result, error)

	// Stats returns index statistics.
	Stats() *IndexStats

	Close() error
}

// BM25Config configures lexical scoring.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2)
	K1 float64

	// B is the length normalization parameter (default: 0.75)
	B float64
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1: 1.2,
		B:  0.75,
	}
}
