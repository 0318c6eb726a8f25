package store

import (
	"fmt"
	"path/filepath"
)

// BM25Backend names a lexical index implementation.
type BM25Backend string

const (
	// BM25BackendMemory is the exact in-process BM25 scorer (default).
	BM25BackendMemory BM25Backend = "memory"

	// BM25BackendBleve ranks with Bleve v2.
	BM25BackendBleve BM25Backend = "bleve"

	// BM25BackendSQLite ranks with SQLite FTS5.
	BM25BackendSQLite BM25Backend = "sqlite"
)

// ValidBM25Backends lists accepted backend names.
func ValidBM25Backends() []string {
	return []string{string(BM25BackendMemory), string(BM25BackendBleve), string(BM25BackendSQLite)}
}

// NewBM25Index creates a BM25Index using the specified backend.
//
// basePath is only used by persistent backends and gets a backend-specific
// extension (.bleve, .db). An empty basePath keeps every backend in memory.
func NewBM25Index(backend string, basePath string, config BM25Config) (BM25Index, error) {
	switch BM25Backend(backend) {
	case BM25BackendMemory, "":
		return NewMemoryBM25Index(config), nil

	case BM25BackendBleve:
		return NewBleveBM25Index(GetBM25IndexPath(basePath, backend))

	case BM25BackendSQLite:
		return NewSQLiteBM25Index(GetBM25IndexPath(basePath, backend))

	default:
		return nil, fmt.Errorf("unknown BM25 backend: %s (valid options: memory, bleve, sqlite)", backend)
	}
}

// GetBM25IndexPath returns the on-disk location for a backend, or "" for
// in-memory operation.
func GetBM25IndexPath(basePath string, backend string) string {
	if basePath == "" {
		return ""
	}
	switch BM25Backend(backend) {
	case BM25BackendBleve:
		return basePath + ".bleve"
	case BM25BackendSQLite:
		return basePath + ".db"
	default:
		return ""
	}
}

// DefaultBM25BasePath places persistent lexical indexes next to the cache.
func DefaultBM25BasePath(dataDir string) string {
	return filepath.Join(dataDir, "lexical")
}
