package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteBM25Index ranks chunks with SQLite FTS5 and its bm25() function.
// An empty path keeps the database in memory.
type SQLiteBM25Index struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ BM25Index = (*SQLiteBM25Index)(nil)

// NewSQLiteBM25Index opens the database and resets its content; the lexical
// index is rebuilt on every corpus load.
func NewSQLiteBM25Index(path string) (*SQLiteBM25Index, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: an in-memory database lives and dies with it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteBM25Index{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteBM25Index) initSchema() error {
	schema := `
	DROP TABLE IF EXISTS fts_content;
	DROP TABLE IF EXISTS doc_stats;

	-- content holds the space-joined normalized tokens of a chunk
	CREATE VIRTUAL TABLE fts_content USING fts5(
		doc_id UNINDEXED,
		content,
		tokenize='unicode61'
	);

	CREATE TABLE doc_stats (
		doc_id INTEGER PRIMARY KEY,
		length INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Index adds documents in one transaction, replacing existing IDs.
func (s *SQLiteBM25Index) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrIndexClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables don't support REPLACE, so delete first
	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_content WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `INSERT INTO fts_content(doc_id, content) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertStmt.Close()

	statStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO doc_stats(doc_id, length) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare stats statement: %w", err)
	}
	defer statStmt.Close()

	for _, doc := range docs {
		if _, err := deleteStmt.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete existing document %d: %w", doc.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, doc.ID, strings.Join(doc.Tokens, " ")); err != nil {
			return fmt.Errorf("failed to index document %d: %w", doc.ID, err)
		}
		if _, err := statStmt.ExecContext(ctx, doc.ID, max(len(doc.Tokens), 1)); err != nil {
			return fmt.Errorf("failed to record stats for document %d: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// ftsQuery builds a disjunction of quoted terms.
func ftsQuery(tokens []string) string {
	quoted := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// Search returns documents matching any query token.
func (s *SQLiteBM25Index) Search(ctx context.Context, queryTokens []string, limit int) ([]*BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrIndexClosed
	}

	match := ftsQuery(queryTokens)
	if match == "" || limit <= 0 {
		return []*BM25Result{}, nil
	}

	// bm25() is negative, lower is better
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, content, bm25(fts_content) AS score
		FROM fts_content
		WHERE fts_content MATCH ?
		ORDER BY score, CAST(doc_id AS INTEGER)
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	results := make([]*BM25Result, 0, limit)
	for rows.Next() {
		var (
			rawID   string
			content string
			score   float64
		)
		if err := rows.Scan(&rawID, &content, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		id, err := strconv.Atoi(rawID)
		if err != nil || -score <= 0 {
			continue
		}
		results = append(results, &BM25Result{
			DocID:        id,
			Score:        -score,
			MatchedTerms: matchedTerms(queryTokens, content),
		})
	}
	return results, rows.Err()
}

func matchedTerms(queryTokens []string, content string) []string {
	present := make(map[string]struct{})
	for _, t := range strings.Fields(content) {
		present[t] = struct{}{}
	}
	var out []string
	for _, t := range dedupe(queryTokens) {
		if _, ok := present[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Stats returns index statistics.
func (s *SQLiteBM25Index) Stats() *IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return &IndexStats{}
	}

	var (
		count int
		avg   sql.NullFloat64
	)
	if err := s.db.QueryRow(`SELECT COUNT(*), AVG(length) FROM doc_stats`).Scan(&count, &avg); err != nil {
		return &IndexStats{}
	}

	stats := &IndexStats{DocumentCount: count, AvgDocLength: avg.Float64}

	// fts5vocab exposes the term dictionary
	if _, err := s.db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS temp.fts_vocab USING fts5vocab(main, fts_content, row)`); err == nil {
		_ = s.db.QueryRow(`SELECT COUNT(*) FROM temp.fts_vocab`).Scan(&stats.TermCount)
	}
	return stats
}

// Close closes the database. It is idempotent.
func (s *SQLiteBM25Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
