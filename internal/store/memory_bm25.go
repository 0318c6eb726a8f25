package store

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryBM25Index is an exact in-memory BM25 scorer.
//
// It keeps per-document term frequencies and scans every document per query:
//
//	idf(t)     = ln((N - df(t) + 0.5) / (df(t) + 0.5) + 1),  N = max(docs, 1)
//	score(q,d) = Σ_t∈q idf(t) · tf·(k1+1) / (tf + k1·(1 - b + b·len(d)/avgLen))
type MemoryBM25Index struct {
	mu     sync.RWMutex
	config BM25Config
	closed bool

	docs     map[int]*memDoc
	order    []int // insertion order, used for deterministic tie-breaking
	df       map[string]int
	idf      map[string]float64
	totalLen int
	avgLen   float64
}

type memDoc struct {
	tf     map[string]int
	length int
}

// NewMemoryBM25Index creates an empty index.
func NewMemoryBM25Index(config BM25Config) *MemoryBM25Index {
	return &MemoryBM25Index{
		config: config,
		docs:   make(map[int]*memDoc),
		df:     make(map[string]int),
		idf:    make(map[string]float64),
	}
}

// Index adds documents and recomputes IDF.
func (m *MemoryBM25Index) Index(ctx context.Context, docs []*Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrIndexClosed
	}

	for _, doc := range docs {
		if old, ok := m.docs[doc.ID]; ok {
			m.removeLocked(old)
		} else {
			m.order = append(m.order, doc.ID)
		}

		d := &memDoc{tf: make(map[string]int, len(doc.Tokens)), length: len(doc.Tokens)}
		if d.length == 0 {
			d.length = 1
		}
		for _, t := range doc.Tokens {
			d.tf[t]++
		}
		for t := range d.tf {
			m.df[t]++
		}
		m.totalLen += d.length
		m.docs[doc.ID] = d
	}

	m.recomputeLocked()
	return nil
}

func (m *MemoryBM25Index) removeLocked(d *memDoc) {
	for t := range d.tf {
		if m.df[t] <= 1 {
			delete(m.df, t)
		} else {
			m.df[t]--
		}
	}
	m.totalLen -= d.length
}

func (m *MemoryBM25Index) recomputeLocked() {
	n := len(m.docs)
	m.avgLen = 0
	if n > 0 {
		m.avgLen = float64(m.totalLen) / float64(n)
	}

	total := float64(max(n, 1))
	m.idf = make(map[string]float64, len(m.df))
	for t, freq := range m.df {
		f := float64(freq)
		m.idf[t] = math.Log((total-f+0.5)/(f+0.5) + 1)
	}
}

// IDF returns the inverse document frequency of a term (0 if unseen).
func (m *MemoryBM25Index) IDF(term string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idf[term]
}

// Score computes the BM25 score of one document. Unknown documents score 0.
func (m *MemoryBM25Index) Score(queryTokens []string, docID int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[docID]
	if !ok {
		return 0
	}
	score, _ := m.scoreLocked(queryTokens, d)
	return score
}

func (m *MemoryBM25Index) scoreLocked(queryTokens []string, d *memDoc) (float64, []string) {
	k1, b := m.config.K1, m.config.B
	avg := m.avgLen
	if avg == 0 {
		avg = 1
	}

	var score float64
	var matched []string
	for _, t := range queryTokens {
		tf, ok := d.tf[t]
		if !ok {
			continue
		}
		ftf := float64(tf)
		norm := ftf + k1*(1-b+b*float64(d.length)/avg)
		if norm == 0 {
			norm = 1
		}
		score += m.idf[t] * (ftf * (k1 + 1)) / norm
		matched = append(matched, t)
	}
	return score, matched
}

// Search scores every document and returns the positive ones, best first.
// Equal scores keep insertion order.
func (m *MemoryBM25Index) Search(ctx context.Context, queryTokens []string, limit int) ([]*BM25Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrIndexClosed
	}
	if len(queryTokens) == 0 || limit <= 0 {
		return []*BM25Result{}, nil
	}

	results := make([]*BM25Result, 0)
	for i, id := range m.order {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		score, matched := m.scoreLocked(queryTokens, m.docs[id])
		if score <= 0 {
			continue
		}
		results = append(results, &BM25Result{DocID: id, Score: score, MatchedTerms: dedupe(matched)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats returns index statistics.
func (m *MemoryBM25Index) Stats() *IndexStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &IndexStats{
		DocumentCount: len(m.docs),
		TermCount:     len(m.df),
		AvgDocLength:  m.avgLen,
	}
}

// Close releases the index. It is idempotent.
func (m *MemoryBM25Index) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.docs = nil
	m.df = nil
	m.idf = nil
	m.order = nil
	m.totalLen = 0
	m.avgLen = 0
	return nil
}

func dedupe(terms []string) []string {
	if len(terms) < 2 {
		return terms
	}
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var _ BM25Index = (*MemoryBM25Index)(nil)
