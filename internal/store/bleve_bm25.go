package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// TermTokenizerName splits pre-normalized token streams on spaces.
	TermTokenizerName = "ragcontext_terms"

	// TermAnalyzerName is the analyzer applied to chunk content and queries.
	TermAnalyzerName = "ragcontext_terms"

	contentField = "content"
)

func init() {
	_ = registry.RegisterTokenizer(TermTokenizerName, termTokenizerConstructor)
}

// BleveBM25Index ranks chunks with Bleve.
//
// Documents arrive already normalized and tokenized, so the analyzer only
// splits on spaces; query tokens and chunk tokens therefore match exactly as
// in MemoryBM25Index. Scores come from Bleve's own relevance model.
type BleveBM25Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
	terms  map[string]struct{}
	total  int
}

type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveBM25Index creates an index. An empty path keeps it in memory;
// otherwise any index at path is discarded and rebuilt.
func NewBleveBM25Index(path string) (*BleveBM25Index, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("failed to clear index at %s: %w", path, err)
		}
		idx, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BleveBM25Index{
		index: idx,
		path:  path,
		terms: make(map[string]struct{}),
	}, nil
}

func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TermAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     TermTokenizerName,
		"token_filters": []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = TermAnalyzerName
	return indexMapping, nil
}

// Index adds documents in a single batch.
func (b *BleveBM25Index) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrIndexClosed
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := strconv.Itoa(doc.ID)
		if err := batch.Index(id, bleveDocument{Content: strings.Join(doc.Tokens, " ")}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", id, err)
		}
		for _, t := range doc.Tokens {
			b.terms[t] = struct{}{}
		}
		b.total += max(len(doc.Tokens), 1)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search runs a disjunctive match query over the tokens.
func (b *BleveBM25Index) Search(ctx context.Context, queryTokens []string, limit int) ([]*BM25Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrIndexClosed
	}
	if len(queryTokens) == 0 || limit <= 0 {
		return []*BM25Result{}, nil
	}

	matchQuery := bleve.NewMatchQuery(strings.Join(queryTokens, " "))
	matchQuery.SetField(contentField)
	matchQuery.SetOperator(query.MatchQueryOperatorOr)

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*BM25Result, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil || hit.Score <= 0 {
			continue
		}
		results = append(results, &BM25Result{
			DocID:        id,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}
	return results, nil
}

// Stats returns index statistics.
func (b *BleveBM25Index) Stats() *IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return &IndexStats{}
	}

	docCount, _ := b.index.DocCount()
	stats := &IndexStats{
		DocumentCount: int(docCount),
		TermCount:     len(b.terms),
	}
	if docCount > 0 {
		stats.AvgDocLength = float64(b.total) / float64(docCount)
	}
	return stats
}

// Close closes the index. It is idempotent.
func (b *BleveBM25Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func extractMatchedTerms(hit *search.DocumentMatch) []string {
	locations := hit.Locations[contentField]
	terms := make([]string, 0, len(locations))
	for term := range locations {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

var _ BM25Index = (*BleveBM25Index)(nil)

func termTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &termTokenizer{}, nil
}

// termTokenizer emits one token per space-separated term, with byte offsets.
type termTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *termTokenizer) Tokenize(input []byte) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, 16)
	pos := 1
	start := -1
	for i := 0; i <= len(input); i++ {
		if i < len(input) && input[i] != ' ' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			result = append(result, &analysis.Token{
				Term:     append([]byte(nil), input[start:i]...),
				Start:    start,
				End:      i,
				Position: pos,
				Type:     analysis.AlphaNumeric,
			})
			pos++
			start = -1
		}
	}
	return result
}
