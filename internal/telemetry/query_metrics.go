// Package telemetry records how retrieval queries are served: which mode
// answered them, why semantic reranking was skipped, how long they took and
// which ones found nothing. All data stays local.
package telemetry

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/ragcontext/internal/chunk"
)

// =============================================================================
// Query Modes
// =============================================================================

// QueryMode is the path that produced a query's context.
type QueryMode string

const (
	ModeEmpty    QueryMode = "empty"
	ModeLexical  QueryMode = "lexical"
	ModeSemantic QueryMode = "semantic"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP250  LatencyBucket = "p250"  // 50-250ms
	BucketP1000 LatencyBucket = "p1000" // 250ms-1s
	BucketSlow  LatencyBucket = "slow"  // >=1s
)

// LatencyToBucket converts a duration to its histogram bucket. Semantic
// queries include a provider round trip, so the upper buckets are wide.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 250:
		return BucketP250
	case ms < 1000:
		return BucketP1000
	default:
		return BucketSlow
	}
}

// =============================================================================
// Query Event
// =============================================================================

// QueryEvent describes one served query.
type QueryEvent struct {
	Query       string
	Mode        QueryMode
	Fallback    string // why semantic reranking was skipped, empty otherwise
	ResultCount int
	Candidates  int
	Latency     time.Duration
	Timestamp   time.Time
}

// IsZeroResult returns true if this query returned no chunks.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int // next write position
	size     int
	capacity int
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{items: make([]T, capacity), capacity: capacity}
}

// Add adds an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// =============================================================================
// Term Extraction
// =============================================================================

// ExtractTerms returns the accent-folded words of a query with at least
// three characters.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.FieldsFunc(chunk.Normalize(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// RecentQuery is a query kept for the status view.
type RecentQuery struct {
	Query     string        `json:"query"`
	Mode      QueryMode     `json:"mode"`
	Fallback  string        `json:"fallback,omitempty"`
	Results   int           `json:"results"`
	Latency   time.Duration `json:"latency_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// =============================================================================
// Snapshot
// =============================================================================

// QueryMetricsSnapshot is an immutable snapshot of query metrics.
type QueryMetricsSnapshot struct {
	ModeCounts          map[QueryMode]int64     `json:"mode_counts"`
	FallbackCounts      map[string]int64        `json:"fallback_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	RecentQueries       []RecentQuery           `json:"recent_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	ExactRepeatRate     float64                 `json:"exact_repeat_rate"`
	UniqueQueryCount    int64                   `json:"unique_query_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// SemanticRate returns the share of queries answered by the semantic path.
func (s *QueryMetricsSnapshot) SemanticRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ModeCounts[ModeSemantic]) / float64(s.TotalQueries)
}

// =============================================================================
// Configuration
// =============================================================================

// QueryMetricsConfig configures the query metrics collector.
type QueryMetricsConfig struct {
	TopTermsCapacity      int           // Max terms to track (default: 100)
	ZeroResultsCapacity   int           // Max zero-result queries kept (default: 100)
	RecentQueriesCapacity int           // Recent queries kept for status (default: 50)
	RepeatWindow          int           // Query hashes kept for repeat detection (default: 500)
	FlushInterval         time.Duration // Store flush period (default: 60s, 0 = manual)
}

// DefaultQueryMetricsConfig returns sensible defaults.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 50,
		RepeatWindow:          500,
		FlushInterval:         60 * time.Second,
	}
}

// =============================================================================
// Query Metrics
// =============================================================================

// QueryMetrics aggregates query telemetry. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	modes           map[QueryMode]int64
	fallbacks       map[string]int64
	latencies       map[LatencyBucket]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	recent          *CircularBuffer[RecentQuery]
	recentHashes    *lru.Cache[string, struct{}]
	totalQueries    int64
	zeroResultCount int64
	exactRepeats    int64
	startTime       time.Time

	// deltas not yet written to the store
	pending pendingCounts

	store       QueryMetricsStore
	config      QueryMetricsConfig
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

type pendingCounts struct {
	modes       map[QueryMode]int64
	fallbacks   map[string]int64
	latencies   map[LatencyBucket]int64
	terms       map[string]int64
	zeroResults []QueryEvent
}

func newPending() pendingCounts {
	return pendingCounts{
		modes:     make(map[QueryMode]int64),
		fallbacks: make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
		terms:     make(map[string]int64),
	}
}

// NewQueryMetrics creates a collector with default configuration.
// If store is nil, metrics are only kept in memory.
func NewQueryMetrics(store QueryMetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector with custom configuration.
func NewQueryMetricsWithConfig(store QueryMetricsStore, cfg QueryMetricsConfig) *QueryMetrics {
	def := DefaultQueryMetricsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}
	if cfg.RepeatWindow <= 0 {
		cfg.RepeatWindow = def.RepeatWindow
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	hashes, _ := lru.New[string, struct{}](cfg.RepeatWindow)

	m := &QueryMetrics{
		modes:        make(map[QueryMode]int64),
		fallbacks:    make(map[string]int64),
		latencies:    make(map[LatencyBucket]int64),
		topTerms:     topTerms,
		zeroResults:  NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		recent:       NewCircularBuffer[RecentQuery](cfg.RecentQueriesCapacity),
		recentHashes: hashes,
		startTime:    time.Now(),
		pending:      newPending(),
		store:        store,
		config:       cfg,
		stopCh:       make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *QueryMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one served query.
func (m *QueryMetrics) Record(event QueryEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	bucket := LatencyToBucket(event.Latency)
	terms := ExtractTerms(event.Query)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.totalQueries++
	m.modes[event.Mode]++
	m.pending.modes[event.Mode]++
	if event.Fallback != "" {
		m.fallbacks[event.Fallback]++
		m.pending.fallbacks[event.Fallback]++
	}
	m.latencies[bucket]++
	m.pending.latencies[bucket]++

	for _, term := range terms {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.pending.terms[term]++
	}

	if event.IsZeroResult() {
		m.zeroResultCount++
		m.zeroResults.Add(event.Query)
		m.pending.zeroResults = append(m.pending.zeroResults, event)
	}

	h := hashQuery(event.Query)
	if _, seen := m.recentHashes.Get(h); seen {
		m.exactRepeats++
	}
	m.recentHashes.Add(h, struct{}{})

	m.recent.Add(RecentQuery{
		Query:     event.Query,
		Mode:      event.Mode,
		Fallback:  event.Fallback,
		Results:   event.ResultCount,
		Latency:   event.Latency,
		Timestamp: event.Timestamp,
	})
}

// hashQuery hashes the accent-folded query for repeat detection.
func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(chunk.Normalize(query))))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns current metrics for reporting.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var topTerms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	slices.SortStableFunc(topTerms, func(a, b TermCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})

	var repeatRate float64
	if m.totalQueries > 0 {
		repeatRate = float64(m.exactRepeats) / float64(m.totalQueries)
	}

	return &QueryMetricsSnapshot{
		ModeCounts:          copyMap(m.modes),
		FallbackCounts:      copyMap(m.fallbacks),
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		RecentQueries:       m.recent.Items(),
		LatencyDistribution: copyMap(m.latencies),
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		ExactRepeatCount:    m.exactRepeats,
		ExactRepeatRate:     repeatRate,
		UniqueQueryCount:    int64(m.recentHashes.Len()),
		Since:               m.startTime,
	}
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Flush writes the counts recorded since the previous flush to the store.
// Safe to call even if no store is configured. On failure the deltas are
// kept for the next attempt.
func (m *QueryMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	p := m.pending
	m.pending = newPending()
	m.mu.Unlock()

	if err := m.writePending(p); err != nil {
		m.mu.Lock()
		m.pending = mergePending(p, m.pending)
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *QueryMetrics) writePending(p pendingCounts) error {
	today := time.Now().Format("2006-01-02")

	if err := m.store.SaveModeCounts(today, p.modes); err != nil {
		return err
	}
	if err := m.store.SaveFallbackCounts(today, p.fallbacks); err != nil {
		return err
	}
	if err := m.store.SaveLatencyCounts(today, p.latencies); err != nil {
		return err
	}
	if err := m.store.UpsertTermCounts(p.terms); err != nil {
		return err
	}
	for _, e := range p.zeroResults {
		if err := m.store.AddZeroResultQuery(e.Query, e.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func mergePending(a, b pendingCounts) pendingCounts {
	for k, v := range b.modes {
		a.modes[k] += v
	}
	for k, v := range b.fallbacks {
		a.fallbacks[k] += v
	}
	for k, v := range b.latencies {
		a.latencies[k] += v
	}
	for k, v := range b.terms {
		a.terms[k] += v
	}
	a.zeroResults = append(a.zeroResults, b.zeroResults...)
	return a
}

// Close stops the flush loop and writes what is pending.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}
	return m.Flush()
}
