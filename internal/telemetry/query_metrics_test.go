package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CircularBuffer Tests
// =============================================================================

func TestCircularBuffer_MaintainsCapacity(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	buf.Add("query1")
	buf.Add("query2")
	buf.Add("query3")
	buf.Add("query4") // evicts query1
	buf.Add("query5") // evicts query2

	assert.Equal(t, []string{"query3", "query4", "query5"}, buf.Items())
	assert.Equal(t, 3, buf.Size())
}

func TestCircularBuffer_EmptyItems(t *testing.T) {
	buf := NewCircularBuffer[string](10)

	items := buf.Items()
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

// =============================================================================
// Latency & Terms
// =============================================================================

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{120 * time.Millisecond, BucketP250},
		{600 * time.Millisecond, BucketP1000},
		{3 * time.Second, BucketSlow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.d), tt.d.String())
	}
}

func TestExtractTerms_FoldsAccents(t *testing.T) {
	assert.Equal(t, []string{"que", "dijo", "sobre", "nacion"}, ExtractTerms("¿Qué dijo sobre la Nación?"))
	assert.Empty(t, ExtractTerms("  "))
}

// =============================================================================
// QueryMetrics
// =============================================================================

func TestQueryMetrics_Record(t *testing.T) {
	m := NewQueryMetrics(nil)

	m.Record(QueryEvent{Query: "justicia social", Mode: ModeSemantic, ResultCount: 4, Latency: 300 * time.Millisecond})
	m.Record(QueryEvent{Query: "justicia social", Mode: ModeLexical, Fallback: "no_provider", ResultCount: 4, Latency: 2 * time.Millisecond})
	m.Record(QueryEvent{Query: "xyz", Mode: ModeEmpty})

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.TotalQueries)
	assert.Equal(t, int64(1), s.ModeCounts[ModeSemantic])
	assert.Equal(t, int64(1), s.ModeCounts[ModeLexical])
	assert.Equal(t, int64(1), s.ModeCounts[ModeEmpty])
	assert.Equal(t, int64(1), s.FallbackCounts["no_provider"])
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, []string{"xyz"}, s.ZeroResultQueries)
	assert.Equal(t, int64(1), s.ExactRepeatCount)
	assert.Equal(t, int64(2), s.UniqueQueryCount)
	assert.InDelta(t, 33.33, s.ZeroResultPercentage(), 0.01)
	assert.InDelta(t, 1.0/3, s.SemanticRate(), 1e-9)

	require.NotEmpty(t, s.TopTerms)
	assert.Equal(t, TermCount{Term: "justicia", Count: 2}, s.TopTerms[0])
	require.Len(t, s.RecentQueries, 3)
	assert.Equal(t, "xyz", s.RecentQueries[2].Query)
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record(QueryEvent{Query: "trabajo", Mode: ModeLexical, ResultCount: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.Snapshot().TotalQueries)
}

func TestQueryMetrics_ClosedIgnoresRecords(t *testing.T) {
	m := NewQueryMetrics(nil)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	m.Record(QueryEvent{Query: "x", Mode: ModeLexical})
	assert.Zero(t, m.Snapshot().TotalQueries)
}
