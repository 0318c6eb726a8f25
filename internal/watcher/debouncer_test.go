package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corpusPath = "/data/peron_docs.json"

func receiveBatch(t *testing.T, d *Debouncer, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(timeout):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Operation
		wantOp Operation
		empty  bool
	}{
		{name: "single event passes through", ops: []Operation{OpModify}, wantOp: OpModify},
		{name: "repeated writes collapse", ops: []Operation{OpModify, OpModify, OpModify}, wantOp: OpModify},
		{name: "create then modify stays create", ops: []Operation{OpCreate, OpModify}, wantOp: OpCreate},
		{name: "modify then delete is delete", ops: []Operation{OpModify, OpDelete}, wantOp: OpDelete},
		{name: "delete then create is modify", ops: []Operation{OpDelete, OpCreate}, wantOp: OpModify},
		{name: "rename then create keeps create", ops: []Operation{OpRename, OpCreate}, wantOp: OpCreate},
		{name: "create then delete cancels", ops: []Operation{OpCreate, OpDelete}, empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a debouncer with a short window
			d := NewDebouncer(40 * time.Millisecond)
			defer d.Stop()

			// When: the operations arrive inside one window
			for _, op := range tt.ops {
				d.Add(FileEvent{Path: corpusPath, Operation: op, Timestamp: time.Now()})
			}

			// Then: at most one merged event comes out
			if tt.empty {
				select {
				case events := <-d.Output():
					t.Fatalf("expected no batch, got %v", events)
				case <-time.After(150 * time.Millisecond):
				}
				return
			}
			events := receiveBatch(t, d, 300*time.Millisecond)
			require.Len(t, events, 1)
			assert.Equal(t, corpusPath, events[0].Path)
			assert.Equal(t, tt.wantOp, events[0].Operation)
		})
	}
}

func TestDebouncer_NewEventRestartsWindow(t *testing.T) {
	// Given: a debouncer with a 100ms window
	d := NewDebouncer(100 * time.Millisecond)
	defer d.Stop()

	// When: writes keep arriving faster than the window
	for range 5 {
		d.Add(FileEvent{Path: corpusPath, Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(30 * time.Millisecond)
	}

	// Then: a single batch is emitted after the last write
	events := receiveBatch(t, d, 500*time.Millisecond)
	require.Len(t, events, 1)
	select {
	case extra := <-d.Output():
		t.Fatalf("unexpected second batch %v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_DifferentFiles_SortedBatch(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(40 * time.Millisecond)
	defer d.Stop()

	// When: events for several files arrive together
	d.Add(FileEvent{Path: "/data/c.json", Operation: OpDelete, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "/data/a.json", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "/data/b.json", Operation: OpModify, Timestamp: time.Now()})

	// Then: one batch sorted by path
	events := receiveBatch(t, d, 300*time.Millisecond)
	require.Len(t, events, 3)
	assert.Equal(t, "/data/a.json", events[0].Path)
	assert.Equal(t, "/data/b.json", events[1].Path)
	assert.Equal(t, "/data/c.json", events[2].Path)
}

func TestDebouncer_Stop_ClosesOutput(t *testing.T) {
	// Given: a debouncer with a pending event
	d := NewDebouncer(time.Second)
	d.Add(FileEvent{Path: corpusPath, Operation: OpModify, Timestamp: time.Now()})

	// When: it is stopped twice
	d.Stop()
	d.Stop()

	// Then: output is closed and later events are ignored
	_, ok := <-d.Output()
	assert.False(t, ok)
	d.Add(FileEvent{Path: corpusPath, Operation: OpModify, Timestamp: time.Now()})
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "RENAME", OpRename.String())
}
