package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveBatch(t *testing.T, ch <-chan []FileEvent, within time.Duration) []FileEvent {
	t.Helper()
	select {
	case batch, ok := <-ch:
		require.True(t, ok, "channel closed")
		return batch
	case <-time.After(within):
		t.Fatal("timeout waiting for batch")
		return nil
	}
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: an export job writes the file several times
	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "/data/entries.json", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(5 * time.Millisecond)
	}

	// Then: one batch with one event comes out
	batch := receiveBatch(t, d.Output(), time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name     string
		prev     Operation
		next     Operation
		want     Operation
		wantKeep bool
	}{
		{"create then modify", OpCreate, OpModify, OpCreate, true},
		{"create then delete", OpCreate, OpDelete, 0, false},
		{"delete then create", OpDelete, OpCreate, OpModify, true},
		{"modify then delete", OpModify, OpDelete, OpDelete, true},
		{"rename then create", OpRename, OpCreate, OpCreate, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := coalesce(FileEvent{Path: "f", Operation: tt.prev}, FileEvent{Path: "f", Operation: tt.next})

			assert.Equal(t, tt.wantKeep, keep)
			if keep {
				assert.Equal(t, tt.want, got.Operation)
			}
		})
	}
}

func TestDebouncer_CreateThenDeleteEmitsNothing(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "tmp.json", Operation: OpCreate})
	d.Add(FileEvent{Path: "tmp.json", Operation: OpDelete})

	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch %v", batch)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "b.json", Operation: OpModify})
	d.Add(FileEvent{Path: "a.json", Operation: OpModify})

	batch := receiveBatch(t, d.Output(), time.Second)
	require.Len(t, batch, 2)
	assert.Equal(t, "a.json", batch[0].Path)
	assert.Equal(t, "b.json", batch[1].Path)
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(time.Hour)
	d.Add(FileEvent{Path: "x", Operation: OpModify})

	d.Stop()
	d.Stop()
	d.Add(FileEvent{Path: "y", Operation: OpModify})

	_, ok := <-d.Output()
	assert.False(t, ok)
}
