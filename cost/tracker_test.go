package cost

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsAndSummarizes(t *testing.T) {
	tracker := NewTracker()

	tracker.Record("extraction_input", 2000)
	tracker.Record("extraction_output", 1000)
	tracker.Record("embedding", 50000)

	summary := tracker.Summarize(time.Time{})
	assert.Equal(t, 3, tracker.EntryCount())
	assert.InDelta(t, 0.006, summary.ByCallType["extraction_input"].Cost, 1e-9)
	assert.InDelta(t, 0.015, summary.ByCallType["extraction_output"].Cost, 1e-9)
	assert.InDelta(t, 0.001, summary.ByCallType["embedding"].Cost, 1e-9)
	assert.InDelta(t, 0.022, summary.TotalCost, 1e-9)
	assert.Equal(t, 53000, summary.TotalUnits)
}

func TestTrackerSwallowsUnknownCallType(t *testing.T) {
	tracker := NewTracker()

	tracker.Record("telepathy", 500)

	assert.Equal(t, 0, tracker.EntryCount())
	assert.Zero(t, tracker.Summarize(time.Time{}).TotalCost)
}

func TestTrackerIgnoresNegativeUnits(t *testing.T) {
	tracker := NewTracker()

	tracker.Record("embedding", -10)

	assert.Equal(t, 0, tracker.EntryCount())
}

func TestTrackerSummarizeSince(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker(WithClock(func() time.Time { return current }))

	tracker.Record("embedding", 1000)
	current = current.Add(time.Hour)
	tracker.Record("embedding", 3000)

	cutoff := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	summary := tracker.Summarize(cutoff)
	assert.Equal(t, 1, summary.ByCallType["embedding"].Calls)
	assert.Equal(t, 3000, summary.TotalUnits)

	// Entries stamped exactly at the cutoff are included.
	full := tracker.Summarize(time.Time{})
	assert.Equal(t, 4000, full.TotalUnits)
}

func TestTrackerConcurrentRecording(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tracker.Record("embedding", 10)
			}
		}()
	}
	wg.Wait()

	summary := tracker.Summarize(time.Time{})
	assert.Equal(t, 1000, summary.ByCallType["embedding"].Calls)
	assert.Equal(t, 10000, summary.TotalUnits)
}
