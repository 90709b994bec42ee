package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/maintel/ai"
	"github.com/poiesic/maintel/ai/mock"
	"github.com/poiesic/maintel/core"
	"github.com/poiesic/maintel/storage"
	"github.com/poiesic/maintel/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pumpReport = "Pump P-101 exhibiting excessive vibration and bearing noise. " +
	"Temperature elevated on drive end. Recommend bearing replacement during next shutdown."

func setupOrchestrator(t *testing.T, extractor ai.FailureExtractor, opts ...OrchestratorOption) (*Orchestrator, storage.ExtractionCache) {
	t.Helper()

	_, cache, backend, err := badger.NewMemoryStore(time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	orch, err := NewOrchestrator(cache, extractor, opts...)
	require.NoError(t, err)
	t.Cleanup(orch.Release)

	return orch, cache
}

func TestExtractValidatesDocument(t *testing.T) {
	orch, _ := setupOrchestrator(t, mock.NewMockFailureExtractor())

	_, err := orch.Extract(context.Background(), core.NewDocument("d1", "   \n\t  "))
	assert.ErrorIs(t, err, core.ErrEmptyDocument)

	_, err = orch.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestExtractPumpReport(t *testing.T) {
	extractor := mock.NewMockFailureExtractor()
	orch, _ := setupOrchestrator(t, extractor)

	record, err := orch.Extract(context.Background(), core.NewDocument("d1", pumpReport))
	require.NoError(t, err)

	assert.Equal(t, "P-101", record.Failure.EquipmentID)
	assert.Equal(t, "bearing", record.Failure.FailureMode)
	assert.Equal(t, core.FingerprintText(pumpReport), record.Fingerprint)
	assert.Equal(t, 1, extractor.CallCount())
}

func TestExtractServesFromCache(t *testing.T) {
	extractor := mock.NewMockFailureExtractor()
	orch, _ := setupOrchestrator(t, extractor)
	ctx := context.Background()

	first, err := orch.Extract(ctx, core.NewDocument("d1", pumpReport))
	require.NoError(t, err)

	// Same text with different surrounding whitespace hits the same entry.
	second, err := orch.Extract(ctx, core.NewDocument("d2", "  "+pumpReport+"\n"))
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, 1, extractor.CallCount(), "repeat extraction must be served from cache")
}

func TestExtractSingleFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	extractor := mock.NewMockFailureExtractor()
	extractor.ExtractFailureFunc = func(ctx context.Context, text string) (*core.Failure, error) {
		calls.Add(1)
		<-release
		return &core.Failure{EquipmentID: "P-101", FailureMode: "bearing", Severity: 3, Summary: "bearing wear"}, nil
	}
	orch, _ := setupOrchestrator(t, extractor)

	const waiters = 8
	var wg sync.WaitGroup
	records := make([]*core.ExtractionRecord, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i], errs[i] = orch.Extract(context.Background(), core.NewDocument("d", pumpReport))
		}(i)
	}

	// Let every waiter reach the flight before releasing the call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load(), "concurrent identical documents must share one provider call")
	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, records[0].Fingerprint, records[i].Fingerprint)
	}
}

func TestExtractConcurrencyCap(t *testing.T) {
	const limit = 2
	var inFlight, peak atomic.Int32
	extractor := mock.NewMockFailureExtractor()
	extractor.ExtractFailureFunc = func(ctx context.Context, text string) (*core.Failure, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return &core.Failure{EquipmentID: "E-1", FailureMode: "wear", Severity: 2, Summary: text}, nil
	}
	orch, _ := setupOrchestrator(t, extractor, WithConcurrency(limit))

	texts := []string{
		"Compressor C-201 discharge valve wear observed during inspection round today",
		"Conveyor CV-17 belt edge wear progressing along the return side rollers",
		"Fan F-33 impeller showing erosion wear on the leading edges of all blades",
		"Gearbox G-08 input shaft spline wear measured beyond the allowable limit",
		"Mixer M-12 agitator blade wear causing reduced throughput on line two",
		"Crusher CR-04 liner wear approaching minimum thickness on the north wall",
	}

	var wg sync.WaitGroup
	for _, text := range texts {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, err := orch.Extract(context.Background(), core.NewDocument("d", text))
			assert.NoError(t, err)
		}(text)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(limit), "in-flight extractions must respect the concurrency cap")
}

func TestExtractRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	extractor := mock.NewMockFailureExtractor()
	extractor.ExtractFailureFunc = func(ctx context.Context, text string) (*core.Failure, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("upstream unavailable")
		}
		return &core.Failure{EquipmentID: "P-101", FailureMode: "bearing", Severity: 3, Summary: "ok"}, nil
	}
	orch, _ := setupOrchestrator(t, extractor,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	_, err := orch.Extract(context.Background(), core.NewDocument("d1", pumpReport))
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestExtractDoesNotRetryInvalidResponse(t *testing.T) {
	var calls atomic.Int32
	extractor := mock.NewMockFailureExtractor()
	extractor.ExtractFailureFunc = func(ctx context.Context, text string) (*core.Failure, error) {
		calls.Add(1)
		return nil, ai.ErrInvalidResponse
	}
	orch, _ := setupOrchestrator(t, extractor,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	_, err := orch.Extract(context.Background(), core.NewDocument("d1", pumpReport))
	require.Error(t, err)

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, KindInvalidResponse, extractionErr.Kind)
	assert.False(t, extractionErr.Retriable())
	assert.EqualValues(t, 1, calls.Load(), "malformed output must not be retried")
}

func TestExtractMalformedStructureNotRetried(t *testing.T) {
	var calls atomic.Int32
	extractor := mock.NewMockFailureExtractor()
	extractor.ExtractFailureFunc = func(ctx context.Context, text string) (*core.Failure, error) {
		calls.Add(1)
		// Severity out of range fails structural validation.
		return &core.Failure{EquipmentID: "P-101", FailureMode: "bearing", Severity: 9, Summary: "bad"}, nil
	}
	orch, _ := setupOrchestrator(t, extractor,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))

	_, err := orch.Extract(context.Background(), core.NewDocument("d1", pumpReport))
	require.Error(t, err)

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, KindInvalidResponse, extractionErr.Kind)
	assert.EqualValues(t, 1, calls.Load())
}

func TestExtractTimeoutClassification(t *testing.T) {
	var calls atomic.Int32
	extractor := mock.NewMockFailureExtractor()
	extractor.ExtractFailureFunc = func(ctx context.Context, text string) (*core.Failure, error) {
		calls.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	orch, _ := setupOrchestrator(t, extractor,
		WithExtractionTimeout(10*time.Millisecond),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}))

	_, err := orch.Extract(context.Background(), core.NewDocument("d1", pumpReport))
	require.Error(t, err)

	var extractionErr *ExtractionError
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, KindTimeout, extractionErr.Kind)
	assert.True(t, extractionErr.Retriable())
	assert.EqualValues(t, 2, calls.Load(), "timeouts are transient and retried")
}

func TestExtractWaiterCancellation(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	extractor := mock.NewMockFailureExtractor()
	extractor.ExtractFailureFunc = func(ctx context.Context, text string) (*core.Failure, error) {
		once.Do(func() { close(started) })
		<-release
		return &core.Failure{EquipmentID: "P-101", FailureMode: "bearing", Severity: 3, Summary: "ok"}, nil
	}
	orch, _ := setupOrchestrator(t, extractor)

	firstDone := make(chan error, 1)
	go func() {
		_, err := orch.Extract(context.Background(), core.NewDocument("d1", pumpReport))
		firstDone <- err
	}()
	<-started

	// A second caller joins the flight, then gives up.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := orch.Extract(ctx, core.NewDocument("d2", pumpReport))
	assert.ErrorIs(t, err, context.Canceled)

	// The in-flight call is unaffected by the abandoned waiter.
	close(release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 1, extractor.CallCount())
}

type recordingCosts struct {
	mu      sync.Mutex
	entries map[string]int
}

func (r *recordingCosts) Record(callType string, units int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]int)
	}
	r.entries[callType] += units
}

func (r *recordingCosts) units(callType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[callType]
}

func TestExtractRecordsCosts(t *testing.T) {
	costs := &recordingCosts{}
	orch, _ := setupOrchestrator(t, mock.NewMockFailureExtractor(), WithCostRecorder(costs))

	_, err := orch.Extract(context.Background(), core.NewDocument("d1", pumpReport))
	require.NoError(t, err)

	assert.Positive(t, costs.units("extraction_input"))
	assert.Positive(t, costs.units("extraction_output"))

	// Cache hits cost nothing.
	_, err = orch.Extract(context.Background(), core.NewDocument("d2", pumpReport))
	require.NoError(t, err)
	assert.Equal(t, estimateTokens(pumpReport), costs.units("extraction_input"))
}

func TestNewOrchestratorValidation(t *testing.T) {
	_, cache, backend, err := badger.NewMemoryStore(time.Hour)
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewOrchestrator(nil, mock.NewMockFailureExtractor())
	assert.ErrorIs(t, err, ErrCacheRequired)

	_, err = NewOrchestrator(cache, nil)
	assert.ErrorIs(t, err, ErrExtractorRequired)

	_, err = NewOrchestrator(cache, mock.NewMockFailureExtractor(),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 0}))
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
