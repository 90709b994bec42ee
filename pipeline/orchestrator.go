package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/maintel/ai"
	"github.com/poiesic/maintel/core"
	"github.com/poiesic/maintel/storage"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	defaultMaxConcurrentExtractions = 5
	defaultExtractionTimeout        = 60 * time.Second
	defaultMaxDocumentSize          = 50 << 20 // 50 MiB
)

// CostRecorder receives per-call usage from the pipeline. Recording must
// never block or fail extraction progress.
type CostRecorder interface {
	Record(callType string, units int)
}

// Orchestrator runs failure extractions through the cache, a de-duplication
// layer, and a bounded worker pool. Concurrent requests for the same
// fingerprint share a single provider call; distinct fingerprints queue
// FIFO behind the concurrency cap.
type Orchestrator struct {
	cache     storage.ExtractionCache
	extractor ai.FailureExtractor
	pool      *ants.Pool
	flight    singleflight.Group
	limiter   *rate.Limiter
	retry     RetryPolicy
	timeout   time.Duration
	maxSize   int
	costs     CostRecorder
	logger    *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator) error

// WithConcurrency caps the number of extractions in flight.
// Default is 5; values below 1 are clamped to 1.
func WithConcurrency(size int) OrchestratorOption {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		if o.pool != nil {
			o.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		o.pool = pool
		return nil
	}
}

// WithRetryPolicy sets the retry policy for transient extraction failures.
func WithRetryPolicy(policy RetryPolicy) OrchestratorOption {
	return func(o *Orchestrator) error {
		if policy.MaxAttempts <= 0 {
			return fmt.Errorf("%w: %w", core.ErrInvalidConfig, ErrInvalidMaxAttempts)
		}
		o.retry = policy
		return nil
	}
}

// WithExtractionTimeout sets the per-attempt deadline for provider calls.
func WithExtractionTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: extraction timeout must be positive", core.ErrInvalidConfig)
		}
		o.timeout = timeout
		return nil
	}
}

// WithMaxDocumentSize sets the largest accepted document in bytes.
func WithMaxDocumentSize(size int) OrchestratorOption {
	return func(o *Orchestrator) error {
		if size <= 0 {
			return fmt.Errorf("%w: max document size must be positive", core.ErrInvalidConfig)
		}
		o.maxSize = size
		return nil
	}
}

// WithRateLimit caps provider calls per minute. Zero disables limiting.
func WithRateLimit(perMinute int) OrchestratorOption {
	return func(o *Orchestrator) error {
		if perMinute < 0 {
			return fmt.Errorf("%w: rate limit must not be negative", core.ErrInvalidConfig)
		}
		if perMinute == 0 {
			o.limiter = nil
			return nil
		}
		o.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		return nil
	}
}

// WithCostRecorder attaches a usage recorder.
func WithCostRecorder(costs CostRecorder) OrchestratorOption {
	return func(o *Orchestrator) error {
		o.costs = costs
		return nil
	}
}

// WithOrchestratorLogger sets a custom logger.
// Default is slog.Default().
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an extraction orchestrator.
func NewOrchestrator(cache storage.ExtractionCache, extractor ai.FailureExtractor, opts ...OrchestratorOption) (*Orchestrator, error) {
	if cache == nil {
		return nil, ErrCacheRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	pool, err := ants.NewPool(defaultMaxConcurrentExtractions)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cache:     cache,
		extractor: extractor,
		pool:      pool,
		retry:     DefaultRetryPolicy,
		timeout:   defaultExtractionTimeout,
		maxSize:   defaultMaxDocumentSize,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(o); optErr != nil {
			o.Release()
			return nil, optErr
		}
	}

	return o, nil
}

// Extract returns the extraction record for doc, from the cache when a live
// entry exists, otherwise from a provider call shared by all concurrent
// callers with the same fingerprint. Cancelling ctx while queued abandons
// the wait; the in-flight call still completes and populates the cache for
// the remaining waiters.
func (o *Orchestrator) Extract(ctx context.Context, doc *core.Document) (*core.ExtractionRecord, error) {
	if err := core.ValidateDocument(doc, o.maxSize); err != nil {
		return nil, err
	}

	fp := doc.Fingerprint
	if fp == "" {
		fp = core.FingerprintText(doc.Text)
	}

	if record, err := o.cache.Get(ctx, fp); err == nil {
		o.logger.Debug("extraction cache hit", "fingerprint", fp)
		return record, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	ch := o.flight.DoChan(string(fp), func() (any, error) {
		return o.extract(fp, doc.Text)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		// The single-flight result is shared by every waiter; each gets
		// its own copy so downstream mutation cannot race the others.
		return result.Val.(*core.ExtractionRecord).Clone(), nil
	}
}

// extract runs one shared extraction. It is detached from any single
// caller's context so that cancellation of one waiter cannot poison the
// outcome for the rest.
func (o *Orchestrator) extract(fp core.Fingerprint, text string) (*core.ExtractionRecord, error) {
	var (
		record *core.ExtractionRecord
		err    error
	)

	done := make(chan struct{})
	if submitErr := o.pool.Submit(func() {
		defer close(done)
		record, err = o.runExtraction(fp, text)
	}); submitErr != nil {
		return nil, submitErr
	}
	<-done

	return record, err
}

func (o *Orchestrator) runExtraction(fp core.Fingerprint, text string) (*core.ExtractionRecord, error) {
	ctx := context.Background()

	var failure *core.Failure
	operation := func() error {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return &ExtractionError{Kind: KindProvider, Fingerprint: fp, Err: err}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		extracted, err := o.extractor.ExtractFailure(attemptCtx, text)
		if err != nil {
			return &ExtractionError{Kind: classifyExtractionError(err), Fingerprint: fp, Err: err}
		}

		if err := core.ValidateFailure(extracted); err != nil {
			return &ExtractionError{Kind: KindInvalidResponse, Fingerprint: fp, Err: err}
		}

		failure = extracted
		return nil
	}

	if err := o.retry.Do(ctx, operation); err != nil {
		o.logger.Error("extraction failed", "fingerprint", fp, "err", err)
		return nil, err
	}

	record := &core.ExtractionRecord{
		Fingerprint: fp,
		Failure:     *failure,
		SourceText:  text,
		CreatedAt:   time.Now().UTC(),
	}

	if err := o.cache.Put(ctx, record); err != nil {
		// The extraction itself succeeded; serve it and let the next
		// request repopulate the cache.
		o.logger.Error("failed to cache extraction", "fingerprint", fp, "err", err)
	}

	if o.costs != nil {
		o.costs.Record("extraction_input", estimateTokens(text))
		o.costs.Record("extraction_output", estimateTokens(failure.Summary))
	}

	o.logger.Debug("extraction complete", "fingerprint", fp, "failureMode", failure.FailureMode)
	return record, nil
}

func classifyExtractionError(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ai.ErrInvalidResponse):
		return KindInvalidResponse
	default:
		return KindProvider
	}
}

// estimateTokens approximates token usage at four bytes per token.
func estimateTokens(text string) int {
	tokens := len(text) / 4
	if tokens < 1 && len(text) > 0 {
		tokens = 1
	}
	return tokens
}

// Release releases the worker pool.
// The orchestrator should not be used after calling Release.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}
