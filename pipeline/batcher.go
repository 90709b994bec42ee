package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/maintel/ai"
	"github.com/poiesic/maintel/core"
)

const (
	defaultEmbeddingBatchSize     = 100
	defaultEmbeddingFlushInterval = 200 * time.Millisecond
	defaultMinTextLength          = 50
)

// Handle resolves to the outcome of one submitted text.
type Handle struct {
	done    chan struct{}
	vector  []float32
	skipped bool
	err     error
}

// Wait blocks until the text's batch has been processed or ctx is done.
// skipped is true when the text was below the minimum length and no
// embedding was attempted.
func (h *Handle) Wait(ctx context.Context) (vector []float32, skipped bool, err error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-h.done:
		return h.vector, h.skipped, h.err
	}
}

func resolvedHandle(vector []float32, skipped bool, err error) *Handle {
	h := &Handle{done: make(chan struct{}), vector: vector, skipped: skipped, err: err}
	close(h.done)
	return h
}

type pendingText struct {
	text   string
	handle *Handle
}

// Batcher coalesces embedding requests into provider calls. Texts
// accumulate until the batch is full or the flush interval has elapsed
// since the oldest pending submit, whichever comes first. Each flush is
// one EmbedTexts call; its vectors map back to submitters positionally.
type Batcher struct {
	embedder   ai.Embedder
	batchSize  int
	interval   time.Duration
	minLength  int
	dimensions int
	costs      CostRecorder
	logger     *slog.Logger

	submitCh chan pendingText
	quit     chan struct{}
	loopDone chan struct{}

	mu         sync.Mutex
	closed     bool
	submitters sync.WaitGroup
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher) error

// WithBatchSize sets how many texts trigger an immediate flush.
func WithBatchSize(size int) BatcherOption {
	return func(b *Batcher) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size must be positive", core.ErrInvalidConfig)
		}
		b.batchSize = size
		return nil
	}
}

// WithFlushInterval sets the longest a pending text waits before a flush.
func WithFlushInterval(interval time.Duration) BatcherOption {
	return func(b *Batcher) error {
		if interval <= 0 {
			return fmt.Errorf("%w: flush interval must be positive", core.ErrInvalidConfig)
		}
		b.interval = interval
		return nil
	}
}

// WithMinTextLength sets the length below which texts are skipped rather
// than embedded. Zero disables skipping.
func WithMinTextLength(length int) BatcherOption {
	return func(b *Batcher) error {
		if length < 0 {
			return fmt.Errorf("%w: min text length must not be negative", core.ErrInvalidConfig)
		}
		b.minLength = length
		return nil
	}
}

// WithDimensions sets the expected vector width. Zero disables the check.
func WithDimensions(dimensions int) BatcherOption {
	return func(b *Batcher) error {
		if dimensions < 0 {
			return fmt.Errorf("%w: dimensions must not be negative", core.ErrInvalidConfig)
		}
		b.dimensions = dimensions
		return nil
	}
}

// WithBatcherCostRecorder attaches a usage recorder.
func WithBatcherCostRecorder(costs CostRecorder) BatcherOption {
	return func(b *Batcher) error {
		b.costs = costs
		return nil
	}
}

// WithBatcherLogger sets a custom logger.
// Default is slog.Default().
func WithBatcherLogger(logger *slog.Logger) BatcherOption {
	return func(b *Batcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBatcher creates an embedding batcher and starts its flush loop.
func NewBatcher(embedder ai.Embedder, opts ...BatcherOption) (*Batcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	b := &Batcher{
		embedder:   embedder,
		batchSize:  defaultEmbeddingBatchSize,
		interval:   defaultEmbeddingFlushInterval,
		minLength:  defaultMinTextLength,
		dimensions: 0,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	b.submitCh = make(chan pendingText, b.batchSize*2)
	b.quit = make(chan struct{})
	b.loopDone = make(chan struct{})
	go b.loop()

	return b, nil
}

// Submit enqueues text for embedding. Texts below the minimum length
// resolve immediately as skipped without reaching the provider.
func (b *Batcher) Submit(ctx context.Context, text string) (*Handle, error) {
	if b.minLength > 0 && len(text) < b.minLength {
		b.logger.Debug("skipping short text", "length", len(text), "minLength", b.minLength)
		return resolvedHandle(nil, true, nil), nil
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBatcherClosed
	}
	b.submitters.Add(1)
	b.mu.Unlock()
	defer b.submitters.Done()

	// The loop keeps draining until Close has waited out every submitter
	// registered above, so this send cannot be stranded by a shutdown.
	handle := &Handle{done: make(chan struct{})}
	select {
	case b.submitCh <- pendingText{text: text, handle: handle}:
		return handle, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close flushes any pending texts and stops the flush loop. Submit calls
// already past the closed check are waited for first, so every accepted
// text resolves its handle.
func (b *Batcher) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.submitters.Wait()
	close(b.quit)
	<-b.loopDone
	return nil
}

func (b *Batcher) loop() {
	defer close(b.loopDone)

	var (
		pending []pendingText
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerCh = nil
		}
	}

	flush := func() {
		stopTimer()
		if len(pending) == 0 {
			return
		}
		b.flush(pending)
		pending = nil
	}

	for {
		select {
		case item := <-b.submitCh:
			pending = append(pending, item)
			if len(pending) >= b.batchSize {
				flush()
				continue
			}
			if timer == nil {
				// Interval counts from the oldest pending submit.
				timer = time.NewTimer(b.interval)
				timerCh = timer.C
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			flush()
		case <-b.quit:
			// Drain anything buffered before the final flush.
			for {
				select {
				case item := <-b.submitCh:
					pending = append(pending, item)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush embeds one batch. Failure is atomic: every handle in the batch
// resolves with the same error.
func (b *Batcher) flush(batch []pendingText) {
	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = item.text
	}

	vectors, err := b.embedder.EmbedTexts(context.Background(), texts)
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	if err != nil {
		b.logger.Error("embedding batch failed", "batchSize", len(batch), "err", err)
		batchErr := &EmbeddingError{BatchSize: len(batch), Err: err}
		for _, item := range batch {
			item.handle.err = batchErr
			close(item.handle.done)
		}
		return
	}

	for i, item := range batch {
		if b.dimensions > 0 && len(vectors[i]) != b.dimensions {
			item.handle.err = fmt.Errorf("%w: expected %d dimensions, got %d",
				core.ErrInvalidConfig, b.dimensions, len(vectors[i]))
		} else {
			item.handle.vector = vectors[i]
		}
		close(item.handle.done)
	}

	if b.costs != nil {
		total := 0
		for _, text := range texts {
			total += estimateTokens(text)
		}
		b.costs.Record("embedding", total)
	}

	b.logger.Debug("embedding batch flushed", "batchSize", len(batch))
}
