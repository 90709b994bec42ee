package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/maintel/ai"
	"github.com/poiesic/maintel/core"
	"github.com/poiesic/maintel/pipeline"
	"github.com/poiesic/maintel/storage"
)

// defaultMinSimilarity filters out weak matches before ranking.
const defaultMinSimilarity = 0.60

// Index provides semantic similarity search over stored extraction records.
// Vectors are unit-normalized on insert so that dot product equals cosine
// similarity at query time.
type Index struct {
	records       storage.RecordRepository
	embedder      ai.Embedder
	batcher       *pipeline.Batcher
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures an Index.
type Option func(*Index) error

// WithMinSimilarity sets the score threshold below which matches are dropped.
// Default is 0.60.
func WithMinSimilarity(min float32) Option {
	return func(i *Index) error {
		i.minSimilarity = min
		return nil
	}
}

// WithBatcher routes query embeddings through the shared batcher instead
// of a direct provider call.
func WithBatcher(batcher *pipeline.Batcher) Option {
	return func(i *Index) error {
		i.batcher = batcher
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// NewIndex creates a search index over the given repository.
func NewIndex(records storage.RecordRepository, embedder ai.Embedder, opts ...Option) (*Index, error) {
	if records == nil {
		return nil, ErrRecordRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	i := &Index{
		records:       records,
		embedder:      embedder,
		minSimilarity: defaultMinSimilarity,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}

	return i, nil
}

// Insert upserts a record and its vector. The vector is unit-normalized
// before storage; an existing record keeps its original insertion time.
func (i *Index) Insert(ctx context.Context, record *core.ExtractionRecord) (*core.ExtractionRecord, error) {
	if len(record.Vector) > 0 {
		record.Vector = core.NormalizeVector(record.Vector)
	}

	updated, err := i.records.UpdateRecord(ctx, record)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	return i.records.AddRecord(ctx, record)
}

// Query returns up to k stored records most similar to the vector, ranked
// by cosine similarity descending with ties broken by recency.
func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]*core.SimilarityMatch, error) {
	return i.records.FindSimilar(ctx, core.NormalizeVector(vector), i.minSimilarity, k)
}

// FindSimilar embeds the query text and returns up to k similar records.
func (i *Index) FindSimilar(ctx context.Context, query string, k int) ([]*core.SimilarityMatch, error) {
	return i.FindSimilarWithMonitor(ctx, query, k, nil)
}

// FindSimilarWithMonitor is FindSimilar with stage callbacks.
// The monitor receives callbacks at each stage of the search process.
func (i *Index) FindSimilarWithMonitor(ctx context.Context, query string, k int, monitor Monitor) ([]*core.SimilarityMatch, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if core.NormalizeText(query) == "" {
		return nil, ErrEmptyQuery
	}

	monitor.Start(query)

	vector, err := i.embedQuery(ctx, query)
	if err != nil {
		i.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterQueryEmbedding(vector)

	matches, err := i.Query(ctx, vector, k)
	if err != nil {
		i.logger.Error("error querying for similar records", "err", err)
		return nil, err
	}
	monitor.AfterVectorSearch(matches)

	monitor.Finish(matches)
	return matches, nil
}

// embedQuery prefers the shared batcher; queries below the batcher's
// minimum length fall back to a direct embedding call so that short
// queries still work.
func (i *Index) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if i.batcher != nil {
		handle, err := i.batcher.Submit(ctx, query)
		if err != nil {
			return nil, err
		}
		vector, skipped, err := handle.Wait(ctx)
		if err != nil {
			return nil, err
		}
		if !skipped {
			return vector, nil
		}
	}
	return i.embedder.EmbedText(ctx, query)
}
