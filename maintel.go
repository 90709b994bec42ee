// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package maintel

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/maintel/ai"
	"github.com/poiesic/maintel/ai/openai"
	"github.com/poiesic/maintel/core"
	"github.com/poiesic/maintel/cost"
	"github.com/poiesic/maintel/pipeline"
	"github.com/poiesic/maintel/reindex"
	"github.com/poiesic/maintel/search"
	"github.com/poiesic/maintel/storage"
	"github.com/poiesic/maintel/storage/badger"
)

// Service owns the full extraction and embedding stack for one store:
// the badger backend, repositories, cache tiers, AI provider,
// orchestrator, batcher, search index, and cost tracker.
type Service struct {
	backend      *badger.Backend
	records      storage.RecordRepository
	cache        storage.ExtractionCache
	provider     ai.AIProvider
	orchestrator *pipeline.Orchestrator
	batcher      *pipeline.Batcher
	index        *search.Index
	costs        *cost.Tracker
	logger       *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	aiConfig           *ai.Config
	provider           ai.AIProvider
	cacheTTL           time.Duration
	lruSize            int
	maxDocumentSize    int
	maxConcurrent      int
	batchSize          int
	flushInterval      time.Duration
	minTextLength      int
	dimensions         int
	retryPolicy        pipeline.RetryPolicy
	extractionTimeout  time.Duration
	rateLimitPerMinute int
	inMemory           bool
	logger             *slog.Logger
}

func defaultServiceOptions() *serviceOptions {
	return &serviceOptions{
		aiConfig:           ai.DefaultConfig(),
		cacheTTL:           30 * 24 * time.Hour,
		lruSize:            1024,
		maxDocumentSize:    50 << 20, // 50 MiB
		maxConcurrent:      5,
		batchSize:          100,
		flushInterval:      200 * time.Millisecond,
		minTextLength:      50,
		dimensions:         0, // taken from the AI config unless overridden
		retryPolicy:        pipeline.DefaultRetryPolicy,
		extractionTimeout:  60 * time.Second,
		rateLimitPerMinute: 0,
		logger:             slog.Default(),
	}
}

// WithAIConfig sets the provider configuration used when no explicit
// provider is injected.
func WithAIConfig(config *ai.Config) ServiceOption {
	return func(o *serviceOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithProvider injects an AI provider, bypassing the configured one.
// Tests use this to run against deterministic doubles.
func WithProvider(provider ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// WithCacheTTL sets how long extraction results stay valid.
// Default is 30 days.
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.cacheTTL = ttl
	}
}

// WithLRUSize sets the in-memory cache tier capacity. Zero disables it.
func WithLRUSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		o.lruSize = size
	}
}

// WithMaxDocumentSize sets the largest accepted document in bytes.
func WithMaxDocumentSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		o.maxDocumentSize = size
	}
}

// WithMaxConcurrentExtractions caps extractions in flight.
func WithMaxConcurrentExtractions(n int) ServiceOption {
	return func(o *serviceOptions) {
		o.maxConcurrent = n
	}
}

// WithEmbeddingBatchSize sets how many texts trigger an embedding flush.
func WithEmbeddingBatchSize(size int) ServiceOption {
	return func(o *serviceOptions) {
		o.batchSize = size
	}
}

// WithEmbeddingFlushInterval sets the embedding batch flush interval.
func WithEmbeddingFlushInterval(interval time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.flushInterval = interval
	}
}

// WithMinTextLength sets the length below which texts are not embedded.
func WithMinTextLength(length int) ServiceOption {
	return func(o *serviceOptions) {
		o.minTextLength = length
	}
}

// WithEmbeddingDimensions overrides the expected vector width.
func WithEmbeddingDimensions(dim int) ServiceOption {
	return func(o *serviceOptions) {
		o.dimensions = dim
	}
}

// WithRetryPolicy sets the retry policy for transient extraction failures.
func WithRetryPolicy(policy pipeline.RetryPolicy) ServiceOption {
	return func(o *serviceOptions) {
		o.retryPolicy = policy
	}
}

// WithExtractionTimeout sets the per-attempt provider deadline.
func WithExtractionTimeout(timeout time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.extractionTimeout = timeout
	}
}

// WithRateLimit caps provider calls per minute. Zero disables limiting.
func WithRateLimit(perMinute int) ServiceOption {
	return func(o *serviceOptions) {
		o.rateLimitPerMinute = perMinute
	}
}

// WithInMemoryStore keeps all data in memory. Intended for tests.
func WithInMemoryStore() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New opens the store at filePath and wires the processing stack.
func New(filePath string, opts ...ServiceOption) (*Service, error) {
	options := defaultServiceOptions()
	for _, opt := range opts {
		opt(options)
	}

	dimensions := options.dimensions
	if dimensions == 0 {
		dimensions = options.aiConfig.EmbeddingDimensions
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	records := badger.NewRecordRepository(backend)

	baseCache, err := badger.NewExtractionCache(backend, options.cacheTTL)
	if err != nil {
		backend.Close()
		return nil, err
	}
	cacheTier := storage.WrapLRUCache(baseCache, options.lruSize, options.cacheTTL)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	costs := cost.NewTracker(cost.WithLogger(options.logger))

	orchestrator, err := pipeline.NewOrchestrator(cacheTier, provider.FailureExtractor(),
		pipeline.WithConcurrency(options.maxConcurrent),
		pipeline.WithRetryPolicy(options.retryPolicy),
		pipeline.WithExtractionTimeout(options.extractionTimeout),
		pipeline.WithMaxDocumentSize(options.maxDocumentSize),
		pipeline.WithRateLimit(options.rateLimitPerMinute),
		pipeline.WithCostRecorder(costs),
		pipeline.WithOrchestratorLogger(options.logger),
	)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	batcher, err := pipeline.NewBatcher(provider.Embedder(),
		pipeline.WithBatchSize(options.batchSize),
		pipeline.WithFlushInterval(options.flushInterval),
		pipeline.WithMinTextLength(options.minTextLength),
		pipeline.WithDimensions(dimensions),
		pipeline.WithBatcherCostRecorder(costs),
		pipeline.WithBatcherLogger(options.logger),
	)
	if err != nil {
		orchestrator.Release()
		provider.Close()
		backend.Close()
		return nil, err
	}

	index, err := search.NewIndex(records, provider.Embedder(),
		search.WithBatcher(batcher),
		search.WithLogger(options.logger),
	)
	if err != nil {
		batcher.Close()
		orchestrator.Release()
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Service{
		backend:      backend,
		records:      records,
		cache:        cacheTier,
		provider:     provider,
		orchestrator: orchestrator,
		batcher:      batcher,
		index:        index,
		costs:        costs,
		logger:       options.logger,
	}, nil
}

// SubmitDocument extracts structured failure data from text, embeds it,
// and indexes the result for similarity search. Identical text is served
// from the extraction cache without new provider calls.
func (s *Service) SubmitDocument(ctx context.Context, text string) (*core.ExtractionRecord, error) {
	record, err := s.orchestrator.Extract(ctx, core.NewDocument("", text))
	if err != nil {
		return nil, err
	}

	if len(record.Vector) == 0 {
		handle, err := s.batcher.Submit(ctx, record.SourceText)
		if err != nil {
			return nil, err
		}
		vector, skipped, err := handle.Wait(ctx)
		if err != nil {
			return nil, err
		}
		if !skipped {
			record.Vector = vector
			// Write the vector back so a resubmission served from the
			// durable cache tier skips the embedder as well.
			if err := s.cache.Put(ctx, record); err != nil {
				s.logger.Error("failed to cache embedding", "fingerprint", record.Fingerprint, "err", err)
			}
		}
	}

	return s.index.Insert(ctx, record)
}

// SearchSimilar returns up to k stored records most similar to the query.
func (s *Service) SearchSimilar(ctx context.Context, query string, k int) ([]*core.SimilarityMatch, error) {
	return s.index.FindSimilar(ctx, query, k)
}

// CostSummary aggregates provider spend recorded at or after since.
// A zero since covers everything.
func (s *Service) CostSummary(since time.Time) cost.Summary {
	return s.costs.Summarize(since)
}

// Records exposes the record repository.
func (s *Service) Records() storage.RecordRepository {
	return s.records
}

// Index exposes the search index.
func (s *Service) Index() *search.Index {
	return s.index
}

// NewReindexer builds a reindexer over this service's records, using the
// service's embedder.
func (s *Service) NewReindexer(config *reindex.Config, progress io.Writer) (*reindex.Reindexer, error) {
	return reindex.NewReindexer(s.records, s.provider.Embedder(), config, progress)
}

// Close flushes pending embeddings and releases all resources.
func (s *Service) Close() error {
	if err := s.batcher.Close(); err != nil {
		s.logger.Error("error closing batcher", "err", err)
	}
	s.orchestrator.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}

	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing extraction cache", "err", err)
	}
	if err := s.records.Close(); err != nil {
		s.logger.Error("error closing record repository", "err", err)
		return err
	}

	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
