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


package reindex

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/maintel/ai"
	"github.com/poiesic/maintel/core"
	"github.com/poiesic/maintel/storage"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// Concurrency is how many batches may be in flight at once
	Concurrency int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		Concurrency:    2,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reindexer re-embeds every stored extraction record, typically after an
// embedding model change.
type Reindexer struct {
	repo      storage.RecordRepository
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *Iterator
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(repo storage.RecordRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reindexer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		repo:      repo,
		embedder:  embedder,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewIterator(repo, config.BatchSize),
	}, nil
}

// Run re-embeds all extraction records. Batches run concurrently up to the
// configured limit; the first batch failure cancels the rest.
func (r *Reindexer) Run(ctx context.Context) error {
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in database (0 records)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d records (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	err = r.iterator.ForEach(gctx, func(batch []*core.ExtractionRecord) error {
		g.Go(func() error {
			if err := r.processor.Process(gctx, batch); err != nil {
				return fmt.Errorf("failed to process batch: %w", err)
			}
			tracker.Increment(len(batch))
			return nil
		})
		return nil
	})
	if gErr := g.Wait(); err == nil {
		err = gErr
	}
	if err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d records in %v (%.1f records/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}
