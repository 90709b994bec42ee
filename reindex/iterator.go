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

	"github.com/poiesic/maintel/core"
	"github.com/poiesic/maintel/storage"
)

const (
	// DefaultBatchSize is the default number of records per batch
	DefaultBatchSize = 100
)

// Iterator walks all extraction records in batches.
type Iterator struct {
	repo      storage.RecordRepository
	batchSize int
}

// NewIterator creates a new record iterator.
// batchSize: number of records in each batch (must be > 0)
func NewIterator(repo storage.RecordRepository, batchSize int) *Iterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Iterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach iterates over all extraction records, calling fn for each batch.
// Iteration stops on first error from fn or when all records are processed.
// Context cancellation is checked between batches.
func (it *Iterator) ForEach(ctx context.Context, fn func([]*core.ExtractionRecord) error) error {
	// Check context before starting
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	records, err := it.repo.ListRecords(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < len(records); i += it.batchSize {
		end := i + it.batchSize
		if end > len(records) {
			end = len(records)
		}

		if err := fn(records[i:end]); err != nil {
			return err
		}

		// Check context after each batch
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}

// Count returns the number of stored extraction records.
func (it *Iterator) Count(ctx context.Context) (int, error) {
	records, err := it.repo.ListRecords(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
