package storage

import (
	"context"

	"github.com/poiesic/maintel/core"
)

// RecordRepository provides operations for managing extraction records and
// their embedding vectors. Implementations must be thread-safe and support
// concurrent access.
type RecordRepository interface {
	// AddRecord stores an extraction record keyed by its fingerprint,
	// replacing any existing record for the same fingerprint.
	// Sets InsertedAt if not already set.
	// Returns the record with timestamps populated.
	AddRecord(ctx context.Context, record *core.ExtractionRecord) (*core.ExtractionRecord, error)

	// UpdateRecord updates an existing record, typically to attach its
	// embedding vector after batch processing.
	// Returns ErrNotFound if the record doesn't exist.
	UpdateRecord(ctx context.Context, record *core.ExtractionRecord) (*core.ExtractionRecord, error)

	// GetRecord retrieves a record by fingerprint.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, fp core.Fingerprint) (*core.ExtractionRecord, error)

	// DeleteRecord removes a record by fingerprint.
	// Returns ErrNotFound if the record doesn't exist.
	DeleteRecord(ctx context.Context, fp core.Fingerprint) error

	// ListRecords retrieves all stored records ordered by InsertedAt ascending.
	ListRecords(ctx context.Context) ([]*core.ExtractionRecord, error)

	// FindSimilar finds records whose vectors are similar to the given vector.
	// Returns records with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first); ties break by
	// most recent InsertedAt first.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SimilarityMatch, error)

	// Close closes the repository and releases resources.
	Close() error
}

// ExtractionCache maps a document fingerprint to a previously computed
// extraction, with time-based expiry. Implementations must be thread-safe;
// Put has atomic replace semantics so a concurrent Get never observes a
// partial entry.
type ExtractionCache interface {
	// Get returns the live cached record for the fingerprint. The caller
	// owns the returned record; implementations never share one record
	// value between callers.
	// Returns ErrNotFound if no entry exists or the entry's TTL has elapsed;
	// expired data is never returned.
	Get(ctx context.Context, fp core.Fingerprint) (*core.ExtractionRecord, error)

	// Put inserts or overwrites the entry for the record's fingerprint.
	// Overwriting a live entry is allowed (re-extraction after manual
	// invalidation).
	Put(ctx context.Context, record *core.ExtractionRecord) error

	// Invalidate removes the entry for the fingerprint, if any. Idempotent.
	Invalidate(ctx context.Context, fp core.Fingerprint) error

	// Close closes the cache and releases resources.
	Close() error
}
