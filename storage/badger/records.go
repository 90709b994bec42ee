package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/maintel/core"
	"github.com/poiesic/maintel/storage"
)

// RecordRepository implements storage.RecordRepository for BadgerDB.
type RecordRepository struct {
	backend *Backend
}

var _ storage.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) *RecordRepository {
	return &RecordRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *RecordRepository) Close() error {
	return nil
}

// AddRecord stores an extraction record keyed by its fingerprint.
func (r *RecordRepository) AddRecord(ctx context.Context, record *core.ExtractionRecord) (*core.ExtractionRecord, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if record.InsertedAt.IsZero() {
			record.InsertedAt = time.Now().UTC()
		}

		key := makeRecordKey(record.Fingerprint)
		if err := tx.Set(key, storage.MarshalExtractionRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return record, err
}

// UpdateRecord updates an existing record in place.
func (r *RecordRepository) UpdateRecord(ctx context.Context, record *core.ExtractionRecord) (*core.ExtractionRecord, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(record.Fingerprint)

		old, err := r.readRecord(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		// Insertion time is immutable once set.
		record.InsertedAt = old.InsertedAt

		if err := tx.Set(key, storage.MarshalExtractionRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return record, err
}

// GetRecord retrieves a record by fingerprint.
func (r *RecordRepository) GetRecord(ctx context.Context, fp core.Fingerprint) (*core.ExtractionRecord, error) {
	var result *core.ExtractionRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readRecord(tx, makeRecordKey(fp))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// DeleteRecord removes a record by fingerprint.
func (r *RecordRepository) DeleteRecord(ctx context.Context, fp core.Fingerprint) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeRecordKey(fp)

		record, err := r.readRecord(tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListRecords retrieves all stored records ordered by InsertedAt ascending.
func (r *RecordRepository) ListRecords(ctx context.Context) ([]*core.ExtractionRecord, error) {
	var records []*core.ExtractionRecord

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.ExtractionRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalExtractionRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(records, func(a, b *core.ExtractionRecord) int {
		return a.InsertedAt.Compare(b.InsertedAt)
	})
	return records, nil
}

// FindSimilar scans all stored vectors and returns the closest matches.
// Vectors are stored unit-normalized, so dot product is cosine similarity.
func (r *RecordRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SimilarityMatch, error) {
	var results []*core.SimilarityMatch

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.ExtractionRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalExtractionRecord(val)
				return err
			})
			if err != nil {
				return err
			}

			// Skip records without embeddings
			if len(record.Vector) == 0 {
				continue
			}

			similarity := core.DotProduct(vector, record.Vector)
			if similarity >= minSimilarity {
				results = append(results, &core.SimilarityMatch{
					Record: record,
					Score:  similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending; ties break by most recent insertion.
	slices.SortFunc(results, func(a, b *core.SimilarityMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return b.Record.InsertedAt.Compare(a.Record.InsertedAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// readRecord reads and deserializes a record, returning nil if absent.
func (r *RecordRepository) readRecord(tx *badger.Txn, key []byte) (*core.ExtractionRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.ExtractionRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalExtractionRecord(val)
		return err
	})
	return record, err
}
