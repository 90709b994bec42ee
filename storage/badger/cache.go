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


package badger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/maintel/core"
	"github.com/poiesic/maintel/storage"
)

// ExtractionCache implements storage.ExtractionCache on BadgerDB.
//
// Expiry is enforced twice: logically, by checking the record's ExpiresAt
// against the cache clock on every read, and physically, by setting a badger
// entry TTL so dead entries are eventually reclaimed without a sweep. The
// logical check is authoritative, which keeps expiry testable under a
// simulated clock.
type ExtractionCache struct {
	backend *Backend
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

var _ storage.ExtractionCache = (*ExtractionCache)(nil)

// CacheOption configures an ExtractionCache.
type CacheOption func(*ExtractionCache)

// WithClock sets the time source used for expiry checks.
// Default is time.Now. Intended for tests simulating time.
func WithClock(now func() time.Time) CacheOption {
	return func(c *ExtractionCache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewExtractionCache creates a cache storing entries for the given TTL.
func NewExtractionCache(backend *Backend, ttl time.Duration, opts ...CacheOption) (*ExtractionCache, error) {
	if ttl <= 0 {
		return nil, errors.New("extraction cache: ttl must be positive")
	}

	c := &ExtractionCache{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.Default().With("component", "extraction-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured time-to-live for entries.
func (c *ExtractionCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the live cached record for the fingerprint.
func (c *ExtractionCache) Get(ctx context.Context, fp core.Fingerprint) (*core.ExtractionRecord, error) {
	var record *core.ExtractionRecord

	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCacheKey(fp))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			record, err = storage.UnmarshalExtractionRecord(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}

	if record.Expired(c.now().UTC()) {
		c.logger.Debug("cache entry expired", "fingerprint", fp)
		return nil, storage.ErrNotFound
	}
	return record, nil
}

// Put inserts or atomically overwrites the entry for the record's fingerprint.
// The record's ExpiresAt is stamped from CreatedAt and the cache TTL.
func (c *ExtractionCache) Put(ctx context.Context, record *core.ExtractionRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = c.now().UTC()
	}
	record.ExpiresAt = record.CreatedAt.Add(c.ttl)

	return c.backend.WithTx(func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeCacheKey(record.Fingerprint), storage.MarshalExtractionRecord(record)).
			WithTTL(c.ttl)
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Invalidate removes the entry for the fingerprint. Idempotent.
func (c *ExtractionCache) Invalidate(ctx context.Context, fp core.Fingerprint) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCacheKey(fp)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Close is a no-op; the backend owns the database handle.
func (c *ExtractionCache) Close() error {
	return nil
}
