package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/poiesic/maintel/core"
)

// lruCache is an in-memory tier in front of a durable ExtractionCache.
// Hits served from memory never touch the next tier; misses fall through
// and refill. Entries expire from the LRU on the same TTL as the durable
// tier, and the per-record ExpiresAt is still honored on every read.
type lruCache struct {
	next   ExtractionCache
	cache  *expirable.LRU[core.Fingerprint, *core.ExtractionRecord]
	now    func() time.Time
	logger *slog.Logger
}

// WrapLRUCache layers an expirable LRU of the given size in front of next.
// Returns next unchanged if size or ttl is non-positive.
func WrapLRUCache(next ExtractionCache, size int, ttl time.Duration) ExtractionCache {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruCache{
		next:   next,
		cache:  expirable.NewLRU[core.Fingerprint, *core.ExtractionRecord](size, nil, ttl),
		now:    time.Now,
		logger: slog.Default().With("component", "lru-cache"),
	}
}

// Get returns a clone of the cached record. The LRU entry itself is never
// handed out, so callers can mutate what they get back without racing
// other readers of the same fingerprint.
func (l *lruCache) Get(ctx context.Context, fp core.Fingerprint) (*core.ExtractionRecord, error) {
	if record, ok := l.cache.Get(fp); ok {
		if record.Expired(l.now().UTC()) {
			l.cache.Remove(fp)
		} else {
			l.logger.Debug("extraction cache hit (lru)", "fingerprint", fp)
			return record.Clone(), nil
		}
	}

	record, err := l.next.Get(ctx, fp)
	if err != nil {
		return nil, err
	}

	l.cache.Add(fp, record.Clone())
	return record, nil
}

func (l *lruCache) Put(ctx context.Context, record *core.ExtractionRecord) error {
	if err := l.next.Put(ctx, record); err != nil {
		return err
	}
	l.cache.Add(record.Fingerprint, record.Clone())
	return nil
}

func (l *lruCache) Invalidate(ctx context.Context, fp core.Fingerprint) error {
	l.cache.Remove(fp)
	return l.next.Invalidate(ctx, fp)
}

func (l *lruCache) Close() error {
	l.cache.Purge()
	return l.next.Close()
}

var _ ExtractionCache = (*lruCache)(nil)
