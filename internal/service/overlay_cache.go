package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avesafe/taskpilot/internal/adapter/otel"
	"github.com/avesafe/taskpilot/internal/domain"
	"github.com/avesafe/taskpilot/internal/domain/overlay"
	"github.com/avesafe/taskpilot/internal/domain/session"
	"github.com/avesafe/taskpilot/internal/port/cache"
	"github.com/avesafe/taskpilot/internal/port/database"
)

// OverlayCache serves optimization records with a byte-cache in front of
// the database. The database is the source of truth; the cache is a hot
// path that may be evicted at any time.
type OverlayCache struct {
	store   database.Store
	cache   cache.Cache
	ttl     time.Duration
	metrics *otel.Metrics
}

// NewOverlayCache creates an OverlayCache over the given store and cache.
func NewOverlayCache(store database.Store, c cache.Cache, ttl time.Duration) *OverlayCache {
	return &OverlayCache{store: store, cache: c, ttl: ttl}
}

// SetMetrics attaches metric instruments. Optional.
func (o *OverlayCache) SetMetrics(m *otel.Metrics) {
	o.metrics = m
}

// cacheKey follows the original storage convention for overlay entries.
func cacheKey(key session.Key) string {
	return key.String() + "_optimized"
}

// Get returns the stored record for key, or domain.ErrNotFound when the
// session was never optimized. A corrupt record (cache or database copy)
// is discarded and reported as never-optimized; rendering continues.
func (o *OverlayCache) Get(ctx context.Context, key session.Key) (*overlay.Stored, error) {
	ck := cacheKey(key)

	if data, ok, err := o.cache.Get(ctx, ck); err == nil && ok {
		var stored overlay.Stored
		if err := json.Unmarshal(data, &stored); err == nil {
			o.countHit(ctx)
			return &stored, nil
		}
		// Corrupt cached copy: drop it and fall through to the store.
		slog.Warn("discarding corrupt cached optimization record", "session", key.String())
		_ = o.cache.Delete(ctx, ck)
	} else if err != nil {
		slog.Warn("overlay cache read failed", "session", key.String(), "error", err)
	}

	o.countMiss(ctx)

	stored, err := o.store.GetOptimization(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheCorrupt) {
			slog.Warn("discarding corrupt optimization record", "session", key.String())
			if delErr := o.store.DeleteOptimization(ctx, key); delErr != nil {
				slog.Error("failed to discard corrupt record", "session", key.String(), "error", delErr)
			}
			_ = o.cache.Delete(ctx, ck)
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if data, err := json.Marshal(stored); err == nil {
		if err := o.cache.Set(ctx, ck, data, o.ttl); err != nil {
			slog.Warn("overlay cache backfill failed", "session", key.String(), "error", err)
		}
	}

	return stored, nil
}

// Put atomically persists the record, then refreshes the cache. The cache
// write is best-effort; a failed refresh only costs a later database read.
func (o *OverlayCache) Put(ctx context.Context, key session.Key, stored *overlay.Stored) error {
	if err := o.store.PutOptimization(ctx, key, stored); err != nil {
		return fmt.Errorf("persist record: %w", err)
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil
	}
	if err := o.cache.Set(ctx, cacheKey(key), data, o.ttl); err != nil {
		slog.Warn("overlay cache write failed", "session", key.String(), "error", err)
	}
	return nil
}

// Invalidate removes the record for key from the store and the cache.
// Called on every task mutation and before an explicit re-optimize.
func (o *OverlayCache) Invalidate(ctx context.Context, key session.Key) error {
	if err := o.store.DeleteOptimization(ctx, key); err != nil {
		return err
	}
	if err := o.cache.Delete(ctx, cacheKey(key)); err != nil {
		slog.Warn("overlay cache delete failed", "session", key.String(), "error", err)
	}
	return nil
}

// EvictCached drops the cached copy for a session key string. Used when
// a peer instance announces a change it already persisted; a tiered cache
// only sheds its local layer since the peer maintains the shared one.
func (o *OverlayCache) EvictCached(ctx context.Context, sessionKey string) error {
	key := sessionKey + "_optimized"
	if ld, ok := o.cache.(interface {
		DropLocal(ctx context.Context, key string) error
	}); ok {
		return ld.DropLocal(ctx, key)
	}
	return o.cache.Delete(ctx, key)
}

func (o *OverlayCache) countHit(ctx context.Context) {
	if o.metrics != nil {
		o.metrics.OverlayCacheHits.Add(ctx, 1)
	}
}

func (o *OverlayCache) countMiss(ctx context.Context) {
	if o.metrics != nil {
		o.metrics.OverlayCacheMisses.Add(ctx, 1)
	}
}
