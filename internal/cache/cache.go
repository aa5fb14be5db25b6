// package cache implements a capacity-bounded TTL cache whose misses are filled by a lookup function.
//
// Concurrent misses for the same key share one in-flight lookup. Only successful lookups are stored;
// errors go back to every waiting caller and the next Get retries.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/deezify/internal/metrics"
	"github.com/desertthunder/deezify/internal/shared"
)

// Forever is used as the TTL for entries that are invalidated explicitly rather than by time.
const Forever = 100 * 365 * 24 * time.Hour

// LookupFunc computes the value for a missing or expired key.
//
// The context passed in is detached from the caller's cancellation: an abandoned request still
// populates the cache for the next caller.
type LookupFunc[V any] func(ctx context.Context, key string) (V, error)

// Options configures a [Cache].
type Options struct {
	Name     string        // Used for logs and metrics labels
	Capacity int64         // Maximum number of entries (approximate; eviction is LRU and asynchronous)
	TTL      time.Duration // Zero means [Forever]
	Logger   *log.Logger
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Coalesced int64 // Misses answered by a flight shared with other callers
	Lookups   int64
	Errors    int64
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	name   string
	ttl    time.Duration
	store  *ccache.Cache[V]
	group  singleflight.Group
	lookup LookupFunc[V]
	logger *log.Logger

	hits, misses, coalesced, lookups, errors atomic.Int64
}

// New creates a cache backed by [ccache] with lookups coalesced through [singleflight].
func New[V any](opts Options, lookup LookupFunc[V]) *Cache[V] {
	if opts.Capacity <= 0 {
		opts.Capacity = 1
	}
	if opts.TTL <= 0 {
		opts.TTL = Forever
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}
	if opts.Name == "" {
		opts.Name = "cache"
	}

	store := ccache.New(
		ccache.Configure[V]().
			MaxSize(opts.Capacity).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &Cache[V]{
		name:   opts.Name,
		ttl:    opts.TTL,
		store:  store,
		lookup: lookup,
		logger: shared.WithLogger(opts.Logger, "cache", opts.Name),
	}
}

// Get returns the cached value for key, running the lookup on a miss or expiry.
//
// If ctx is cancelled while waiting, Get returns ctx.Err() but the lookup keeps running.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, error) {
	if v, ok := c.GetIfPresent(key); ok {
		c.hits.Add(1)
		metrics.CacheRequests.WithLabelValues(c.name, "hit").Inc()
		return v, nil
	}

	c.misses.Add(1)
	metrics.CacheRequests.WithLabelValues(c.name, "miss").Inc()

	ch := c.group.DoChan(key, func() (any, error) {
		// A flight that finished between our miss and joining the group has already filled the slot.
		if v, ok := c.GetIfPresent(key); ok {
			return v, nil
		}
		return c.load(context.WithoutCancel(ctx), key)
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.coalesced.Add(1)
			metrics.CacheRequests.WithLabelValues(c.name, "coalesced").Inc()
		}
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

func (c *Cache[V]) load(ctx context.Context, key string) (any, error) {
	c.lookups.Add(1)
	started := time.Now()

	v, err := c.lookup(ctx, key)
	if err != nil {
		c.errors.Add(1)
		metrics.CacheLookups.WithLabelValues(c.name, "error").Inc()
		c.logger.Debug("lookup failed", "key", key, "kind", shared.Kind(err), "error", err)
		return nil, err
	}

	c.Set(key, v)
	metrics.CacheLookups.WithLabelValues(c.name, "success").Inc()
	c.logger.Debug("lookup stored", "key", key, "took", time.Since(started))
	return v, nil
}

// GetIfPresent returns the unexpired value for key without triggering a lookup.
func (c *Cache[V]) GetIfPresent(key string) (V, bool) {
	item := c.store.Get(key)
	if item == nil || item.Expired() {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

// Set stores v under key with the cache's TTL, replacing any previous entry.
func (c *Cache[V]) Set(key string, v V) {
	c.store.Set(key, v, c.ttl)
	metrics.CacheEntries.WithLabelValues(c.name).Set(float64(c.store.ItemCount()))
}

// Invalidate removes key. An in-flight lookup for key is not interrupted and will store its result.
func (c *Cache[V]) Invalidate(key string) bool {
	removed := c.store.Delete(key)
	metrics.CacheEntries.WithLabelValues(c.name).Set(float64(c.store.ItemCount()))
	return removed
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.store.Clear()
	metrics.CacheEntries.WithLabelValues(c.name).Set(0)
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *Cache[V]) Len() int {
	return c.store.ItemCount()
}

// Stats returns the cache counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Coalesced: c.coalesced.Load(),
		Lookups:   c.lookups.Load(),
		Errors:    c.errors.Load(),
	}
}

// Name returns the cache name.
func (c *Cache[V]) Name() string {
	return c.name
}

// Close stops the background eviction worker.
func (c *Cache[V]) Close() {
	stats := c.Stats()
	c.logger.Debug("closing",
		"hits", stats.Hits,
		"misses", stats.Misses,
		"coalesced", stats.Coalesced,
		"lookups", stats.Lookups,
		"errors", stats.Errors,
	)
	c.store.Stop()
}
