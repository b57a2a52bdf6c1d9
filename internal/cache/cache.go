package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is the fingerprint-keyed response cache. It prefers the shared Redis
// backend and transparently falls back to a bounded in-process store when
// Redis is unreachable; the fallback is an accepted consistency relaxation,
// not a failure. Concurrent computations for the same key are deduplicated
// with singleflight semantics.
type Cache struct {
	remote     *RedisBackend // nil when Redis is not configured
	local      *LocalBackend
	probeEvery time.Duration
	logger     *slog.Logger

	group singleflight.Group

	mu        sync.Mutex
	unhealthy bool
	lastProbe time.Time
}

// New creates a cache. rdb may be nil, in which case only the local backend
// is used.
func New(remote *RedisBackend, local *LocalBackend, probeEvery time.Duration, logger *slog.Logger) *Cache {
	if probeEvery <= 0 {
		probeEvery = 30 * time.Second
	}
	return &Cache{
		remote:     remote,
		local:      local,
		probeEvery: probeEvery,
		logger:     logger,
	}
}

// backend picks the store for this call. A failed Redis is retried at most
// once per probe interval; between probes all traffic goes local.
func (c *Cache) backend(ctx context.Context) Backend {
	if c.remote == nil {
		return c.local
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.unhealthy {
		return c.remote
	}
	if time.Since(c.lastProbe) < c.probeEvery {
		return c.local
	}
	c.lastProbe = time.Now()
	if err := c.remote.Ping(ctx); err != nil {
		return c.local
	}
	c.unhealthy = false
	c.logger.Info("cache backend recovered", "backend", c.remote.Name())
	return c.remote
}

func (c *Cache) markUnhealthy(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.unhealthy {
		c.logger.Warn("cache backend unavailable, falling back to local store", "error", err)
	}
	c.unhealthy = true
	c.lastProbe = time.Now()
}

// Get returns the entry for key, if present and unexpired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	b := c.backend(ctx)
	data, ok, err := b.Get(ctx, key)
	if err != nil {
		if _, remote := b.(*RedisBackend); remote {
			c.markUnhealthy(err)
			data, ok, _ = c.local.Get(ctx, key)
			return data, ok
		}
		return nil, false
	}
	return data, ok
}

// Set stores an entry under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	b := c.backend(ctx)
	if err := b.Set(ctx, key, value, ttl); err != nil {
		if _, remote := b.(*RedisBackend); remote {
			c.markUnhealthy(err)
			c.local.Set(ctx, key, value, ttl)
		}
	}
}

type flightResult struct {
	value []byte
}

// GetOrCompute returns the cached value for key, or invokes compute exactly
// once and stores its result with the given TTL. Callers that arrive while a
// computation is in flight attach to it and share its outcome, including a
// shared error. A waiter's context cancels only that waiter; the computation
// itself runs on a detached context so the remaining waiters still get a
// result.
//
// The returned bool reports whether the value was served from the cache.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.Get(ctx, key); ok {
		return data, true, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		bctx := context.WithoutCancel(ctx)
		// Re-check under the flight: a concurrent computation may have
		// stored the value between our miss and this call.
		if data, ok := c.Get(bctx, key); ok {
			return flightResult{value: data}, nil
		}
		value, err := compute(bctx)
		if err != nil {
			return nil, err
		}
		c.Set(bctx, key, value, ttl)
		return flightResult{value: value}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(flightResult).value, false, nil
	}
}

// Clear drops every entry from both backends. Administrative use only; the
// request path never calls it.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.local.Clear(ctx); err != nil {
		return err
	}
	if c.remote != nil {
		if err := c.remote.Clear(ctx); err != nil {
			c.markUnhealthy(err)
			return err
		}
	}
	return nil
}
