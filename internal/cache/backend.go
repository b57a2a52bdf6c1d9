package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Backend is a key-value store with per-entry TTL. The Cache selects between
// the remote and local variants at call time; callers never see which one
// served them.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// RedisBackend stores entries in a shared Redis instance.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBackend(rdb *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{rdb: rdb, prefix: prefix}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.rdb.Get(ctx, b.prefix+":"+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.rdb.Set(ctx, b.prefix+":"+key, value, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.rdb.Del(ctx, b.prefix+":"+key).Err()
}

// Clear removes every entry under this backend's prefix.
func (b *RedisBackend) Clear(ctx context.Context) error {
	iter := b.rdb.Scan(ctx, 0, b.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := b.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Ping reports whether the Redis connection is usable.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// LocalBackend is the bounded in-process fallback store. Entries carry their
// own expiry because the underlying LRU only supports a cache-wide TTL; that
// cache-wide TTL acts as an upper bound and garbage collector.
type LocalBackend struct {
	entries *lru.LRU[string, localEntry]
}

// NewLocalBackend creates a fallback store holding at most size entries, none
// older than maxTTL.
func NewLocalBackend(size int, maxTTL time.Duration) *LocalBackend {
	if size <= 0 {
		size = 1000
	}
	return &LocalBackend{
		entries: lru.NewLRU[string, localEntry](size, nil, maxTTL),
	}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := b.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		b.entries.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *LocalBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.entries.Add(key, localEntry{value: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

func (b *LocalBackend) Delete(_ context.Context, key string) error {
	b.entries.Remove(key)
	return nil
}

func (b *LocalBackend) Clear(_ context.Context) error {
	b.entries.Purge()
	return nil
}
