package cache

import (
	"context"
	"time"
)

// LayeredCache fronts a shared store (usually Redis) with a small in-process
// L1. Writes go through to both layers; L2 errors are returned.
type LayeredCache struct {
	l1    *MemoryCache
	l2    Store
	l1TTL time.Duration
}

// NewLayeredCache keeps up to l1Items entries in memory for at most l1TTL.
func NewLayeredCache(l2 Store, l1Items int, l1TTL time.Duration) *LayeredCache {
	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxItems(l1Items), WithMemoryDefaultTTL(l1TTL)),
		l2:    l2,
		l1TTL: l1TTL,
	}
}

func (lc *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if b, err := lc.l1.Get(ctx, key); err == nil {
		return b, nil
	}
	b, err := lc.l2.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = lc.l1.Set(ctx, key, b, lc.l1TTL)
	return b, nil
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := lc.l2.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	ttl := lc.l1TTL
	if expiration > 0 && (ttl <= 0 || expiration < ttl) {
		ttl = expiration
	}
	_ = lc.l1.Set(ctx, key, value, ttl)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := lc.l1.Exists(ctx, key); ok {
		return true, nil
	}
	return lc.l2.Exists(ctx, key)
}

// Close releases the L1 only. L2 is shared and closed by its owner.
func (lc *LayeredCache) Close() error {
	return lc.l1.Close()
}

var _ Store = (*LayeredCache)(nil)
