package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	expireAt time.Time
	lastUsed time.Time
}

func (m *memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache is an in-process Store with TTL and LRU eviction.
type MemoryCache struct {
	mu         sync.Mutex
	data       map[string]*memoryItem
	maxItems   int
	defaultTTL time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := MemoryConfig{MaxItems: 256, CleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	mc := &MemoryCache{
		data:       make(map[string]*memoryItem),
		maxItems:   cfg.MaxItems,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go mc.sweep(cfg.CleanupInterval)
	}
	return mc
}

func (mc *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	item, ok := mc.data[key]
	if !ok || item.expired(now) {
		delete(mc.data, key)
		return nil, ErrCacheMiss
	}
	item.lastUsed = now
	return item.value, nil
}

// Set stores a copy of value. expiration <= 0 falls back to the default TTL,
// and to no expiry when that is zero too.
func (mc *MemoryCache) Set(_ context.Context, key string, value []byte, expiration time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	if expiration <= 0 {
		expiration = mc.defaultTTL
	}
	item := &memoryItem{value: append([]byte(nil), value...), lastUsed: now}
	if expiration > 0 {
		item.expireAt = now.Add(expiration)
	}
	if _, exists := mc.data[key]; !exists && mc.maxItems > 0 && len(mc.data) >= mc.maxItems {
		mc.evictLRU()
	}
	mc.data[key] = item
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		delete(mc.data, k)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	item, ok := mc.data[key]
	return ok && !item.expired(mc.now()), nil
}

func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.data)
}

// evictLRU expects mc.mu to be held.
func (mc *MemoryCache) evictLRU() {
	var (
		oldest string
		at     time.Time
		found  bool
	)
	for k, item := range mc.data {
		if !found || item.lastUsed.Before(at) {
			oldest, at, found = k, item.lastUsed, true
		}
	}
	if found {
		delete(mc.data, oldest)
	}
}

func (mc *MemoryCache) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case <-t.C:
			mc.mu.Lock()
			now := mc.now()
			for k, item := range mc.data {
				if item.expired(now) {
					delete(mc.data, k)
				}
			}
			mc.mu.Unlock()
		}
	}
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.stopOnce.Do(func() { close(mc.stop) })
	return nil
}

var _ Store = (*MemoryCache)(nil)
