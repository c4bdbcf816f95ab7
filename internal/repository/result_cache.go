package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SessionLens/internal/domain/models"
	drepo "SessionLens/internal/domain/repository"
	"SessionLens/pkg/cache"
	applogger "SessionLens/pkg/logger"
)

// ResultCache stores finished runs as JSON in any cache.Store.
type ResultCache struct {
	store cache.Store
	l     *applogger.Logger
}

func NewResultCache(store cache.Store, l *applogger.Logger) *ResultCache {
	if l == nil {
		l = applogger.Nop()
	}
	return &ResultCache{store: store, l: l}
}

// Get maps a miss to drepo.ErrNotCached. An entry that no longer decodes is
// dropped and reported as a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (*models.RunResult, error) {
	res, err := cache.GetJSON[*models.RunResult](ctx, c.store, key)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
		return nil, drepo.ErrNotCached
	case isDecodeErr(err):
		c.l.Warn("dropping corrupted cached result", applogger.String("key", key), applogger.Error(err))
		_ = c.store.Delete(ctx, key)
		return nil, drepo.ErrNotCached
	case err != nil:
		return nil, fmt.Errorf("result cache get: %w", err)
	case res == nil:
		return nil, drepo.ErrNotCached
	}
	return res, nil
}

func (c *ResultCache) Set(ctx context.Context, key string, res *models.RunResult, ttl time.Duration) error {
	if err := cache.SetJSON(ctx, c.store, key, res, ttl); err != nil {
		return fmt.Errorf("result cache set: %w", err)
	}
	return nil
}

func (c *ResultCache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

func isDecodeErr(err error) bool {
	var de *cache.DecodeError
	return errors.As(err, &de)
}

var _ drepo.ResultCache = (*ResultCache)(nil)
