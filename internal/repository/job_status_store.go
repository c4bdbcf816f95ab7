package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SessionLens/internal/domain/models"
	drepo "SessionLens/internal/domain/repository"
	"SessionLens/pkg/cache"
)

// JobStatusStore keeps queued run states in a shared cache. It must be
// backed by a store every worker process sees, not a process-local layer.
type JobStatusStore struct {
	store cache.Store
	ttl   time.Duration
}

func NewJobStatusStore(store cache.Store, ttl time.Duration) *JobStatusStore {
	return &JobStatusStore{store: store, ttl: ttl}
}

func (s *JobStatusStore) Get(ctx context.Context, jobID string) (*models.JobStatus, error) {
	st, err := cache.GetJSON[*models.JobStatus](ctx, s.store, jobKey(jobID))
	if errors.Is(err, cache.ErrCacheMiss) || (err == nil && st == nil) {
		return nil, fmt.Errorf("job %s: %w", jobID, models.ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("job status get: %w", err)
	}
	return st, nil
}

func (s *JobStatusStore) Set(ctx context.Context, st *models.JobStatus) error {
	if err := cache.SetJSON(ctx, s.store, jobKey(st.ID), st, s.ttl); err != nil {
		return fmt.Errorf("job status set: %w", err)
	}
	return nil
}

func jobKey(id string) string { return "job:" + id }

var _ drepo.JobStatusStore = (*JobStatusStore)(nil)
