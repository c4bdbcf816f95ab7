package repository

import (
	"context"
	"errors"
	"time"

	"SessionLens/internal/domain/models"
)

// SnapshotStore persists enriched candle series so a run can be replayed
// without re-ingesting the source file.
type SnapshotStore interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, ds *models.Dataset) error
	Load(ctx context.Context, datasetID string) (*models.Dataset, error)
	List(ctx context.Context) ([]string, error)
	Health(ctx context.Context) error
	Close() error
}

// ErrNotCached is returned by ResultCache.Get when no result is stored under the key.
var ErrNotCached = errors.New("result not cached")

// ResultCache stores finished run results keyed by dataset and config fingerprint.
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.RunResult, error)
	Set(ctx context.Context, key string, res *models.RunResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ResultPublisher hands finished results to downstream collaborators.
type ResultPublisher interface {
	Publish(ctx context.Context, res *models.RunResult) error
	Close() error
}

// RunStore keeps finished results addressable by run id.
type RunStore interface {
	Put(res *models.RunResult)
	Get(runID string) (*models.RunResult, bool)
	List() []models.RunSummary
}

// JobStatusStore tracks queued runs across processes.
type JobStatusStore interface {
	Get(ctx context.Context, jobID string) (*models.JobStatus, error)
	Set(ctx context.Context, st *models.JobStatus) error
}

type Metrics interface {
	RecordStage(stage string, seconds float64)
	RecordCandles(n int)
	RecordValidationIssue(kind string, n int)
	RecordClassification(class string, days int)
	RecordRules(n int)
	RecordRun(outcome string)
	RecordError(kind string)
}
