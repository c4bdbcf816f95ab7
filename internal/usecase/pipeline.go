package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"SessionLens/internal/domain/models"
	drepo "SessionLens/internal/domain/repository"
	"SessionLens/internal/services/classify"
	"SessionLens/internal/services/ingest"
	"SessionLens/internal/services/rules"
	applogger "SessionLens/pkg/logger"

	"github.com/google/uuid"
)

// Pipeline runs ingestion and analysis end to end and keeps finished results.
type Pipeline struct {
	ingestor *ingest.Ingestor
	cls      *classify.Classifier
	eng      *rules.Engine
	runs     drepo.RunStore
	metrics  drepo.Metrics
	l        *applogger.Logger

	snapshots drepo.SnapshotStore
	cache     drepo.ResultCache
	cacheTTL  time.Duration
	publisher drepo.ResultPublisher
	configFP  string
	now       func() time.Time
	newID     func() string
}

type PipelineOption func(*Pipeline)

// WithSnapshots enables saving and reloading enriched datasets.
func WithSnapshots(s drepo.SnapshotStore) PipelineOption {
	return func(p *Pipeline) { p.snapshots = s }
}

// WithResultCache enables result reuse for identical dataset and settings.
func WithResultCache(c drepo.ResultCache, ttl time.Duration) PipelineOption {
	return func(p *Pipeline) { p.cache, p.cacheTTL = c, ttl }
}

func WithPublisher(pub drepo.ResultPublisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithConfigFingerprint scopes cached results to the analysis settings.
func WithConfigFingerprint(fp string) PipelineOption {
	return func(p *Pipeline) { p.configFP = fp }
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func WithIDGenerator(fn func() string) PipelineOption {
	return func(p *Pipeline) { p.newID = fn }
}

func NewPipeline(
	ingestor *ingest.Ingestor,
	cls *classify.Classifier,
	eng *rules.Engine,
	runs drepo.RunStore,
	metrics drepo.Metrics,
	l *applogger.Logger,
	opts ...PipelineOption,
) *Pipeline {
	if l == nil {
		l = applogger.Nop()
	}
	p := &Pipeline{
		ingestor: ingestor,
		cls:      cls,
		eng:      eng,
		runs:     runs,
		metrics:  metrics,
		l:        l,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunParams selects the input of a run. Exactly one of Path, Reader or
// DatasetID is used, in that order of preference.
type RunParams struct {
	Path      string
	Reader    io.Reader
	DatasetID string

	// Persist saves the enriched dataset to the snapshot store.
	Persist bool
}

// Run ingests (or reloads) a dataset and analyses it. Ingestion failures are
// returned as *models.RunError. Persistence, caching and publishing are
// best-effort and never fail a successful analysis.
func (p *Pipeline) Run(ctx context.Context, params RunParams) (*models.RunResult, error) {
	start := time.Now()
	ds, err := p.dataset(ctx, params)
	if err != nil {
		p.recordFailure(err)
		return nil, err
	}

	key := p.cacheKey(ds)
	if cached := p.cached(ctx, key); cached != nil {
		p.runs.Put(cached)
		p.record("cached")
		p.l.Info("run served from cache",
			applogger.String("run_id", cached.RunID),
			applogger.String("dataset", ds.ID),
		)
		return cached, nil
	}

	res := NewAnalysis(ds, p.cls, p.eng, p.metrics).Result(p.newID(), p.now())
	p.runs.Put(res)

	if params.Persist && params.DatasetID == "" {
		p.saveSnapshot(ctx, ds)
	}
	p.store(ctx, key, res)
	p.publish(ctx, res)

	p.record("ok")
	if p.metrics != nil {
		p.metrics.RecordStage("run", time.Since(start).Seconds())
	}
	p.l.Info("run finished",
		applogger.String("run_id", res.RunID),
		applogger.String("dataset", ds.ID),
		applogger.Int("days", len(res.Daily)),
		applogger.Int("rules", len(res.Rules)),
		applogger.Bool("low_confidence", res.LowConfidence),
		applogger.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (p *Pipeline) dataset(ctx context.Context, params RunParams) (*models.Dataset, error) {
	switch {
	case params.Path != "":
		rep, err := p.ingestor.Process(params.Path)
		p.recordValidation(rep)
		if err != nil {
			return nil, err
		}
		p.recordCandles(rep.Dataset)
		return rep.Dataset, nil
	case params.Reader != nil:
		id := params.DatasetID
		if id == "" {
			id = "upload"
		}
		rep, err := p.ingestor.ProcessReader(id, params.Reader)
		p.recordValidation(rep)
		if err != nil {
			return nil, err
		}
		p.recordCandles(rep.Dataset)
		return rep.Dataset, nil
	case params.DatasetID != "":
		if p.snapshots == nil {
			return nil, &models.RunError{Stage: "load", Errors: []string{"snapshot store disabled"}, Err: models.ErrRunNotFound}
		}
		ds, err := p.snapshots.Load(ctx, params.DatasetID)
		if err != nil {
			return nil, &models.RunError{Stage: "load", Errors: []string{err.Error()}, Err: fmt.Errorf("load snapshot %s: %w", params.DatasetID, err)}
		}
		return ds, nil
	default:
		return nil, &models.RunError{Stage: "load", Errors: []string{"no input given"}, Err: models.ErrEmptyDataset}
	}
}

func (p *Pipeline) cacheKey(ds *models.Dataset) string {
	return "result:" + ds.Fingerprint + ":" + p.configFP
}

func (p *Pipeline) cached(ctx context.Context, key string) *models.RunResult {
	if p.cache == nil {
		return nil
	}
	res, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, drepo.ErrNotCached) {
			p.l.Warn("result cache lookup failed", applogger.String("key", key), applogger.Error(err))
			p.recordError("cache_get")
		}
		return nil
	}
	return res
}

func (p *Pipeline) store(ctx context.Context, key string, res *models.RunResult) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, key, res, p.cacheTTL); err != nil {
		p.l.Warn("result cache write failed", applogger.String("key", key), applogger.Error(err))
		p.recordError("cache_set")
	}
}

func (p *Pipeline) saveSnapshot(ctx context.Context, ds *models.Dataset) {
	if p.snapshots == nil {
		return
	}
	if err := p.snapshots.Save(ctx, ds); err != nil {
		p.l.Warn("snapshot save failed", applogger.String("dataset", ds.ID), applogger.Error(err))
		p.recordError("snapshot_save")
	}
}

func (p *Pipeline) publish(ctx context.Context, res *models.RunResult) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, res); err != nil {
		p.l.Warn("result publish failed", applogger.String("run_id", res.RunID), applogger.Error(err))
		p.recordError("publish")
	}
}

// Get returns a finished run.
func (p *Pipeline) Get(runID string) (*models.RunResult, error) {
	res, ok := p.runs.Get(runID)
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, models.ErrRunNotFound)
	}
	return res, nil
}

func (p *Pipeline) List() []models.RunSummary { return p.runs.List() }

// Predict applies the patterns of a finished run to a given day.
func (p *Pipeline) Predict(runID string, date time.Time, asiaRange, europeRange float64) (models.ContextPrediction, error) {
	res, err := p.Get(runID)
	if err != nil {
		return models.ContextPrediction{}, err
	}
	return p.eng.PredictContext(res.Patterns, res.Daily, date, asiaRange, europeRange), nil
}

func (p *Pipeline) recordValidation(rep *ingest.Report) {
	if p.metrics == nil || rep == nil || rep.Validation == nil {
		return
	}
	for kind, n := range rep.Validation.Counts {
		p.metrics.RecordValidationIssue(string(kind), n)
	}
}

func (p *Pipeline) recordCandles(ds *models.Dataset) {
	if p.metrics != nil && ds != nil {
		p.metrics.RecordCandles(len(ds.Candles))
	}
}

func (p *Pipeline) recordFailure(err error) {
	var re *models.RunError
	if errors.As(err, &re) {
		p.l.Error("run failed",
			applogger.String("stage", re.Stage),
			applogger.Strings("errors", re.Errors),
			applogger.Strings("warnings", re.Warnings),
		)
		p.recordError(re.Stage)
	} else {
		p.l.Error("run failed", applogger.Error(err))
		p.recordError("run")
	}
	p.record("failed")
}

func (p *Pipeline) record(outcome string) {
	if p.metrics != nil {
		p.metrics.RecordRun(outcome)
	}
}

func (p *Pipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
