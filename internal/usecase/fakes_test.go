package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"SessionLens/internal/domain/models"
	drepo "SessionLens/internal/domain/repository"
	"SessionLens/internal/services/classify"
	"SessionLens/internal/services/ingest"
	"SessionLens/internal/services/rules"
	"SessionLens/internal/services/session"
	"SessionLens/internal/services/timezone"
)

type fakeCache struct {
	GetFn func(ctx context.Context, key string) (*models.RunResult, error)
	SetFn func(ctx context.Context, key string, res *models.RunResult, ttl time.Duration) error
}

func (f *fakeCache) Get(ctx context.Context, key string) (*models.RunResult, error) {
	if f.GetFn == nil {
		return nil, drepo.ErrNotCached
	}
	return f.GetFn(ctx, key)
}

func (f *fakeCache) Set(ctx context.Context, key string, res *models.RunResult, ttl time.Duration) error {
	if f.SetFn == nil {
		return nil
	}
	return f.SetFn(ctx, key, res, ttl)
}

func (f *fakeCache) Delete(context.Context, string) error { return nil }

type fakePublisher struct {
	PublishFn func(ctx context.Context, res *models.RunResult) error
	calls     int
}

func (f *fakePublisher) Publish(ctx context.Context, res *models.RunResult) error {
	f.calls++
	if f.PublishFn == nil {
		return nil
	}
	return f.PublishFn(ctx, res)
}

func (f *fakePublisher) Close() error { return nil }

type fakeSnapshots struct {
	saved map[string]*models.Dataset
}

func newFakeSnapshots() *fakeSnapshots { return &fakeSnapshots{saved: map[string]*models.Dataset{}} }

func (f *fakeSnapshots) Init(context.Context) error { return nil }

func (f *fakeSnapshots) Save(_ context.Context, ds *models.Dataset) error {
	f.saved[ds.ID] = ds
	return nil
}

func (f *fakeSnapshots) Load(_ context.Context, id string) (*models.Dataset, error) {
	ds, ok := f.saved[id]
	if !ok {
		return nil, fmt.Errorf("dataset %s: %w", id, models.ErrRunNotFound)
	}
	return ds, nil
}

func (f *fakeSnapshots) List(context.Context) ([]string, error) {
	var out []string
	for id := range f.saved {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeSnapshots) Health(context.Context) error { return nil }

func (f *fakeSnapshots) Close() error { return nil }

type fakeMetrics struct {
	runs    map[string]int
	stages  map[string]int
	classes map[string]int
	candles int
	rules   int
	errors  map[string]int
	issues  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		runs:    map[string]int{},
		stages:  map[string]int{},
		classes: map[string]int{},
		errors:  map[string]int{},
		issues:  map[string]int{},
	}
}

func (m *fakeMetrics) RecordStage(stage string, _ float64) { m.stages[stage]++ }

func (m *fakeMetrics) RecordCandles(n int) { m.candles += n }

func (m *fakeMetrics) RecordValidationIssue(kind string, n int) { m.issues[kind] += n }

func (m *fakeMetrics) RecordClassification(class string, days int) { m.classes[class] = days }

func (m *fakeMetrics) RecordRules(n int) { m.rules = n }

func (m *fakeMetrics) RecordRun(outcome string) { m.runs[outcome]++ }

func (m *fakeMetrics) RecordError(kind string) { m.errors[kind]++ }

var (
	_ drepo.ResultCache     = (*fakeCache)(nil)
	_ drepo.ResultPublisher = (*fakePublisher)(nil)
	_ drepo.SnapshotStore   = (*fakeSnapshots)(nil)
	_ drepo.Metrics         = (*fakeMetrics)(nil)
)

// syntheticFeed renders n weekdays of 5-minute candles starting on
// Monday 2024-01-01. The per-candle half range cycles with the day index so
// days differ in volatility.
func syntheticFeed(n int) string {
	var b strings.Builder
	day := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for written := 0; written < n; day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		half := float64(1 + written%7)
		base := 17000 + float64(written)*10
		for m := 0; m < 24*60; m += 5 {
			ts := day.Add(time.Duration(m) * time.Minute)
			fmt.Fprintf(&b, "%s;%.2f;%.2f;%.2f;%.2f;%d\n",
				ts.Format("20060102 150405"), base, base+half, base-half, base, 10+m%7)
		}
		written++
	}
	return b.String()
}

func writeFeed(t *testing.T, name, feed string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".txt")
	if err := os.WriteFile(path, []byte(feed), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(metrics drepo.Metrics, opts ...PipelineOption) (*Pipeline, *RunRegistry) {
	cls, err := session.NewClassifier(session.DefaultWindows())
	if err != nil {
		panic(err)
	}
	norm := timezone.NewNormalizer("America/New_York", "America/New_York", nil)
	ing := ingest.NewIngestor(ingest.NewLoader(nil), ingest.NewValidator(ingest.DefaultBounds()), ingest.NewEnricher(norm, cls), nil)
	reg := NewRunRegistry(0)
	ids := 0
	base := []PipelineOption{
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { ids++; return fmt.Sprintf("run-%d", ids) }),
		WithConfigFingerprint("cfg"),
	}
	p := NewPipeline(ing, classify.New(nil), rules.NewEngine(rules.DefaultThresholds(), nil), reg, metrics, nil, append(base, opts...)...)
	return p, reg
}
