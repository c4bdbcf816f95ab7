package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"SessionLens/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineRunFromReader(t *testing.T) {
	metrics := newFakeMetrics()
	pub := &fakePublisher{}
	var cachedKey string
	cache := &fakeCache{SetFn: func(_ context.Context, key string, _ *models.RunResult, ttl time.Duration) error {
		cachedKey = key
		assert.Equal(t, time.Hour, ttl)
		return nil
	}}
	p, reg := newTestPipeline(metrics, WithPublisher(pub), WithResultCache(cache, time.Hour))

	res, err := p.Run(context.Background(), RunParams{Reader: strings.NewReader(syntheticFeed(25)), DatasetID: "mnq"})
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, "mnq", res.DatasetID)
	assert.Len(t, res.Daily, 25)
	assert.Equal(t, 25*288, res.CandleCount)
	assert.False(t, res.LowConfidence)
	assert.Len(t, res.Sessions, 25*3)
	assert.Len(t, res.Weekdays, 5)
	assert.NotEmpty(t, res.Shares)
	assert.Len(t, res.Dominant, 25)
	assert.NotEmpty(t, res.Monthly.Months)
	for _, d := range res.Daily {
		assert.NotEmpty(t, d.Classification)
	}

	got, ok := reg.Get("run-1")
	require.True(t, ok)
	assert.Same(t, res, got)

	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, "result:"+res.Fingerprint+":cfg", cachedKey)
	assert.Equal(t, 1, metrics.runs["ok"])
	assert.Equal(t, 25*288, metrics.candles)
	assert.Equal(t, 1, metrics.stages["aggregate_daily"])
	assert.Equal(t, 1, metrics.stages["classify"])
	total := 0
	for _, n := range metrics.classes {
		total += n
	}
	assert.Equal(t, 25, total)
}

func TestPipelineServesCachedResult(t *testing.T) {
	prior := &models.RunResult{RunID: "old-run", DatasetID: "mnq"}
	cache := &fakeCache{GetFn: func(_ context.Context, key string) (*models.RunResult, error) {
		assert.True(t, strings.HasSuffix(key, ":cfg"))
		return prior, nil
	}}
	pub := &fakePublisher{}
	metrics := newFakeMetrics()
	p, reg := newTestPipeline(metrics, WithResultCache(cache, time.Minute), WithPublisher(pub))

	res, err := p.Run(context.Background(), RunParams{Reader: strings.NewReader(syntheticFeed(3))})
	require.NoError(t, err)
	assert.Same(t, prior, res)
	assert.Zero(t, pub.calls)
	assert.Equal(t, 1, metrics.runs["cached"])
	assert.Zero(t, metrics.stages["classify"])

	_, ok := reg.Get("old-run")
	assert.True(t, ok)
}

func TestPipelineValidationFailure(t *testing.T) {
	metrics := newFakeMetrics()
	p, reg := newTestPipeline(metrics)

	bad := syntheticFeed(1) + "20240102 000000;17000;16990;17010;17000;5\n"
	_, err := p.Run(context.Background(), RunParams{Reader: strings.NewReader(bad)})

	var re *models.RunError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "validate", re.Stage)
	assert.Contains(t, re.Errors, "1 velas con High < Low")
	var ve *models.ValidationError
	assert.True(t, errors.As(err, &ve))

	assert.Equal(t, 1, metrics.runs["failed"])
	assert.Equal(t, 1, metrics.errors["validate"])
	assert.Equal(t, 1, metrics.issues[string(models.ViolationHighLow)])
	assert.Empty(t, reg.List())
}

func TestPipelineSideEffectsAreBestEffort(t *testing.T) {
	pub := &fakePublisher{PublishFn: func(context.Context, *models.RunResult) error { return errors.New("broker down") }}
	cache := &fakeCache{
		GetFn: func(context.Context, string) (*models.RunResult, error) { return nil, errors.New("redis down") },
		SetFn: func(context.Context, string, *models.RunResult, time.Duration) error { return errors.New("redis down") },
	}
	metrics := newFakeMetrics()
	p, _ := newTestPipeline(metrics, WithPublisher(pub), WithResultCache(cache, time.Minute))

	res, err := p.Run(context.Background(), RunParams{Reader: strings.NewReader(syntheticFeed(5))})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 1, metrics.errors["publish"])
	assert.Equal(t, 1, metrics.errors["cache_get"])
	assert.Equal(t, 1, metrics.errors["cache_set"])
	assert.Equal(t, 1, metrics.runs["ok"])
}

func TestPipelineSnapshotRoundTrip(t *testing.T) {
	snaps := newFakeSnapshots()
	p, _ := newTestPipeline(nil, WithSnapshots(snaps))
	ctx := context.Background()

	first, err := p.Run(ctx, RunParams{Path: writeFeed(t, "MNQ_JAN", syntheticFeed(6)), Persist: true})
	require.NoError(t, err)
	require.Contains(t, snaps.saved, "MNQ_JAN")

	second, err := p.Run(ctx, RunParams{DatasetID: "MNQ_JAN"})
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Daily, second.Daily)
	assert.Equal(t, first.Rules, second.Rules)
}

func TestPipelineUnknownDataset(t *testing.T) {
	p, _ := newTestPipeline(nil)
	_, err := p.Run(context.Background(), RunParams{DatasetID: "missing"})
	var re *models.RunError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "load", re.Stage)

	p, _ = newTestPipeline(nil, WithSnapshots(newFakeSnapshots()))
	_, err = p.Run(context.Background(), RunParams{DatasetID: "missing"})
	assert.ErrorIs(t, err, models.ErrRunNotFound)

	_, err = p.Run(context.Background(), RunParams{})
	assert.ErrorIs(t, err, models.ErrEmptyDataset)
}

func TestPipelinePredict(t *testing.T) {
	p, _ := newTestPipeline(nil)
	res, err := p.Run(context.Background(), RunParams{Reader: strings.NewReader(syntheticFeed(25))})
	require.NoError(t, err)

	cp, err := p.Predict(res.RunID, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, cp.Weekday)
	require.NotEmpty(t, cp.Predictions)
	assert.Equal(t, "Patrón histórico día de semana", cp.Predictions[0].Source)

	_, err = p.Predict("nope", time.Now(), 0, 0)
	assert.ErrorIs(t, err, models.ErrRunNotFound)
}

func TestAnalysisMemoizesStages(t *testing.T) {
	metrics := newFakeMetrics()
	p, _ := newTestPipeline(nil)
	rep, err := p.ingestor.ProcessReader("mnq", strings.NewReader(syntheticFeed(4)))
	require.NoError(t, err)

	a := NewAnalysis(rep.Dataset, p.cls, p.eng, metrics)
	// rules pull in every prior stage on demand
	_ = a.Rules()
	assert.Equal(t, 1, metrics.stages["aggregate_daily"])
	assert.Equal(t, 1, metrics.stages["classify"])

	d1 := a.Daily()
	d2 := a.Daily()
	assert.Same(t, &d1[0], &d2[0])
	_ = a.Classification()
	_ = a.Patterns()
	assert.Equal(t, 1, metrics.stages["classify"])
	assert.Equal(t, 1, metrics.stages["rules"])

	// classification works on a copy
	assert.Empty(t, a.Daily()[0].Classification)
	assert.NotEmpty(t, a.Classified()[0].Classification)
}

func TestAnalysisFlagsUSDaylightSaving(t *testing.T) {
	candle := func(date string, h float64) models.Candle {
		ts, err := time.Parse(models.DateLayout, date)
		require.NoError(t, err)
		ts = ts.Add(10 * time.Hour)
		return models.Candle{
			Timestamp: ts, Open: 100, High: h, Low: 90, Close: 95, Volume: 1,
			Date: date, Weekday: ts.Weekday(), Session: models.SessionEurope, Range: h - 90,
		}
	}
	ds := &models.Dataset{ID: "dst", Candles: []models.Candle{candle("2024-03-08", 110), candle("2024-03-11", 120)}}
	p, _ := newTestPipeline(nil)

	days := NewAnalysis(ds, p.cls, p.eng, nil).Result("r", time.Now()).Daily
	require.Len(t, days, 2)
	assert.False(t, days[0].USDST)
	assert.True(t, days[1].USDST)
}
