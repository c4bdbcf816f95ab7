package usecase

import (
	"time"

	"SessionLens/internal/domain/models"
	drepo "SessionLens/internal/domain/repository"
	"SessionLens/internal/services/aggregate"
	"SessionLens/internal/services/analytics"
	"SessionLens/internal/services/classify"
	"SessionLens/internal/services/rules"
	"SessionLens/internal/services/timezone"
)

// Analysis owns one enriched dataset and computes every derived stage on
// first use, reusing the result afterwards. It is not safe for concurrent use.
type Analysis struct {
	ds      *models.Dataset
	cls     *classify.Classifier
	eng     *rules.Engine
	metrics drepo.Metrics

	daily        []models.DailyStats
	sessions     []models.SessionStats
	classified   *classify.Result
	correlations []models.Correlation
	shares       []models.SessionShare
	dominant     []models.DominantSession
	patterns     *models.Patterns
	rules        []models.ProbabilisticRule
}

func NewAnalysis(ds *models.Dataset, cls *classify.Classifier, eng *rules.Engine, metrics drepo.Metrics) *Analysis {
	return &Analysis{ds: ds, cls: cls, eng: eng, metrics: metrics}
}

func (a *Analysis) Dataset() *models.Dataset { return a.ds }

func (a *Analysis) timed(stage string, fn func()) {
	start := time.Now()
	fn()
	if a.metrics != nil {
		a.metrics.RecordStage(stage, time.Since(start).Seconds())
	}
}

// Daily returns unclassified daily aggregates.
func (a *Analysis) Daily() []models.DailyStats {
	if a.daily == nil {
		a.timed("aggregate_daily", func() {
			a.daily = aggregate.AggregateDaily(a.ds.Candles)
			timezone.MarkUSDST(a.daily)
		})
	}
	return a.daily
}

func (a *Analysis) Sessions() []models.SessionStats {
	if a.sessions == nil {
		a.timed("aggregate_sessions", func() { a.sessions = aggregate.AggregateBySession(a.ds.Candles) })
	}
	return a.sessions
}

// Classification labels the daily aggregates.
func (a *Analysis) Classification() classify.Result {
	if a.classified == nil {
		days := a.Daily()
		a.timed("classify", func() {
			res := a.cls.Run(days)
			a.classified = &res
		})
		if a.metrics != nil {
			counts := make(map[models.Classification]int, len(models.Classifications))
			for _, d := range a.classified.Days {
				counts[d.Classification]++
			}
			for _, c := range models.Classifications {
				a.metrics.RecordClassification(string(c), counts[c])
			}
		}
	}
	return *a.classified
}

func (a *Analysis) Classified() []models.DailyStats { return a.Classification().Days }

func (a *Analysis) Percentiles() models.Percentiles { return a.Classification().Percentiles }

func (a *Analysis) Correlations() []models.Correlation {
	if a.correlations == nil {
		sessions, days := a.Sessions(), a.Daily()
		a.timed("correlate", func() {
			a.correlations = analytics.Correlate(sessions, days)
			if a.correlations == nil {
				a.correlations = []models.Correlation{}
			}
		})
	}
	return a.correlations
}

func (a *Analysis) Shares() []models.SessionShare {
	if a.shares == nil {
		a.shares = analytics.SessionShare(a.Sessions(), a.Daily())
	}
	return a.shares
}

func (a *Analysis) Dominant() []models.DominantSession {
	if a.dominant == nil {
		a.dominant = analytics.DominantSessions(a.Sessions())
	}
	return a.dominant
}

func (a *Analysis) Patterns() models.Patterns {
	if a.patterns == nil {
		days, sessions := a.Classified(), a.Sessions()
		a.timed("rules", func() {
			p, rs := a.eng.Rules(days, sessions)
			a.patterns, a.rules = &p, rs
		})
		if a.metrics != nil {
			a.metrics.RecordRules(len(a.rules))
		}
	}
	return *a.patterns
}

func (a *Analysis) Rules() []models.ProbabilisticRule {
	a.Patterns()
	return a.rules
}

// Result assembles the full read-only bundle.
func (a *Analysis) Result(runID string, now time.Time) *models.RunResult {
	cr := a.Classification()
	days := cr.Days
	sessions := a.Sessions()
	return &models.RunResult{
		RunID:         runID,
		DatasetID:     a.ds.ID,
		Source:        a.ds.Source,
		Fingerprint:   a.ds.Fingerprint,
		CreatedAt:     now,
		CandleCount:   len(a.ds.Candles),
		LowConfidence: cr.LowConfidence,
		Daily:         days,
		Sessions:      sessions,
		Percentiles:   cr.Percentiles,
		Streaks:       cr.Streaks,
		Weekdays:      classify.WeekdayBreakdown(days),
		Shares:        a.Shares(),
		Dominant:      a.Dominant(),
		DominantFreq:  analytics.DominantFrequency(a.Dominant()),
		Correlations:  a.Correlations(),
		ByDayType:     analytics.SessionsByDayType(sessions, days),
		Gaps:          analytics.OpeningGaps(sessions),
		Monthly:       classify.MonthlyEvolution(days),
		Patterns:      a.Patterns(),
		Rules:         a.Rules(),
		Warnings:      append([]string(nil), a.ds.Warnings...),
	}
}
