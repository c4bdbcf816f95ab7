package rules

import (
	"fmt"
	"testing"
	"time"

	"SessionLens/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-01 is a Monday.
var monday = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func classified(offset int, c models.Classification) models.DailyStats {
	t := monday.AddDate(0, 0, offset)
	return models.DailyStats{Date: t.Format(models.DateLayout), Weekday: t.Weekday(), Classification: c}
}

func sequence(cs ...models.Classification) []models.DailyStats {
	out := make([]models.DailyStats, len(cs))
	for i, c := range cs {
		out[i] = classified(i, c)
	}
	return out
}

const (
	F = models.ClassStrong
	I = models.ClassIntermediate
	L = models.ClassLateral
)

func TestMineDayOfWeek(t *testing.T) {
	days := []models.DailyStats{
		classified(0, F), classified(7, F), classified(14, L), classified(21, I),
		classified(1, L),
	}
	got := MineDayOfWeek(days)
	require.Len(t, got, 5)

	mon := got[0]
	assert.Equal(t, time.Monday, mon.Weekday)
	assert.Equal(t, 4, mon.Days)
	assert.Equal(t, 50.0, mon.ProbStrong)
	assert.Equal(t, 25.0, mon.ProbIntermediate)
	assert.Equal(t, 25.0, mon.ProbLateral)

	assert.Equal(t, 100.0, got[1].ProbLateral)
	assert.Equal(t, 0, got[2].Days)

	rules := FilterActionable(models.Patterns{Weekdays: got}, DefaultThresholds())
	require.Len(t, rules, 2)
	assert.Equal(t, models.ProbabilisticRule{
		Type:        models.RuleDayOfWeek,
		Condition:   "Es Lunes",
		Prediction:  "Día FUERTE probable",
		Probability: 50,
		SampleSize:  4,
		Confidence:  models.ConfidenceHigh,
		Tactic:      TacticStrongDay,
	}, rules[0])
	assert.Equal(t, "Día LATERAL probable", rules[1].Prediction)
	assert.Equal(t, TacticLateralDay, rules[1].Tactic)
}

func handoffSessions(n int, europe map[int]float64) []models.SessionStats {
	var out []models.SessionStats
	for i := 1; i <= n; i++ {
		date := monday.AddDate(0, 0, i).Format(models.DateLayout)
		out = append(out, models.SessionStats{Date: date, Session: models.SessionAsia, SessionRange: float64(i)})
		if v, ok := europe[i]; ok {
			out = append(out, models.SessionStats{Date: date, Session: models.SessionEurope, SessionRange: v})
		}
	}
	return out
}

func TestMineSessionHandoff(t *testing.T) {
	// ASIA 1..16: p75 = 12.25, conditioning subset is days 13..16
	sessions := handoffSessions(16, map[int]float64{1: 99, 13: 10, 14: 30, 15: 30, 16: 30})

	got, suppressed := MineSessionHandoff(sessions, 3)
	require.Len(t, got, 1)
	h := got[0]
	assert.Equal(t, KeyAsiaEurope, h.Key)
	assert.InDelta(t, 12.25, h.Threshold, 1e-9)
	assert.Equal(t, 4, h.SampleSize)
	assert.Equal(t, 75.0, h.Probability)
	assert.Equal(t, "Si ASIA mueve >P75", h.Condition)
	assert.Equal(t, "Europa también sea activa (75%)", h.Description)

	// EUROPE -> NY has no NY data at all and is skipped, not suppressed
	assert.Empty(t, suppressed)

	rules := FilterActionable(models.Patterns{Handoffs: got}, DefaultThresholds())
	require.Len(t, rules, 1)
	assert.Equal(t, models.ConfidenceHigh, rules[0].Confidence)
	assert.Equal(t, TacticActiveSession, rules[0].Tactic)
}

func TestMineSessionHandoffSuppressesSmallSubsets(t *testing.T) {
	// ASIA 1..12: p75 = 9.25, only three days qualify
	sessions := handoffSessions(12, map[int]float64{10: 1, 11: 2, 12: 3})
	got, suppressed := MineSessionHandoff(sessions, 3)
	assert.Empty(t, got)

	var keys []string
	for _, s := range suppressed {
		keys = append(keys, s.Pattern)
	}
	assert.Contains(t, keys, KeyAsiaEurope)
	assert.Equal(t, 3, suppressed[0].Have)
}

func TestMineStreaks(t *testing.T) {
	days := sequence(L, L, F, L, L, F, L, L, F, L, L, L)

	got, suppressed := MineStreaks(days, 3)
	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, KeyAfterLaterals, s.Key)
	assert.Equal(t, 4, s.SampleSize)
	assert.Equal(t, 75.0, s.Probability)
	assert.Equal(t, "Día fuerte (75%)", s.Description)
	assert.Equal(t, "Después de 2 días laterales consecutivos", s.Condition)

	require.Len(t, suppressed, 1)
	assert.Equal(t, models.InsufficientSampleError{Pattern: KeyAfterStrongs, Have: 0, Need: 3}, suppressed[0])

	rules := FilterActionable(models.Patterns{Streaks: got}, DefaultThresholds())
	require.Len(t, rules, 1)
	assert.Equal(t, TacticExpansion, rules[0].Tactic)
	assert.Equal(t, models.ConfidenceHigh, rules[0].Confidence)
}

func TestMineStreaksExactlyThreeSamplesSuppressed(t *testing.T) {
	days := sequence(F, F, L, F, F, L, F, F, L)
	got, suppressed := MineStreaks(days, 3)
	assert.Empty(t, got)
	assert.Contains(t, suppressed, models.InsufficientSampleError{Pattern: KeyAfterStrongs, Have: 3, Need: 3})
}

func TestFilterThresholds(t *testing.T) {
	p := models.Patterns{
		Handoffs: []models.HandoffPattern{{Key: "a", Probability: 59.9}, {Key: "b", Probability: 60}},
		Streaks: []models.StreakPattern{
			{Key: KeyAfterStrongs, Outcome: L, Probability: 50},
			{Key: KeyAfterLaterals, Outcome: F, Probability: 49.9},
		},
	}
	rules := FilterActionable(p, DefaultThresholds())
	require.Len(t, rules, 2)
	assert.Equal(t, models.RuleHandoff, rules[0].Type)
	assert.Equal(t, models.ConfidenceMedium, rules[0].Confidence)
	assert.Equal(t, TacticConsolidation, rules[1].Tactic)
	assert.Equal(t, models.ConfidenceMedium, rules[1].Confidence)
}

func TestPredictContext(t *testing.T) {
	e := NewEngine(DefaultThresholds(), nil)
	p := models.Patterns{
		Weekdays: []models.WeekdayPattern{
			{Weekday: time.Monday, Days: 4, ProbStrong: 25, ProbIntermediate: 25, ProbLateral: 50},
		},
		Handoffs: []models.HandoffPattern{
			{Key: KeyAsiaEurope, Threshold: 40, Probability: 72.5},
		},
		Streaks: []models.StreakPattern{
			{Key: KeyAfterLaterals, Description: "Día fuerte (60%)", Probability: 60},
		},
	}
	history := sequence(F, L, L)
	date := monday.AddDate(0, 0, 7)

	got := e.PredictContext(p, history, date, 45, 0)
	assert.Equal(t, "2024-01-08", got.Date)
	require.Len(t, got.Predictions, 3)

	assert.Equal(t, "Día LATERAL", got.Predictions[0].Prediction)
	assert.Equal(t, 50.0, got.Predictions[0].Probability)
	assert.Equal(t, models.ConfidenceHigh, got.Predictions[0].Confidence)

	assert.Equal(t, "Europa probablemente activa", got.Predictions[1].Prediction)
	assert.Equal(t, models.ConfidenceHigh, got.Predictions[1].Confidence)

	assert.Equal(t, "Día fuerte (60%)", got.Predictions[2].Prediction)
	assert.Equal(t, models.ConfidenceMedium, got.Predictions[2].Confidence)

	assert.Equal(t, []string{
		"Scalping o range trading",
		"Preparar estrategia para Europa volátil",
		"Anticipar posible expansión de volatilidad",
	}, got.Tactics)

	// below the ASIA threshold nothing is said about Europe
	quiet := e.PredictContext(p, history, date, 39, 0)
	for _, pr := range quiet.Predictions {
		assert.NotEqual(t, "Europa probablemente activa", pr.Prediction)
	}
}

func TestPredictContextTieGoesToStrong(t *testing.T) {
	e := NewEngine(DefaultThresholds(), nil)
	p := models.Patterns{Weekdays: []models.WeekdayPattern{
		{Weekday: time.Tuesday, Days: 3, ProbStrong: 33.3, ProbIntermediate: 33.3, ProbLateral: 33.3},
	}}
	got := e.PredictContext(p, nil, monday.AddDate(0, 0, 1), 0, 0)
	require.Len(t, got.Predictions, 1)
	assert.Equal(t, fmt.Sprintf("Día %s", F), got.Predictions[0].Prediction)
	assert.Equal(t, models.ConfidenceMedium, got.Predictions[0].Confidence)
}

func TestEngineMineCollectsSuppressed(t *testing.T) {
	e := NewEngine(DefaultThresholds(), nil)
	p, rules := e.Rules(sequence(F, L, I), nil)
	assert.Len(t, p.Weekdays, 5)
	assert.Len(t, p.Suppressed, 2) // both streak conditions; no sessions means no handoff candidates
	assert.NotEmpty(t, rules)
}
