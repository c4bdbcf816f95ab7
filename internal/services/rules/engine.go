package rules

import (
	"fmt"
	"sort"
	"time"

	"SessionLens/internal/domain/models"
	applogger "SessionLens/pkg/logger"
)

// Threshold is the minimum probability for a rule to be actionable and the
// probability from which its confidence is ALTA.
type Threshold struct {
	Min  float64
	High float64
}

func (t Threshold) confidence(p float64) models.Confidence {
	if p >= t.High {
		return models.ConfidenceHigh
	}
	return models.ConfidenceMedium
}

// Thresholds configures mining and filtering.
type Thresholds struct {
	MinSample int
	DayOfWeek Threshold
	Handoff   Threshold
	Streak    Threshold
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSample: 3,
		DayOfWeek: Threshold{Min: 45, High: 50},
		Handoff:   Threshold{Min: 60, High: 70},
		Streak:    Threshold{Min: 50, High: 65},
	}
}

// Tactics attached to actionable rules.
const (
	TacticStrongDay     = "Dejar correr trades | Posiciones más grandes | Buscar breakouts"
	TacticLateralDay    = "Scalping | Range trading | Reducir exposición"
	TacticActiveSession = "Preparar estrategia para sesión activa"
	TacticExpansion     = "Anticipar expansión de volatilidad"
	TacticConsolidation = "Esperar consolidación | Reducir tamaño"
)

// Engine mines conditional frequencies and turns them into actionable rules.
type Engine struct {
	th Thresholds
	l  *applogger.Logger
}

func NewEngine(th Thresholds, l *applogger.Logger) *Engine {
	if l == nil {
		l = applogger.Nop()
	}
	return &Engine{th: th, l: l}
}

func (e *Engine) Thresholds() Thresholds { return e.th }

// Mine runs every miner. Conditions with too few cases are collected in
// Patterns.Suppressed and logged at debug level.
func (e *Engine) Mine(days []models.DailyStats, sessions []models.SessionStats) models.Patterns {
	p := models.Patterns{Weekdays: MineDayOfWeek(days)}

	var sup []models.InsufficientSampleError
	p.Handoffs, sup = MineSessionHandoff(sessions, e.th.MinSample)
	p.Suppressed = append(p.Suppressed, sup...)
	p.Streaks, sup = MineStreaks(days, e.th.MinSample)
	p.Suppressed = append(p.Suppressed, sup...)

	for _, s := range p.Suppressed {
		e.l.Debug("pattern suppressed",
			applogger.String("pattern", s.Pattern),
			applogger.Int("have", s.Have),
			applogger.Int("need_more_than", s.Need),
		)
	}
	return p
}

// Rules mines and filters in one step.
func (e *Engine) Rules(days []models.DailyStats, sessions []models.SessionStats) (models.Patterns, []models.ProbabilisticRule) {
	p := e.Mine(days, sessions)
	return p, FilterActionable(p, e.th)
}

// FilterActionable keeps the patterns whose probability clears the
// configured threshold. Weekday rules predict FUERTE when possible and fall
// back to LATERAL.
func FilterActionable(p models.Patterns, th Thresholds) []models.ProbabilisticRule {
	var out []models.ProbabilisticRule

	for _, w := range p.Weekdays {
		cond := "Es " + WeekdayName(w.Weekday)
		switch {
		case w.ProbStrong >= th.DayOfWeek.Min:
			out = append(out, models.ProbabilisticRule{
				Type:        models.RuleDayOfWeek,
				Condition:   cond,
				Prediction:  "Día FUERTE probable",
				Probability: w.ProbStrong,
				SampleSize:  w.Days,
				Confidence:  th.DayOfWeek.confidence(w.ProbStrong),
				Tactic:      TacticStrongDay,
			})
		case w.ProbLateral >= th.DayOfWeek.Min:
			out = append(out, models.ProbabilisticRule{
				Type:        models.RuleDayOfWeek,
				Condition:   cond,
				Prediction:  "Día LATERAL probable",
				Probability: w.ProbLateral,
				SampleSize:  w.Days,
				Confidence:  th.DayOfWeek.confidence(w.ProbLateral),
				Tactic:      TacticLateralDay,
			})
		}
	}

	for _, h := range p.Handoffs {
		if h.Probability < th.Handoff.Min {
			continue
		}
		out = append(out, models.ProbabilisticRule{
			Type:        models.RuleHandoff,
			Condition:   h.Condition,
			Prediction:  h.Description,
			Probability: h.Probability,
			SampleSize:  h.SampleSize,
			Confidence:  th.Handoff.confidence(h.Probability),
			Tactic:      TacticActiveSession,
		})
	}

	for _, s := range p.Streaks {
		if s.Probability < th.Streak.Min {
			continue
		}
		tactic := TacticConsolidation
		if s.Outcome == models.ClassStrong {
			tactic = TacticExpansion
		}
		out = append(out, models.ProbabilisticRule{
			Type:        models.RuleStreak,
			Condition:   s.Condition,
			Prediction:  s.Description,
			Probability: s.Probability,
			SampleSize:  s.SampleSize,
			Confidence:  th.Streak.confidence(s.Probability),
			Tactic:      tactic,
		})
	}
	return out
}

// PredictContext applies mined patterns to a specific day. asiaRange and
// europeRange are the ranges observed so far on that day; zero means unknown.
func (e *Engine) PredictContext(p models.Patterns, days []models.DailyStats, date time.Time, asiaRange, europeRange float64) models.ContextPrediction {
	cp := models.ContextPrediction{
		Date:    date.Format(models.DateLayout),
		Weekday: date.Weekday(),
	}

	for _, w := range p.Weekdays {
		if w.Weekday != date.Weekday() || w.Days == 0 {
			continue
		}
		class, prob := models.ClassStrong, w.ProbStrong
		if w.ProbIntermediate > prob {
			class, prob = models.ClassIntermediate, w.ProbIntermediate
		}
		if w.ProbLateral > prob {
			class, prob = models.ClassLateral, w.ProbLateral
		}
		cp.Predictions = append(cp.Predictions, models.Prediction{
			Source:      "Patrón histórico día de semana",
			Prediction:  fmt.Sprintf("Día %s", class),
			Probability: prob,
			Confidence:  e.th.DayOfWeek.confidence(prob),
		})
		switch class {
		case models.ClassStrong:
			cp.Tactics = append(cp.Tactics, "Dejar correr trades con trailing stops amplios")
		case models.ClassLateral:
			cp.Tactics = append(cp.Tactics, "Scalping o range trading")
		}
	}

	live := []struct {
		key     string
		value   float64
		source  string
		predict string
		tactic  string
	}{
		{KeyAsiaEurope, asiaRange, "Asia HOY fue fuerte", "Europa probablemente activa", "Preparar estrategia para Europa volátil"},
		{KeyEuropeNY, europeRange, "Europa HOY fue fuerte", "NY probablemente activa", "Preparar estrategia para NY volátil"},
	}
	for _, lv := range live {
		if lv.value <= 0 {
			continue
		}
		h, ok := findHandoff(p.Handoffs, lv.key)
		if !ok || lv.value < h.Threshold {
			continue
		}
		cp.Predictions = append(cp.Predictions, models.Prediction{
			Source:      lv.source,
			Prediction:  lv.predict,
			Probability: h.Probability,
			Confidence:  e.th.Handoff.confidence(h.Probability),
		})
		cp.Tactics = append(cp.Tactics, lv.tactic)
	}

	if last := lastTwo(days); len(last) == 2 && last[0] == last[1] {
		var key, source, tactic string
		switch last[0] {
		case models.ClassLateral:
			key, source, tactic = KeyAfterLaterals, "Racha: 2 días laterales consecutivos", "Anticipar posible expansión de volatilidad"
		case models.ClassStrong:
			key, source, tactic = KeyAfterStrongs, "Racha: 2 días fuertes consecutivos", "Esperar consolidación - reducir exposición"
		}
		if s, ok := findStreak(p.Streaks, key); ok {
			cp.Predictions = append(cp.Predictions, models.Prediction{
				Source:      source,
				Prediction:  s.Description,
				Probability: s.Probability,
				Confidence:  models.ConfidenceMedium,
			})
			cp.Tactics = append(cp.Tactics, tactic)
		}
	}
	return cp
}

func findHandoff(hs []models.HandoffPattern, key string) (models.HandoffPattern, bool) {
	for _, h := range hs {
		if h.Key == key {
			return h, true
		}
	}
	return models.HandoffPattern{}, false
}

func findStreak(ss []models.StreakPattern, key string) (models.StreakPattern, bool) {
	for _, s := range ss {
		if s.Key == key {
			return s, true
		}
	}
	return models.StreakPattern{}, false
}

func lastTwo(days []models.DailyStats) []models.Classification {
	ordered := make([]models.DailyStats, len(days))
	copy(ordered, days)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date < ordered[j].Date })
	if len(ordered) < 2 {
		return nil
	}
	tail := ordered[len(ordered)-2:]
	return []models.Classification{tail[0].Classification, tail[1].Classification}
}
