package rules

import (
	"fmt"
	"sort"
	"time"

	"SessionLens/internal/domain/models"
	"SessionLens/internal/services/aggregate"
	"SessionLens/pkg/util"
)

// Pattern keys.
const (
	KeyAsiaEurope    = "asia_fuerte_europa"
	KeyEuropeNY      = "europa_fuerte_ny"
	KeyAfterLaterals = "post_2_laterales"
	KeyAfterStrongs  = "post_2_fuertes"
)

var tradingDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Lunes",
	time.Tuesday:   "Martes",
	time.Wednesday: "Miércoles",
	time.Thursday:  "Jueves",
	time.Friday:    "Viernes",
	time.Saturday:  "Sábado",
	time.Sunday:    "Domingo",
}

// WeekdayName returns the label used in rule conditions.
func WeekdayName(d time.Weekday) string { return weekdayNames[d] }

// MineDayOfWeek builds the Mon-Fri by classification crosstab, normalized per
// weekday to percentages rounded to one decimal.
func MineDayOfWeek(days []models.DailyStats) []models.WeekdayPattern {
	counts := make(map[time.Weekday]map[models.Classification]int)
	totals := make(map[time.Weekday]int)
	for _, d := range days {
		if d.Classification == "" {
			continue
		}
		if counts[d.Weekday] == nil {
			counts[d.Weekday] = make(map[models.Classification]int)
		}
		counts[d.Weekday][d.Classification]++
		totals[d.Weekday]++
	}

	out := make([]models.WeekdayPattern, 0, len(tradingDays))
	for _, wd := range tradingDays {
		n := totals[wd]
		c := counts[wd]
		out = append(out, models.WeekdayPattern{
			Weekday:          wd,
			Days:             n,
			ProbStrong:       util.Round(util.Pct(c[models.ClassStrong], n), 1),
			ProbIntermediate: util.Round(util.Pct(c[models.ClassIntermediate], n), 1),
			ProbLateral:      util.Round(util.Pct(c[models.ClassLateral], n), 1),
		})
	}
	return out
}

var handoffs = []struct {
	key      string
	from, to models.Session
	target   string
}{
	{KeyAsiaEurope, models.SessionAsia, models.SessionEurope, "Europa"},
	{KeyEuropeNY, models.SessionEurope, models.SessionNY, "NY"},
}

// MineSessionHandoff estimates P(second session range >= its median | first
// session range >= its 75th percentile). The median of the second session is
// taken within the conditioning subset. Conditions with minSample or fewer
// cases are returned as suppressed.
func MineSessionHandoff(sessions []models.SessionStats, minSample int) ([]models.HandoffPattern, []models.InsufficientSampleError) {
	pivot := aggregate.Pivot(sessions)
	dates := make([]string, 0, len(pivot))
	for d := range pivot {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var (
		out        []models.HandoffPattern
		suppressed []models.InsufficientSampleError
	)
	for _, h := range handoffs {
		var firsts []float64
		hasTo := false
		for _, d := range dates {
			if v, ok := pivot[d][h.from]; ok {
				firsts = append(firsts, v)
			}
			if _, ok := pivot[d][h.to]; ok {
				hasTo = true
			}
		}
		if len(firsts) == 0 || !hasTo {
			continue
		}
		p75 := util.Percentile(firsts, 75)

		subset := 0
		var seconds []float64
		for _, d := range dates {
			v, ok := pivot[d][h.from]
			if !ok || v < p75 {
				continue
			}
			subset++
			if s, ok := pivot[d][h.to]; ok {
				seconds = append(seconds, s)
			}
		}
		if subset <= minSample {
			suppressed = append(suppressed, models.InsufficientSampleError{Pattern: h.key, Have: subset, Need: minSample})
			continue
		}

		active := 0
		if len(seconds) > 0 {
			median := util.Median(seconds)
			for _, s := range seconds {
				if s >= median {
					active++
				}
			}
		}
		prob := float64(active) / float64(subset) * 100
		out = append(out, models.HandoffPattern{
			Key:         h.key,
			From:        h.from,
			To:          h.to,
			Condition:   fmt.Sprintf("Si %s mueve >P75", h.from),
			Description: fmt.Sprintf("%s también sea activa (%.0f%%)", h.target, prob),
			Threshold:   p75,
			Probability: util.Round(prob, 1),
			SampleSize:  subset,
		})
	}
	return out, suppressed
}

var streakRules = []struct {
	key         string
	prior       models.Classification
	outcome     models.Classification
	condition   string
	description string
}{
	{KeyAfterLaterals, models.ClassLateral, models.ClassStrong, "Después de 2 días laterales consecutivos", "Día fuerte (%.0f%%)"},
	{KeyAfterStrongs, models.ClassStrong, models.ClassLateral, "Después de 2 días fuertes consecutivos", "Día lateral (consolidación) (%.0f%%)"},
}

// MineStreaks estimates how often two equally classified days are followed
// by the opposite extreme. Days are taken in date order.
func MineStreaks(days []models.DailyStats, minSample int) ([]models.StreakPattern, []models.InsufficientSampleError) {
	ordered := make([]models.DailyStats, 0, len(days))
	for _, d := range days {
		if d.Classification != "" {
			ordered = append(ordered, d)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date < ordered[j].Date })

	var (
		out        []models.StreakPattern
		suppressed []models.InsufficientSampleError
	)
	for _, r := range streakRules {
		n, hits := 0, 0
		for i := 2; i < len(ordered); i++ {
			if ordered[i-1].Classification != r.prior || ordered[i-2].Classification != r.prior {
				continue
			}
			n++
			if ordered[i].Classification == r.outcome {
				hits++
			}
		}
		if n <= minSample {
			suppressed = append(suppressed, models.InsufficientSampleError{Pattern: r.key, Have: n, Need: minSample})
			continue
		}
		prob := float64(hits) / float64(n) * 100
		out = append(out, models.StreakPattern{
			Key:         r.key,
			Prior:       r.prior,
			Outcome:     r.outcome,
			Condition:   r.condition,
			Description: fmt.Sprintf(r.description, prob),
			Probability: util.Round(prob, 1),
			SampleSize:  n,
		})
	}
	return out, suppressed
}
