package analytics

import (
	"math"
	"sort"

	"SessionLens/internal/domain/models"
	"SessionLens/internal/services/aggregate"
	"SessionLens/pkg/util"
)

var sessionPairs = [][2]models.Session{
	{models.SessionAsia, models.SessionEurope},
	{models.SessionEurope, models.SessionNY},
	{models.SessionAsia, models.SessionNY},
}

// Correlate computes Pearson coefficients of session ranges between session
// pairs and against the daily range. Each pair uses only the dates where both
// sides exist. Pairs with fewer than two aligned dates or a constant side are
// omitted.
func Correlate(sessions []models.SessionStats, days []models.DailyStats) []models.Correlation {
	pivot := aggregate.Pivot(sessions)
	dates := make([]string, 0, len(pivot))
	for d := range pivot {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var out []models.Correlation
	for _, p := range sessionPairs {
		var xs, ys []float64
		for _, d := range dates {
			a, okA := pivot[d][p[0]]
			b, okB := pivot[d][p[1]]
			if okA && okB {
				xs = append(xs, a)
				ys = append(ys, b)
			}
		}
		if c, ok := correlation(models.PairKey(p[0], p[1]), xs, ys); ok {
			out = append(out, c)
		}
	}

	daily := aggregate.ByDate(days)
	for _, s := range models.Sessions {
		var xs, ys []float64
		for _, d := range dates {
			v, ok := pivot[d][s]
			if !ok {
				continue
			}
			day, ok := daily[d]
			if !ok {
				continue
			}
			xs = append(xs, v)
			ys = append(ys, day.DailyRange)
		}
		if c, ok := correlation(models.DailyKey(s), xs, ys); ok {
			out = append(out, c)
		}
	}
	return out
}

func correlation(key models.CorrelationKey, xs, ys []float64) (models.Correlation, bool) {
	r, ok := util.Pearson(xs, ys)
	if !ok || math.IsNaN(r) {
		return models.Correlation{}, false
	}
	r = util.Round(r, 3)
	return models.Correlation{
		Key:      key,
		R:        r,
		Samples:  len(xs),
		Strength: Strength(r),
		Sign:     Sign(r),
	}, true
}

// Strength buckets |r| into a verbal label.
func Strength(r float64) string {
	switch a := math.Abs(r); {
	case a > 0.7:
		return "strong"
	case a > 0.4:
		return "moderate"
	case a > 0.2:
		return "weak"
	default:
		return "none"
	}
}

func Sign(r float64) string {
	if r > 0 {
		return "positive"
	}
	return "negative"
}

func sortSessions(ss []models.SessionStats) {
	sort.SliceStable(ss, func(i, j int) bool {
		if ss[i].Date != ss[j].Date {
			return ss[i].Date < ss[j].Date
		}
		return ss[i].Session.Order() < ss[j].Session.Order()
	})
}
