package classify

import (
	"sort"

	"SessionLens/internal/domain/models"
	"SessionLens/pkg/util"
)

// Month-over-month trend and variability cut-offs, in points and percent.
const (
	trendSlope     = 10
	variabilityHi  = 30
	variabilityMid = 15
)

// MonthlyEvolution groups classified days by calendar month and describes how
// the mean daily range moved across months.
func MonthlyEvolution(days []models.DailyStats) models.MonthlyEvolution {
	groups := make(map[string][]models.DailyStats)
	var keys []string
	for _, d := range days {
		if len(d.Date) < 7 {
			continue
		}
		k := d.Date[:7]
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], d)
	}
	sort.Strings(keys)

	ev := models.MonthlyEvolution{Trend: models.TrendStable}
	if len(keys) == 0 {
		return ev
	}

	means := make([]float64, len(keys))
	for i, k := range keys {
		m := monthStats(k, groups[k])
		ev.Months = append(ev.Months, m)
		means[i] = m.MeanRange
	}
	for i := range ev.Months {
		rank := 1
		for _, other := range means {
			if other > means[i] {
				rank++
			}
		}
		ev.Months[i].Rank = rank
	}

	hi, lo := 0, 0
	for i, v := range means {
		if v > means[hi] {
			hi = i
		}
		if v < means[lo] {
			lo = i
		}
	}
	ev.MostVolatile = keys[hi]
	ev.MostLateral = keys[lo]

	if slope, ok := util.Slope(means); ok {
		ev.Slope = slope
		switch {
		case slope > trendSlope:
			ev.Trend = models.TrendRising
		case slope < -trendSlope:
			ev.Trend = models.TrendFalling
		}
	}

	if mean := util.Mean(means); mean != 0 {
		ev.CoefficientOfVar = util.SampleStd(means) / mean * 100
	}
	switch {
	case ev.CoefficientOfVar > variabilityHi:
		ev.Variability = "ALTA"
	case ev.CoefficientOfVar > variabilityMid:
		ev.Variability = "MODERADA"
	default:
		ev.Variability = "BAJA"
	}
	return ev
}

func monthStats(month string, days []models.DailyStats) models.MonthlyStats {
	ranges := make([]float64, len(days))
	vols := make([]float64, len(days))
	m := models.MonthlyStats{Month: month, Days: len(days)}
	for i, d := range days {
		ranges[i] = d.DailyRange
		vols[i] = d.Volatility
		if d.Classification == models.ClassStrong {
			m.StrongDays++
		}
		if d.IsOutlier {
			m.Outliers++
		}
	}
	m.MeanRange = util.Mean(ranges)
	m.StdRange = util.SampleStd(ranges)
	m.MinRange, m.MaxRange = util.MinMax(ranges)
	m.MeanVolatility = util.Mean(vols)
	m.StrongPct = util.Pct(m.StrongDays, m.Days)
	m.OutlierPct = util.Pct(m.Outliers, m.Days)
	return m
}
