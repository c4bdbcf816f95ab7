package analytics

import (
	"SessionLens/internal/domain/models"
	"SessionLens/internal/services/aggregate"
	"SessionLens/pkg/util"
)

// SessionShare describes, per session, its range and how much of the day's
// range it accounts for. Sessions on dates without daily stats are skipped,
// as are shares of days with a zero range.
func SessionShare(sessions []models.SessionStats, days []models.DailyStats) []models.SessionShare {
	daily := aggregate.ByDate(days)

	type acc struct {
		ranges, pcts, volumes, candles []float64
	}
	accs := make(map[models.Session]*acc, len(models.Sessions))
	for _, s := range sessions {
		d, ok := daily[s.Date]
		if !ok {
			continue
		}
		a := accs[s.Session]
		if a == nil {
			a = &acc{}
			accs[s.Session] = a
		}
		a.ranges = append(a.ranges, s.SessionRange)
		a.volumes = append(a.volumes, float64(s.Volume))
		a.candles = append(a.candles, float64(s.Candles))
		if d.DailyRange > 0 {
			a.pcts = append(a.pcts, s.SessionRange/d.DailyRange*100)
		}
	}

	var out []models.SessionShare
	for _, name := range models.Sessions {
		a, ok := accs[name]
		if !ok {
			continue
		}
		lo, hi := util.MinMax(a.ranges)
		sh := models.SessionShare{
			Session:         name,
			Days:            len(a.ranges),
			MeanRange:       round2(util.Mean(a.ranges)),
			StdRange:        round2(util.SampleStd(a.ranges)),
			MinRange:        round2(lo),
			MaxRange:        round2(hi),
			MeanVolume:      round2(util.Mean(a.volumes)),
			MeanCandleCount: round2(util.Mean(a.candles)),
		}
		if len(a.pcts) > 0 {
			sh.MeanPctOfDay = round2(util.Mean(a.pcts))
			sh.StdPctOfDay = round2(util.SampleStd(a.pcts))
		}
		out = append(out, sh)
	}
	return out
}

// DominantSessions returns, per date, the session with the largest range.
// Ties go to the earlier session in ASIA, EUROPE, NY order.
func DominantSessions(sessions []models.SessionStats) []models.DominantSession {
	var (
		out   []models.DominantSession
		index = make(map[string]int)
	)
	for _, s := range ordered(sessions) {
		i, ok := index[s.Date]
		if !ok {
			index[s.Date] = len(out)
			out = append(out, models.DominantSession{Date: s.Date, Session: s.Session, Range: s.SessionRange})
			continue
		}
		if s.SessionRange > out[i].Range {
			out[i].Session = s.Session
			out[i].Range = s.SessionRange
		}
	}
	return out
}

// DominantFrequency counts how often each session dominated, in canonical order.
func DominantFrequency(dominant []models.DominantSession) []models.DominantSummary {
	counts := make(map[models.Session]int, len(models.Sessions))
	for _, d := range dominant {
		counts[d.Session]++
	}
	var out []models.DominantSummary
	for _, s := range models.Sessions {
		n, ok := counts[s]
		if !ok {
			continue
		}
		out = append(out, models.DominantSummary{
			Session: s,
			Days:    n,
			Percent: util.Round(util.Pct(n, len(dominant)), 1),
		})
	}
	return out
}

// SessionsByDayType averages each session's range and volume over the days
// of each classification. Dates without a classification are excluded.
func SessionsByDayType(sessions []models.SessionStats, days []models.DailyStats) []models.SessionDayType {
	class := make(map[string]models.Classification, len(days))
	for _, d := range days {
		if d.Classification != "" {
			class[d.Date] = d.Classification
		}
	}

	type key struct {
		c models.Classification
		s models.Session
	}
	ranges := make(map[key][]float64)
	volumes := make(map[key][]float64)
	for _, s := range sessions {
		c, ok := class[s.Date]
		if !ok {
			continue
		}
		k := key{c, s.Session}
		ranges[k] = append(ranges[k], s.SessionRange)
		volumes[k] = append(volumes[k], float64(s.Volume))
	}

	var out []models.SessionDayType
	for _, c := range models.Classifications {
		for _, s := range models.Sessions {
			k := key{c, s}
			rs, ok := ranges[k]
			if !ok {
				continue
			}
			out = append(out, models.SessionDayType{
				Classification: c,
				Session:        s,
				MeanRange:      round2(util.Mean(rs)),
				StdRange:       round2(util.SampleStd(rs)),
				Count:          len(rs),
				MeanVolume:     round2(util.Mean(volumes[k])),
			})
		}
	}
	return out
}

// OpeningGaps describes the jump between the first open of consecutive
// sessions on the same date.
func OpeningGaps(sessions []models.SessionStats) models.OpeningGaps {
	opens := make(map[string]map[models.Session]float64)
	var dates []string
	for _, s := range ordered(sessions) {
		row, ok := opens[s.Date]
		if !ok {
			row = make(map[models.Session]float64, len(models.Sessions))
			opens[s.Date] = row
			dates = append(dates, s.Date)
		}
		row[s.Session] = s.Open
	}

	var ae, en []float64
	for _, d := range dates {
		row := opens[d]
		asia, hasAsia := row[models.SessionAsia]
		eu, hasEU := row[models.SessionEurope]
		ny, hasNY := row[models.SessionNY]
		if hasAsia && hasEU {
			ae = append(ae, eu-asia)
		}
		if hasEU && hasNY {
			en = append(en, ny-eu)
		}
	}
	return models.OpeningGaps{AsiaToEurope: Describe(ae), EuropeToNY: Describe(en)}
}

// Describe summarizes a sample with count, mean, sample std and quartiles.
// An empty sample yields a zero Distribution.
func Describe(xs []float64) models.Distribution {
	d := models.Distribution{Count: len(xs)}
	if len(xs) == 0 {
		return d
	}
	qs := util.Percentiles(xs, 25, 50, 75)
	d.Mean = util.Mean(xs)
	d.Std = util.SampleStd(xs)
	d.Min, d.Max = util.MinMax(xs)
	d.P25, d.P50, d.P75 = qs[0], qs[1], qs[2]
	return d
}

func ordered(sessions []models.SessionStats) []models.SessionStats {
	out := make([]models.SessionStats, len(sessions))
	copy(out, sessions)
	sortSessions(out)
	return out
}

func round2(x float64) float64 { return util.Round(x, 2) }
