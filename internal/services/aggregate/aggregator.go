package aggregate

import (
	"sort"

	"SessionLens/internal/domain/models"
	"SessionLens/pkg/util"
)

// bar is the reduction shared by daily and session statistics.
type bar struct {
	high, low, open, close float64
	volume                 int64
	rangeTotal             float64
	netRange               float64
	volatility             float64
	candles                int
}

func (b bar) change() float64 { return b.close - b.open }

func (b bar) changePct() float64 {
	if b.open == 0 {
		return 0
	}
	return b.change() / b.open * 100
}

func (b bar) direction() models.Direction {
	switch c := b.change(); {
	case c > 0:
		return models.DirectionUp
	case c < 0:
		return models.DirectionDown
	default:
		return models.DirectionNeutral
	}
}

// reduce expects candles in chronological order. Empty source fields are
// skipped: high/low/open/close come from present values only and a candle
// adds to rangeTotal only when both its high and low are present.
func reduce(candles []models.Candle) bar {
	b := bar{candles: len(candles)}
	var (
		seenHigh, seenLow, seenOpen bool
		closes                      = make([]float64, 0, len(candles))
	)
	for _, c := range candles {
		hasHigh, hasLow := c.Has("high"), c.Has("low")
		if hasHigh && (!seenHigh || c.High > b.high) {
			b.high, seenHigh = c.High, true
		}
		if hasLow && (!seenLow || c.Low < b.low) {
			b.low, seenLow = c.Low, true
		}
		if !seenOpen && c.Has("open") {
			b.open, seenOpen = c.Open, true
		}
		if c.Has("close") {
			b.close = c.Close
			closes = append(closes, c.Close)
		}
		if hasHigh && hasLow {
			b.rangeTotal += c.High - c.Low
		}
		b.volume += c.Volume
	}
	if len(closes) == 0 {
		// no close at all: leave the change flat
		b.close = b.open
	}
	if !seenOpen {
		b.open = b.close
	}
	if seenHigh && seenLow {
		b.netRange = b.high - b.low
	}
	b.volatility = util.SampleStd(closes)
	return b
}

func sorted(candles []models.Candle) []models.Candle {
	out := make([]models.Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// AggregateDaily reduces enriched candles to one row per calendar date,
// ordered by date.
func AggregateDaily(candles []models.Candle) []models.DailyStats {
	if len(candles) == 0 {
		return nil
	}
	byDate := make(map[string][]models.Candle)
	var dates []string
	for _, c := range sorted(candles) {
		if _, ok := byDate[c.Date]; !ok {
			dates = append(dates, c.Date)
		}
		byDate[c.Date] = append(byDate[c.Date], c)
	}
	sort.Strings(dates)

	out := make([]models.DailyStats, 0, len(dates))
	for _, d := range dates {
		group := byDate[d]
		b := reduce(group)
		out = append(out, models.DailyStats{
			Date:       d,
			High:       b.high,
			Low:        b.low,
			Open:       b.open,
			Close:      b.close,
			Volume:     b.volume,
			RangeTotal: b.rangeTotal,
			DailyRange: b.netRange,
			Change:     b.change(),
			ChangePct:  b.changePct(),
			Direction:  b.direction(),
			Volatility: b.volatility,
			Weekday:    group[0].Weekday,
			Candles:    b.candles,
		})
	}
	return out
}

type sessionKey struct {
	date    string
	session models.Session
}

// AggregateBySession reduces enriched candles to one row per (date, session),
// ordered by date and then canonical session order.
func AggregateBySession(candles []models.Candle) []models.SessionStats {
	if len(candles) == 0 {
		return nil
	}
	groups := make(map[sessionKey][]models.Candle)
	var keys []sessionKey
	for _, c := range sorted(candles) {
		k := sessionKey{c.Date, c.Session}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], c)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].session.Order() < keys[j].session.Order()
	})

	out := make([]models.SessionStats, 0, len(keys))
	for _, k := range keys {
		group := groups[k]
		b := reduce(group)
		out = append(out, models.SessionStats{
			Date:         k.date,
			Session:      k.session,
			High:         b.high,
			Low:          b.low,
			Open:         b.open,
			Close:        b.close,
			Volume:       b.volume,
			RangeTotal:   b.rangeTotal,
			SessionRange: b.netRange,
			Change:       b.change(),
			ChangePct:    b.changePct(),
			Direction:    b.direction(),
			Volatility:   b.volatility,
			Weekday:      group[0].Weekday,
			Candles:      b.candles,
		})
	}
	return out
}

// ByDate indexes daily rows by their date key.
func ByDate(days []models.DailyStats) map[string]models.DailyStats {
	m := make(map[string]models.DailyStats, len(days))
	for _, d := range days {
		m[d.Date] = d
	}
	return m
}

// Pivot arranges session ranges as date -> session -> SessionRange.
func Pivot(sessions []models.SessionStats) map[string]map[models.Session]float64 {
	m := make(map[string]map[models.Session]float64)
	for _, s := range sessions {
		row, ok := m[s.Date]
		if !ok {
			row = make(map[models.Session]float64, len(models.Sessions))
			m[s.Date] = row
		}
		row[s.Session] = s.SessionRange
	}
	return m
}
