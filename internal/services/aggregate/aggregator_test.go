package aggregate

import (
	"testing"
	"time"

	"SessionLens/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar1m(ts time.Time, s models.Session, o, h, l, c float64, v int64) models.Candle {
	return models.Candle{
		Timestamp: ts,
		Open:      o, High: h, Low: l, Close: c, Volume: v,
		Date:    ts.Format(models.DateLayout),
		Weekday: ts.Weekday(),
		Session: s,
		Range:   h - l,
	}
}

func at(day, h, m int) time.Time {
	return time.Date(2024, time.January, day, h, m, 0, 0, time.UTC)
}

func fixture() []models.Candle {
	// deliberately out of order
	return []models.Candle{
		bar1m(at(15, 10, 1), models.SessionEurope, 105, 112, 104, 110, 20),
		bar1m(at(15, 10, 0), models.SessionEurope, 100, 106, 99, 105, 10),
		bar1m(at(15, 14, 0), models.SessionNY, 110, 111, 95, 96, 30),
		bar1m(at(15, 1, 0), models.SessionAsia, 101, 102, 100, 100, 5),
		bar1m(at(16, 10, 0), models.SessionEurope, 96, 98, 96, 98, 7),
	}
}

func TestAggregateDaily(t *testing.T) {
	days := AggregateDaily(fixture())
	require.Len(t, days, 2)

	d := days[0]
	assert.Equal(t, "2024-01-15", d.Date)
	assert.Equal(t, 101.0, d.Open) // first candle chronologically is 01:00
	assert.Equal(t, 96.0, d.Close) // last is 14:00
	assert.Equal(t, 112.0, d.High)
	assert.Equal(t, 95.0, d.Low)
	assert.Equal(t, int64(65), d.Volume)
	assert.Equal(t, 17.0, d.DailyRange)
	assert.InDelta(t, 2+7+8+16, d.RangeTotal, 1e-9)
	assert.Equal(t, -5.0, d.Change)
	assert.InDelta(t, -5.0/101*100, d.ChangePct, 1e-9)
	assert.Equal(t, models.DirectionDown, d.Direction)
	assert.Equal(t, 4, d.Candles)
	assert.Equal(t, time.Monday, d.Weekday)
	// closes 100,105,110,96 -> sample std
	assert.InDelta(t, 6.0553007, d.Volatility, 1e-6)

	single := days[1]
	assert.Equal(t, models.DirectionUp, single.Direction)
	assert.Equal(t, 0.0, single.Volatility)
}

func TestAggregateSkipsMissingFields(t *testing.T) {
	noLow := bar1m(at(15, 1, 1), models.SessionAsia, 17005, 17012, 0, 17008, 4)
	noLow.Missing = []string{"low"}
	noLow.Range = 0
	noOpen := bar1m(at(15, 1, 0), models.SessionAsia, 0, 17010, 16995, 17004, 3)
	noOpen.Missing = []string{"open"}
	candles := []models.Candle{
		noLow,
		noOpen,
		bar1m(at(15, 1, 2), models.SessionAsia, 17008, 17011, 17001, 17002, 5),
	}

	days := AggregateDaily(candles)
	require.Len(t, days, 1)
	d := days[0]
	assert.Equal(t, 16995.0, d.Low)
	assert.Equal(t, 17012.0, d.High)
	assert.Equal(t, 17.0, d.DailyRange)
	// the candle without low adds nothing to the churn
	assert.InDelta(t, 15+10, d.RangeTotal, 1e-9)
	// first present open belongs to the 01:01 candle
	assert.Equal(t, 17005.0, d.Open)
	assert.Equal(t, 17002.0, d.Close)
	assert.Equal(t, -3.0, d.Change)
	assert.Equal(t, int64(12), d.Volume)

	ss := AggregateBySession(candles)
	require.Len(t, ss, 1)
	assert.Equal(t, 17.0, ss[0].SessionRange)
	assert.Equal(t, 17005.0, ss[0].Open)
}

func TestAggregateBySession(t *testing.T) {
	ss := AggregateBySession(fixture())
	require.Len(t, ss, 4)

	assert.Equal(t, models.SessionAsia, ss[0].Session)
	assert.Equal(t, models.SessionEurope, ss[1].Session)
	assert.Equal(t, models.SessionNY, ss[2].Session)
	assert.Equal(t, "2024-01-16", ss[3].Date)

	eu := ss[1]
	assert.Equal(t, 100.0, eu.Open)
	assert.Equal(t, 110.0, eu.Close)
	assert.Equal(t, 13.0, eu.SessionRange)
	assert.InDelta(t, 7+8, eu.RangeTotal, 1e-9)
	assert.Equal(t, int64(30), eu.Volume)
	assert.Equal(t, 2, eu.Candles)
}

func TestAggregateOHLCInvariant(t *testing.T) {
	for _, d := range AggregateDaily(fixture()) {
		assert.LessOrEqual(t, d.Low, d.Open)
		assert.LessOrEqual(t, d.Low, d.Close)
		assert.GreaterOrEqual(t, d.High, d.Open)
		assert.GreaterOrEqual(t, d.High, d.Close)
		assert.GreaterOrEqual(t, d.DailyRange, 0.0)
	}
}

func TestAggregateDoesNotMutateInput(t *testing.T) {
	in := fixture()
	first := in[0].Timestamp
	_ = AggregateDaily(in)
	_ = AggregateBySession(in)
	assert.Equal(t, first, in[0].Timestamp)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, AggregateDaily(nil))
	assert.Empty(t, AggregateBySession(nil))
}

func TestPivot(t *testing.T) {
	p := Pivot(AggregateBySession(fixture()))
	assert.Equal(t, 13.0, p["2024-01-15"][models.SessionEurope])
	_, ok := p["2024-01-16"][models.SessionNY]
	assert.False(t, ok)
}
