package models

import "time"

type Direction string

const (
	DirectionUp      Direction = "ALCISTA"
	DirectionDown    Direction = "BAJISTA"
	DirectionNeutral Direction = "NEUTRO"
)

type Classification string

const (
	ClassStrong       Classification = "FUERTE"
	ClassIntermediate Classification = "INTERMEDIO"
	ClassLateral      Classification = "LATERAL"
)

// Classifications in reporting order.
var Classifications = []Classification{ClassStrong, ClassIntermediate, ClassLateral}

// Metric names a DailyStats column usable for percentile classification.
type Metric string

const (
	MetricDailyRange Metric = "rango_diario"
	MetricVolatility Metric = "volatilidad"
	MetricRangeTotal Metric = "rango_total"
	MetricATR        Metric = "atr"
)

// DailyStats aggregates every candle of one calendar date.
type DailyStats struct {
	Date       string
	High       float64
	Low        float64
	Open       float64
	Close      float64
	Volume     int64
	RangeTotal float64 // sum of per-candle ranges
	DailyRange float64 // High - Low
	Change     float64
	ChangePct  float64
	Direction  Direction
	Volatility float64 // sample stdev of closes
	Weekday    time.Weekday
	Candles    int
	USDST      bool // date falls inside US daylight saving time

	// Set by the day classifier.
	ATR            float64
	Classification Classification
	IsOutlier      bool
}

// Value returns the metric column of the day.
func (d DailyStats) Value(m Metric) float64 {
	switch m {
	case MetricVolatility:
		return d.Volatility
	case MetricRangeTotal:
		return d.RangeTotal
	case MetricATR:
		return d.ATR
	default:
		return d.DailyRange
	}
}

// SessionStats aggregates the candles of one (date, session) pair.
type SessionStats struct {
	Date         string
	Session      Session
	High         float64
	Low          float64
	Open         float64
	Close        float64
	Volume       int64
	RangeTotal   float64 // sum of per-candle ranges
	SessionRange float64 // High - Low
	Change       float64
	ChangePct    float64
	Direction    Direction
	Volatility   float64
	Weekday      time.Weekday
	Candles      int
}

// Percentiles is a snapshot of the metric distribution used to classify days.
type Percentiles struct {
	Metric Metric
	P33    float64
	P50    float64
	P67    float64
	P75    float64
	P90    float64
	Min    float64
	Max    float64
	Mean   float64
	Std    float64
	Count  int
}

// Streak is a maximal run of identically classified consecutive days.
type Streak struct {
	Type      Classification
	StartDate string
	EndDate   string
	Duration  int
}
