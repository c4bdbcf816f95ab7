package models

// SessionShare describes how much of the daily range a session accounts for.
type SessionShare struct {
	Session         Session
	Days            int
	MeanRange       float64
	StdRange        float64
	MinRange        float64
	MaxRange        float64
	MeanPctOfDay    float64
	StdPctOfDay     float64
	MeanVolume      float64
	MeanCandleCount float64
}

// DominantSession is the session with the largest range on a date.
type DominantSession struct {
	Date    string
	Session Session
	Range   float64
}

// DominantSummary counts how often each session dominated.
type DominantSummary struct {
	Session Session
	Days    int
	Percent float64
}

// CorrelationKey identifies a correlation pair such as "ASIA→EUROPE".
type CorrelationKey string

// DailyRangeTarget is the right-hand side name used for session→day correlations.
const DailyRangeTarget = "DAILY_RANGE"

func PairKey(a, b Session) CorrelationKey {
	return CorrelationKey(string(a) + "→" + string(b))
}

func DailyKey(s Session) CorrelationKey {
	return CorrelationKey(string(s) + "→" + DailyRangeTarget)
}

// Correlation is a Pearson coefficient rounded to three decimals.
type Correlation struct {
	Key      CorrelationKey
	R        float64
	Samples  int
	Strength string // strong, moderate, weak, none
	Sign     string // positive, negative
}

// SessionDayType aggregates a session's behaviour across days of one classification.
type SessionDayType struct {
	Classification Classification
	Session        Session
	MeanRange      float64
	StdRange       float64
	Count          int
	MeanVolume     float64
}

// Distribution is a describe()-style summary of a numeric sample.
type Distribution struct {
	Count int
	Mean  float64
	Std   float64
	Min   float64
	P25   float64
	P50   float64
	P75   float64
	Max   float64
}

// OpeningGaps summarises the jump between consecutive session opens.
type OpeningGaps struct {
	AsiaToEurope Distribution
	EuropeToNY   Distribution
}

// WeekdayBreakdown is the count of classifications observed on one weekday.
type WeekdayBreakdown struct {
	Weekday      string
	Total        int
	Strong       int
	Intermediate int
	Lateral      int
	PctStrong    float64
	PctLateral   float64
}

// MonthlyStats aggregates classified days by calendar month.
type MonthlyStats struct {
	Month          string // "2006-01"
	Days           int
	MeanRange      float64
	StdRange       float64
	MinRange       float64
	MaxRange       float64
	MeanVolatility float64
	StrongDays     int
	StrongPct      float64
	Outliers       int
	OutlierPct     float64
	Rank           int // 1 = most volatile
}

type Trend string

const (
	TrendRising  Trend = "CRECIENTE"
	TrendFalling Trend = "DECRECIENTE"
	TrendStable  Trend = "ESTABLE"
)

// MonthlyEvolution describes how volatility moved month over month.
type MonthlyEvolution struct {
	Months           []MonthlyStats
	Trend            Trend
	Slope            float64
	MostVolatile     string
	MostLateral      string
	CoefficientOfVar float64
	Variability      string // ALTA, MODERADA, BAJA
}
