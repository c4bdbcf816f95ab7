package models

import "time"

// RunResult is the read-only bundle handed to downstream consumers.
// Report formatting and charting happen outside this module.
type RunResult struct {
	RunID         string
	DatasetID     string
	Source        string
	Fingerprint   string
	CreatedAt     time.Time
	CandleCount   int
	LowConfidence bool

	Daily        []DailyStats
	Sessions     []SessionStats
	Percentiles  Percentiles
	Streaks      []Streak
	Weekdays     []WeekdayBreakdown
	Shares       []SessionShare
	Dominant     []DominantSession
	DominantFreq []DominantSummary
	Correlations []Correlation
	ByDayType    []SessionDayType
	Gaps         OpeningGaps
	Monthly      MonthlyEvolution
	Patterns     Patterns
	Rules        []ProbabilisticRule

	Warnings []string
}

// Correlation returns the entry for key, if computed.
func (r *RunResult) Correlation(key CorrelationKey) (Correlation, bool) {
	for _, c := range r.Correlations {
		if c.Key == key {
			return c, true
		}
	}
	return Correlation{}, false
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	RunID       string
	DatasetID   string
	Source      string
	CreatedAt   time.Time
	Days        int
	CandleCount int
	Rules       int
}

func (r *RunResult) Summary() RunSummary {
	return RunSummary{
		RunID:       r.RunID,
		DatasetID:   r.DatasetID,
		Source:      r.Source,
		CreatedAt:   r.CreatedAt,
		Days:        len(r.Daily),
		CandleCount: r.CandleCount,
		Rules:       len(r.Rules),
	}
}

// ContractMetrics is the headline profile of one contract used in comparisons.
type ContractMetrics struct {
	Contract          string
	Days              int
	StrongPct         float64
	LateralPct        float64
	MeanRange         float64
	MinRange          float64
	MaxRange          float64
	MeanVolatility    float64
	Outliers          int
	MeanDailyVolume   float64
	MeanSessionRanges map[Session]float64
}

// ContractComparison contrasts several analysed contracts.
type ContractComparison struct {
	Contracts []ContractMetrics

	// Set only when exactly two contracts are compared.
	VolatilityRatio  float64
	StrongDaysRatio  float64
	VolumeRatio      float64
	RangeCorrelation *Correlation
	SharedDays       int
}
