package models

import "time"

type RuleType string

const (
	RuleDayOfWeek RuleType = "DIA_SEMANA"
	RuleHandoff   RuleType = "SESION_PREVIA"
	RuleStreak    RuleType = "RACHA"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "ALTA"
	ConfidenceMedium Confidence = "MEDIA"
)

// ProbabilisticRule is a descriptive conditional frequency that passed the actionable filter.
type ProbabilisticRule struct {
	Type        RuleType
	Condition   string
	Prediction  string
	Probability float64 // 0..100
	SampleSize  int
	Confidence  Confidence
	Tactic      string
}

// WeekdayPattern holds the classification mix observed on one weekday, in percent.
type WeekdayPattern struct {
	Weekday          time.Weekday
	Days             int
	ProbStrong       float64
	ProbIntermediate float64
	ProbLateral      float64
}

// HandoffPattern is P(second session active | first session strong).
type HandoffPattern struct {
	Key         string
	From        Session
	To          Session
	Condition   string
	Description string
	Threshold   float64 // p75 of the first session range
	Probability float64
	SampleSize  int
}

// StreakPattern is P(outcome | previous two days were Prior).
type StreakPattern struct {
	Key         string
	Prior       Classification
	Outcome     Classification
	Condition   string
	Description string
	Probability float64
	SampleSize  int
}

// Patterns bundles every mined pattern before filtering.
type Patterns struct {
	Weekdays []WeekdayPattern
	Handoffs []HandoffPattern
	Streaks  []StreakPattern

	// Suppressed conditions whose conditioning subset was too small.
	Suppressed []InsufficientSampleError
}

// Prediction is one contextual forecast line for a given day.
type Prediction struct {
	Source      string
	Prediction  string
	Probability float64
	Confidence  Confidence
}

// ContextPrediction is the contextual outlook for one day.
type ContextPrediction struct {
	Date        string
	Weekday     time.Weekday
	Predictions []Prediction
	Tactics     []string
}
