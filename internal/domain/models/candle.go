package models

import "time"

// Session is one of the three intraday trading sessions.
type Session string

const (
	SessionAsia   Session = "ASIA"
	SessionEurope Session = "EUROPE"
	SessionNY     Session = "NY"
)

// Sessions lists sessions in their canonical order. Ties and pivots follow this order.
var Sessions = []Session{SessionAsia, SessionEurope, SessionNY}

// Order returns the canonical position of the session, or len(Sessions) when unknown.
func (s Session) Order() int {
	for i, v := range Sessions {
		if v == s {
			return i
		}
	}
	return len(Sessions)
}

// SessionWindow is a half-open [Start, End) clock window in the reference timezone.
// Start > End means the window wraps midnight.
type SessionWindow struct {
	Name  Session
	Start string // "HH:MM"
	End   string // "HH:MM"
}

// Candle is a single minute bar. Timestamp holds reference-timezone wall clock
// with location UTC once enriched.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64

	// Missing lists input columns that were empty in the source row.
	Missing []string

	// Populated by enrichment.
	Date    string // "2006-01-02"
	Weekday time.Weekday
	Session Session
	Range   float64
}

// Has reports whether col ("open", "high", "low", "close", "volume") was
// present in the source row.
func (c Candle) Has(col string) bool {
	for _, m := range c.Missing {
		if m == col {
			return false
		}
	}
	return true
}

// DateLayout is the calendar date key format used across daily structures.
const DateLayout = "2006-01-02"

// Dataset is an immutable enriched candle series plus the provenance needed to reload it.
type Dataset struct {
	ID          string
	Source      string
	Fingerprint string
	Candles     []Candle
	Warnings    []string
}
