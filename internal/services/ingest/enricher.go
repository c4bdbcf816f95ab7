package ingest

import (
	"time"

	"SessionLens/internal/domain/models"
	"SessionLens/internal/services/session"
	"SessionLens/internal/services/timezone"
)

// EnrichResult carries the enriched copy and any degraded-mode warnings.
type EnrichResult struct {
	Candles  []models.Candle
	Warnings []string
}

// Enricher converts timestamps to the reference zone and tags each candle
// with its calendar date, weekday, session and range.
type Enricher struct {
	norm *timezone.Normalizer
	cls  *session.Classifier
}

func NewEnricher(norm *timezone.Normalizer, cls *session.Classifier) *Enricher {
	return &Enricher{norm: norm, cls: cls}
}

// Enrich returns a new slice; the input is left untouched.
func (e *Enricher) Enrich(candles []models.Candle) EnrichResult {
	ts := make([]time.Time, len(candles))
	for i, c := range candles {
		ts[i] = c.Timestamp
	}
	converted, warn := e.norm.NormalizeAll(ts)

	out := make([]models.Candle, len(candles))
	for i, c := range candles {
		c.Timestamp = converted[i]
		if len(c.Missing) > 0 {
			c.Missing = append([]string(nil), c.Missing...)
		}
		c.Date = c.Timestamp.Format(models.DateLayout)
		c.Weekday = c.Timestamp.Weekday()
		c.Session = e.cls.Classify(c.Timestamp)
		c.Range = 0
		if c.Has("high") && c.Has("low") {
			c.Range = c.High - c.Low
		}
		out[i] = c
	}

	res := EnrichResult{Candles: out}
	if warn != nil {
		res.Warnings = append(res.Warnings, warn.Error())
	}
	return res
}
