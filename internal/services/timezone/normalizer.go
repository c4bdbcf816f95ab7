package timezone

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"SessionLens/internal/domain/models"
	applogger "SessionLens/pkg/logger"
)

// Outcome is the result of normalizing one timestamp. Warning is set when the
// conversion could not be performed and Time is the input unchanged.
type Outcome struct {
	Time    time.Time
	Warning *models.TimezoneConversionWarning
}

// Normalizer converts source-timezone timestamps to naive reference-timezone
// wall clock. Naive values carry time.UTC as location.
type Normalizer struct {
	source    string
	reference string
	srcLoc    *time.Location
	refLoc    *time.Location
	loadErr   error
	l         *applogger.Logger
}

func NewNormalizer(source, reference string, l *applogger.Logger) *Normalizer {
	if l == nil {
		l = applogger.Nop()
	}
	n := &Normalizer{source: source, reference: reference, l: l}
	n.srcLoc, n.loadErr = time.LoadLocation(source)
	if n.loadErr == nil {
		n.refLoc, n.loadErr = time.LoadLocation(reference)
	}
	if n.loadErr != nil {
		n.loadErr = fmt.Errorf("load location: %w", n.loadErr)
	}
	return n
}

// Source returns the configured source zone name.
func (n *Normalizer) Source() string { return n.source }

// Reference returns the configured reference zone name.
func (n *Normalizer) Reference() string { return n.reference }

// Normalize treats the wall clock of ts as local time in the source zone,
// converts it to the reference zone and strips the location. The location of
// ts is ignored: time.Time cannot tell a naive value from a UTC instant, so
// callers holding real instants use NormalizeInstant.
func (n *Normalizer) Normalize(ts time.Time) Outcome {
	if n.loadErr != nil {
		return Outcome{Time: ts, Warning: n.warning()}
	}
	local := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), n.srcLoc)
	return Outcome{Time: Naive(local.In(n.refLoc))}
}

// NormalizeInstant converts an absolute instant, in any location including
// UTC, to naive reference-zone wall clock. The source zone is not used.
func (n *Normalizer) NormalizeInstant(ts time.Time) Outcome {
	if n.loadErr != nil {
		return Outcome{Time: ts, Warning: n.warning()}
	}
	return Outcome{Time: Naive(ts.In(n.refLoc))}
}

// NormalizeAll converts a batch of naive timestamps with Normalize. On
// failure it logs a single warning and returns the input unchanged.
func (n *Normalizer) NormalizeAll(ts []time.Time) ([]time.Time, *models.TimezoneConversionWarning) {
	out := make([]time.Time, len(ts))
	if n.loadErr != nil {
		copy(out, ts)
		w := n.warning()
		n.l.Warn("timezone conversion skipped",
			applogger.String("source", n.source),
			applogger.String("reference", n.reference),
			applogger.Error(n.loadErr),
		)
		return out, w
	}
	for i, t := range ts {
		out[i] = n.Normalize(t).Time
	}
	n.l.Debug("timestamps converted",
		applogger.String("source", n.source),
		applogger.String("reference", n.reference),
		applogger.Int("count", len(ts)),
	)
	return out, nil
}

func (n *Normalizer) warning() *models.TimezoneConversionWarning {
	return &models.TimezoneConversionWarning{Source: n.source, Reference: n.reference, Err: n.loadErr}
}

// Naive drops the location of t, keeping its wall clock.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
