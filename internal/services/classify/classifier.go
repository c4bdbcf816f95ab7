package classify

import (
	"sort"

	"SessionLens/internal/domain/models"
	applogger "SessionLens/pkg/logger"
	"SessionLens/pkg/util"

	"github.com/markcheno/go-talib"
)

// Percentile points used for classification and reporting.
const (
	qLateral = 33.33
	qMedian  = 50
	qStrong  = 66.67
	q75      = 75
	q90      = 90
)

// Options tunes the classifier.
type Options struct {
	Metric          models.Metric
	OutlierZ        float64
	MinDays         int
	StreakMinLength int
	ATRWindow       int
}

type Option func(*Options)

func WithMetric(m models.Metric) Option { return func(o *Options) { o.Metric = m } }

func WithOutlierZ(k float64) Option { return func(o *Options) { o.OutlierZ = k } }

func WithMinDays(n int) Option { return func(o *Options) { o.MinDays = n } }

func WithStreakMinLength(n int) Option { return func(o *Options) { o.StreakMinLength = n } }

func WithATRWindow(n int) Option { return func(o *Options) { o.ATRWindow = n } }

func DefaultOptions() Options {
	return Options{
		Metric:          models.MetricDailyRange,
		OutlierZ:        2,
		MinDays:         20,
		StreakMinLength: 3,
		ATRWindow:       14,
	}
}

// Classifier labels days as FUERTE, INTERMEDIO or LATERAL relative to the
// percentiles of the dataset itself.
type Classifier struct {
	opts Options
	l    *applogger.Logger
}

func New(l *applogger.Logger, opts ...Option) *Classifier {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Classifier{opts: o, l: l}
}

func (c *Classifier) Options() Options { return c.opts }

// Result is the output of a full classification pass.
type Result struct {
	Days          []models.DailyStats
	Percentiles   models.Percentiles
	Streaks       []models.Streak
	LowConfidence bool
}

// Run computes ATR, percentiles, labels, outliers and streaks. The input is
// not modified. When classifying by ATR the warm-up days carry no ATR value,
// so they stay unclassified and out of the percentiles.
func (c *Classifier) Run(days []models.DailyStats) Result {
	withATR := ApplyATR(days, c.opts.ATRWindow)
	var warmup []models.DailyStats
	scored := withATR
	if c.opts.Metric == models.MetricATR {
		warmup, scored = SplitATRWarmup(withATR, c.opts.ATRWindow)
		if len(scored) == 0 && len(withATR) > 0 {
			c.l.Warn("series too short for ATR classification",
				applogger.Int("days", len(withATR)),
				applogger.Int("atr_window", c.opts.ATRWindow),
			)
		}
	}
	p := ComputePercentiles(scored, c.opts.Metric)
	classified := make([]models.DailyStats, 0, len(withATR))
	classified = append(classified, warmup...)
	classified = append(classified, Classify(scored, p, c.opts.OutlierZ)...)
	res := Result{
		Days:          classified,
		Percentiles:   p,
		Streaks:       DetectStreaks(classified, c.opts.StreakMinLength),
		LowConfidence: LowConfidence(scored, c.opts.MinDays),
	}
	if res.LowConfidence {
		c.l.Warn("few days for a reliable classification",
			applogger.Int("days", len(days)),
			applogger.Int("min_days", c.opts.MinDays),
		)
	}
	c.l.Debug("days classified",
		applogger.String("metric", string(p.Metric)),
		applogger.Float("p33", p.P33),
		applogger.Float("p67", p.P67),
		applogger.Int("streaks", len(res.Streaks)),
	)
	return res
}

// ComputePercentiles summarizes the metric column over all days.
func ComputePercentiles(days []models.DailyStats, metric models.Metric) models.Percentiles {
	p := models.Percentiles{Metric: metric, Count: len(days)}
	if len(days) == 0 {
		return p
	}
	vals := make([]float64, len(days))
	for i, d := range days {
		vals[i] = d.Value(metric)
	}
	ps := util.Percentiles(vals, qLateral, qMedian, qStrong, q75, q90)
	p.P33, p.P50, p.P67, p.P75, p.P90 = ps[0], ps[1], ps[2], ps[3], ps[4]
	p.Min, p.Max = util.MinMax(vals)
	p.Mean = util.Mean(vals)
	p.Std = util.SampleStd(vals)
	return p
}

// Label maps a metric value onto a classification.
func Label(v float64, p models.Percentiles) models.Classification {
	switch {
	case v >= p.P67:
		return models.ClassStrong
	case v >= p.P33:
		return models.ClassIntermediate
	default:
		return models.ClassLateral
	}
}

// Classify returns a labelled copy of days. Applying it twice with the same
// percentiles yields the same labels.
func Classify(days []models.DailyStats, p models.Percentiles, outlierZ float64) []models.DailyStats {
	threshold := p.Mean + outlierZ*p.Std
	out := make([]models.DailyStats, len(days))
	for i, d := range days {
		v := d.Value(p.Metric)
		d.Classification = Label(v, p)
		d.IsOutlier = v > threshold
		out[i] = d
	}
	return out
}

// DetectStreaks run-length encodes the classifications in date order and keeps
// runs of at least minLength days.
func DetectStreaks(days []models.DailyStats, minLength int) []models.Streak {
	ordered := byDate(days)
	var out []models.Streak
	for i := 0; i < len(ordered); {
		j := i
		for j+1 < len(ordered) && ordered[j+1].Classification == ordered[i].Classification {
			j++
		}
		if n := j - i + 1; n >= minLength && ordered[i].Classification != "" {
			out = append(out, models.Streak{
				Type:      ordered[i].Classification,
				StartDate: ordered[i].Date,
				EndDate:   ordered[j].Date,
				Duration:  n,
			})
		}
		i = j + 1
	}
	return out
}

// LowConfidence reports whether there are too few days for stable percentiles.
func LowConfidence(days []models.DailyStats, minDays int) bool {
	return len(days) < minDays
}

// ApplyATR returns a copy of days carrying the average true range over the
// trailing window. Days before the window fills keep a zero ATR.
func ApplyATR(days []models.DailyStats, window int) []models.DailyStats {
	ordered := byDate(days)
	if window < 1 || len(ordered) <= window {
		return ordered
	}
	high := make([]float64, len(ordered))
	low := make([]float64, len(ordered))
	closes := make([]float64, len(ordered))
	for i, d := range ordered {
		high[i], low[i], closes[i] = d.High, d.Low, d.Close
	}
	atr := talib.Atr(high, low, closes, window)
	for i := range ordered {
		ordered[i].ATR = atr[i]
	}
	return ordered
}

// SplitATRWarmup separates date-ordered days into the leading window whose
// ATR is not yet defined and the rest.
func SplitATRWarmup(ordered []models.DailyStats, window int) (warmup, rest []models.DailyStats) {
	n := window
	if n < 0 {
		n = 0
	}
	if n > len(ordered) {
		n = len(ordered)
	}
	return ordered[:n], ordered[n:]
}

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// WeekdayBreakdown counts classifications per trading weekday.
func WeekdayBreakdown(days []models.DailyStats) []models.WeekdayBreakdown {
	idx := make(map[string]int, len(weekdays))
	out := make([]models.WeekdayBreakdown, len(weekdays))
	for i, w := range weekdays {
		idx[w] = i
		out[i].Weekday = w
	}
	for _, d := range days {
		i, ok := idx[d.Weekday.String()]
		if !ok || d.Classification == "" {
			continue
		}
		out[i].Total++
		switch d.Classification {
		case models.ClassStrong:
			out[i].Strong++
		case models.ClassIntermediate:
			out[i].Intermediate++
		case models.ClassLateral:
			out[i].Lateral++
		}
	}
	for i := range out {
		out[i].PctStrong = util.Round(util.Pct(out[i].Strong, out[i].Total), 1)
		out[i].PctLateral = util.Round(util.Pct(out[i].Lateral, out[i].Total), 1)
	}
	return out
}

func byDate(days []models.DailyStats) []models.DailyStats {
	out := make([]models.DailyStats, len(days))
	copy(out, days)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
