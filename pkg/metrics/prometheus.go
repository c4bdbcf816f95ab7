package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	stageDuration *prometheus.HistogramVec
	candles       prometheus.Counter
	issues        *prometheus.CounterVec
	daysByClass   *prometheus.GaugeVec
	rules         prometheus.Gauge
	runs          *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// New registers every collector on reg. Pass prometheus.DefaultRegisterer to
// expose them through promhttp.Handler.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionlens_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		candles: f.NewCounter(prometheus.CounterOpts{
			Name: "sessionlens_candles_ingested_total",
			Help: "Candles that passed validation and were enriched",
		}),
		issues: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionlens_validation_issues_total",
				Help: "Validation findings by kind",
			},
			[]string{"kind"},
		),
		daysByClass: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sessionlens_days_by_classification",
				Help: "Days per classification in the latest run",
			},
			[]string{"classification"},
		),
		rules: f.NewGauge(prometheus.GaugeOpts{
			Name: "sessionlens_rules_emitted",
			Help: "Actionable rules produced by the latest run",
		}),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionlens_runs_total",
				Help: "Pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionlens_errors_total",
				Help: "Errors by kind",
			},
			[]string{"kind"},
		),
		httpLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionlens_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (r *Recorder) RecordCandles(n int) { r.candles.Add(float64(n)) }

func (r *Recorder) RecordValidationIssue(kind string, n int) {
	r.issues.WithLabelValues(kind).Add(float64(n))
}

func (r *Recorder) RecordClassification(class string, days int) {
	r.daysByClass.WithLabelValues(class).Set(float64(days))
}

func (r *Recorder) RecordRules(n int) { r.rules.Set(float64(n)) }

func (r *Recorder) RecordRun(outcome string) { r.runs.WithLabelValues(outcome).Inc() }

func (r *Recorder) RecordError(kind string) { r.errorsTotal.WithLabelValues(kind).Inc() }

// ObserveHTTP records one served request. route is the registered path
// pattern, not the raw URL.
func (r *Recorder) ObserveHTTP(method, route string, status int, seconds float64) {
	r.httpLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}
