// Package metrics exposes Prometheus counters for classification and
// suppression. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ragebait"

// Verdict outcomes.
const (
	OutcomeClean   = "clean"
	OutcomeToxic   = "toxic"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Actions taken on toxic posts.
const (
	ActionHidden    = "hidden"
	ActionAnnotated = "annotated"
)

type Metrics struct {
	Classifications   *prometheus.CounterVec
	Suppressed        *prometheus.CounterVec
	EngineInits       *prometheus.CounterVec
	InferenceDuration prometheus.Histogram
}

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// New creates and registers the metrics on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "verdicts_total",
			Help:      "Classification verdicts by outcome.",
		}, []string{"outcome"}),
		Suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "suppressed_posts_total",
			Help:      "Posts hidden or annotated, by site and action.",
		}, []string{"site", "action"}),
		EngineInits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "engine_inits_total",
			Help:      "Engine creation attempts by result.",
		}, []string{"result"}),
		InferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "inference_duration_seconds",
			Help:      "Time spent in engine inference calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.Classifications, m.Suppressed, m.EngineInits, m.InferenceDuration)
	return m
}

func (m *Metrics) ObserveVerdict(outcome string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSuppressed(site, action string) {
	if m == nil {
		return
	}
	m.Suppressed.WithLabelValues(site, action).Inc()
}

func (m *Metrics) ObserveEngineInit(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EngineInits.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveInference(d time.Duration) {
	if m == nil {
		return
	}
	m.InferenceDuration.Observe(d.Seconds())
}
