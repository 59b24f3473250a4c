package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "amanlex"

// Collectors holds the prometheus instruments of the retrieval pipeline
// and the HTTP surface. A nil *Collectors records nothing.
type Collectors struct {
	retrievalDuration *prometheus.HistogramVec
	gateOutcomes      *prometheus.CounterVec
	rerankOutcomes    *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewCollectors registers the instruments with reg. A nil reg uses the
// default registerer.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collectors{
		retrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "duration_seconds",
				Help:      "Retrieval channel duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"channel"},
		),
		gateOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "outcomes_total",
				Help:      "Confidence gate outcomes",
			},
			[]string{"outcome"},
		),
		rerankOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rerank",
				Name:      "outcomes_total",
				Help:      "Rerank stage outcomes (skipped, applied, fallback)",
			},
			[]string{"outcome"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveRetrieval records the duration of one retrieval channel.
func (c *Collectors) ObserveRetrieval(channel string, d time.Duration) {
	if c == nil {
		return
	}
	c.retrievalDuration.WithLabelValues(channel).Observe(d.Seconds())
}

// CountGate counts a gate outcome.
func (c *Collectors) CountGate(outcome string) {
	if c == nil {
		return
	}
	c.gateOutcomes.WithLabelValues(outcome).Inc()
}

// CountRerank counts a rerank stage outcome.
func (c *Collectors) CountRerank(outcome string) {
	if c == nil {
		return
	}
	c.rerankOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request.
func (c *Collectors) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
