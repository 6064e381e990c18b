package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for processed messages.
const (
	OutcomeStored      = "stored"
	OutcomeSkipped     = "skipped"
	OutcomeFailed      = "failed"
	OutcomeMalformed   = "malformed"
	OutcomeInterrupted = "interrupted"
)

// Metrics provides observability for the enrichment pipeline.
type Metrics struct {
	// Messages by final outcome
	Outcomes *prometheus.CounterVec

	// Classifier round trips by result ("ok", "error")
	ClassifyLatency *prometheus.HistogramVec

	// Feed items put on the queue, by feed name
	Published *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsatlas_enrich_messages_total",
			Help: "Total news messages handled by the enricher, by outcome",
		}, []string{"outcome"}),

		ClassifyLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsatlas_classifier_duration_seconds",
			Help:    "Duration of classifier calls, one observation per attempt",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"result"}),

		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "newsatlas_feed_items_published_total",
			Help: "Total feed items published to the news queue, by feed",
		}, []string{"feed"}),
	}
}

// IncOutcome records the final outcome of one message.
func (m *Metrics) IncOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

// ObserveClassify records a single classifier attempt.
func (m *Metrics) ObserveClassify(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ClassifyLatency.WithLabelValues(result).Observe(d.Seconds())
}

// IncPublished records items published for a feed.
func (m *Metrics) IncPublished(feed string, n int) {
	if m != nil && n > 0 {
		m.Published.WithLabelValues(feed).Add(float64(n))
	}
}
