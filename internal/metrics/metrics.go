package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records engine and HTTP activity. It satisfies session.Recorder.
type Metrics struct {
	ResponseCycles        *prometheus.CounterVec
	ResponseCycleDuration *prometheus.HistogramVec
	PendingResponses      prometheus.Gauge
	AttachmentsIngested   *prometheus.CounterVec
	AttachmentsRejected   *prometheus.CounterVec
	ActiveSessions        prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ResponseCycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companion_response_cycles_total",
				Help: "Finished response cycles by outcome",
			},
			[]string{"outcome"},
		),
		ResponseCycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "companion_response_cycle_duration_seconds",
				Help:    "Time from submission to reply or failure",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		PendingResponses: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "companion_pending_responses",
				Help: "Response cycles currently in flight",
			},
		),
		AttachmentsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companion_attachments_ingested_total",
				Help: "Documents accepted into a session",
			},
			[]string{"media_type"},
		),
		AttachmentsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companion_attachments_rejected_total",
				Help: "Uploads refused by a session",
			},
			[]string{"reason"},
		),
		ActiveSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "companion_active_sessions",
				Help: "Sessions held in memory",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companion_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "companion_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),
	}
}

func (m *Metrics) CycleStarted() {
	m.PendingResponses.Inc()
}

func (m *Metrics) CycleFinished(outcome string, elapsed time.Duration) {
	m.PendingResponses.Dec()
	m.ResponseCycles.WithLabelValues(outcome).Inc()
	m.ResponseCycleDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) AttachmentIngested(mediaType string) {
	m.AttachmentsIngested.WithLabelValues(mediaType).Inc()
}

func (m *Metrics) AttachmentRejected(reason string) {
	m.AttachmentsRejected.WithLabelValues(reason).Inc()
}
