package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects MacroPulse client-side metrics with Prometheus.
type Recorder struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	dashboardLoads   *prometheus.CounterVec
	predictions      *prometheus.CounterVec
}

// New registers the MacroPulse collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropulse_upstream_requests_total",
				Help: "Requests issued to the MacroPulse API by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		upstreamLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "macropulse_upstream_request_duration_seconds",
				Help:    "Latency of MacroPulse API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		dashboardLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropulse_dashboard_loads_total",
				Help: "Joined dashboard loads by outcome",
			},
			[]string{"outcome"},
		),
		predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropulse_predictions_total",
				Help: "Phillips predict submissions by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveRequest records one upstream call. A nil recorder is a no-op.
func (r *Recorder) ObserveRequest(endpoint string, took time.Duration, err error) {
	if r == nil {
		return
	}
	r.upstreamRequests.WithLabelValues(endpoint, outcome(err)).Inc()
	r.upstreamLatency.WithLabelValues(endpoint).Observe(took.Seconds())
}

// ObserveDashboardLoad records a settled dashboard join.
func (r *Recorder) ObserveDashboardLoad(err error) {
	if r == nil {
		return
	}
	r.dashboardLoads.WithLabelValues(outcome(err)).Inc()
}

// ObservePrediction records a settled predict submission.
func (r *Recorder) ObservePrediction(result string) {
	if r == nil {
		return
	}
	r.predictions.WithLabelValues(result).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
