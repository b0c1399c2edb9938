package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clipnetic/clipnetic/internal/types"
	"github.com/clipnetic/clipnetic/internal/usecase"
)

// Metrics holds the Prometheus collectors for the service on a private
// registry.
type Metrics struct {
	registry      *prometheus.Registry
	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
	rejectedTotal prometheus.Counter
	jobsTotal     *prometheus.CounterVec
	clipsTotal    *prometheus.CounterVec
	jobDuration   prometheus.Histogram
	activeJobs    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipnetic_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipnetic_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		rejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipnetic_busy_rejections_total",
			Help: "Requests turned away because every processing slot was taken",
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipnetic_jobs_total",
			Help: "Processed requests by outcome",
		}, []string{"outcome"}),
		clipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipnetic_clips_total",
			Help: "Finished clip jobs by status and the stage they ended in",
		}, []string{"status", "stage"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clipnetic_job_duration_seconds",
			Help:    "Wall time of one processing request",
			Buckets: []float64{15, 30, 60, 120, 240, 480, 900, 1800},
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clipnetic_active_jobs",
			Help: "Requests currently being processed",
		}),
	}
	m.registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.rejectedTotal,
		m.jobsTotal,
		m.clipsTotal,
		m.jobDuration,
		m.activeJobs,
	)
	return m
}

var _ usecase.Recorder = (*Metrics)(nil)

func (m *Metrics) ClipFinished(status types.ClipStatus, stage usecase.Stage) {
	m.clipsTotal.WithLabelValues(string(status), string(stage)).Inc()
}

// JobStarted marks a request as running and returns the func that records
// its outcome; outcome is "ok" or an error class such as "retrieval".
func (m *Metrics) JobStarted() func(outcome string) {
	start := time.Now()
	m.activeJobs.Inc()
	return func(outcome string) {
		m.activeJobs.Dec()
		m.jobDuration.Observe(time.Since(start).Seconds())
		m.jobsTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncRequests() { m.requestsTotal.Inc() }

func (m *Metrics) IncErrors() { m.errorsTotal.Inc() }

func (m *Metrics) IncBusy() { m.rejectedTotal.Inc() }

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
