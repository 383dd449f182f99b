// Package metrics declares the controller's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdc_jobs_total",
			Help: "Total number of jobs by type and terminal status",
		},
		[]string{"type", "status"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sdc_job_duration_seconds",
			Help:    "Job wall-clock duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	Blocked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sdc_blocked",
			Help: "Whether the block gate is currently active (1 = blocked, 0 = not blocked)",
		},
	)

	HostsyncUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdc_hostsync_updates_total",
			Help: "Total hosts-file update attempts by result",
		},
		[]string{"result"},
	)

	HostsyncLastUpdateTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sdc_hostsync_last_update_timestamp_seconds",
			Help: "Unix timestamp of the last successful hosts-file update",
		},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sdc_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by method, request path, and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(Blocked)
	prometheus.MustRegister(HostsyncUpdatesTotal)
	prometheus.MustRegister(HostsyncLastUpdateTimestamp)
	prometheus.MustRegister(HTTPRequestDuration)
}

// Handler exposes the registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Start returns the instant the timer was created.
func (t *Timer) Start() time.Time {
	return t.start
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
