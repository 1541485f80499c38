// Package metrics holds the Prometheus collectors of the runtime and its
// debug console. They register with the default registry and are served by
// the console's /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts jobs handed to the environment.
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlaunch_jobs_submitted_total",
			Help: "Total number of submitted jobs",
		},
		[]string{"kind"},
	)
	// JobsCompleted counts jobs that reached a terminal status.
	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlaunch_jobs_completed_total",
			Help: "Total number of completed jobs",
		},
		[]string{"kind", "status"},
	)
	// JobDuration is the run time of completed jobs.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlaunch_job_duration_seconds",
			Help:    "Job run time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	// JobsRunning is the number of jobs currently executing.
	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlaunch_jobs_running",
			Help: "Number of jobs currently executing",
		},
	)
	// CheckpointsTotal counts checkpoint attempts.
	CheckpointsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlaunch_checkpoints_total",
			Help: "Total number of checkpoint attempts",
		},
		[]string{"status"},
	)
	// RequestTotal counts console requests by method and route.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlaunch_console_requests_total",
			Help: "Total number of debug console requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of console requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlaunch_console_request_duration_seconds",
			Help:    "Debug console request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// GatewayRequests counts gateway RPCs by method and status code.
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlaunch_gateway_requests_total",
			Help: "Total number of SQL gateway requests",
		},
		[]string{"method", "code"},
	)
)
