package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExportsCurrentlyRunning tracks the number of exports being executed
	ExportsCurrentlyRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "export_jobs_currently_running",
		Help: "The number of export jobs currently being executed",
	})

	// ExportsTotal counts finished exports by type and final status
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_jobs_total",
		Help: "Finished export jobs by type and final status",
	}, []string{"export_type", "status"})

	// ExportDuration observes wall-clock export duration by type
	ExportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "export_job_duration_seconds",
		Help:    "Export job duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"export_type"})
)
