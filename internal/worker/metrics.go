package worker

import (
	"net/http"

	"github.com/dunamismax/bioconvert/internal/convert"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry      *prometheus.Registry
	jobsTotal     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	activeJobs    prometheus.Gauge
	entriesTotal  *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bioconvert_worker_jobs_total",
			Help: "Total worker jobs by source format and final status.",
		}, []string{"source_format", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bioconvert_worker_job_duration_seconds",
			Help:    "Total processing duration for each worker job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_format", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bioconvert_worker_active_jobs",
			Help: "Current number of jobs being converted.",
		}),
		entriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bioconvert_worker_converted_entries_total",
			Help: "Records converted by successful jobs.",
		}, []string{"source_format", "target_format"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bioconvert_worker_conversion_failures_total",
			Help: "Jobs that failed conversion, by error code.",
		}, []string{"code"}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.entriesTotal,
		m.failuresTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// formatLabel collapses unrecognised source tokens so label cardinality stays
// bounded.
func formatLabel(token string) string {
	if _, err := convert.ResolveSource(token); err != nil {
		return "invalid"
	}
	return token
}
