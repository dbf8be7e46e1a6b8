package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/bioconvert/internal/convert"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitRejected *prometheus.CounterVec
	queueEnqueued     *prometheus.CounterVec
	conversionsTotal  *prometheus.CounterVec
	entriesTotal      *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bioconvert_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bioconvert_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bioconvert_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		queueEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bioconvert_queue_jobs_enqueued_total",
			Help: "Total conversion jobs enqueued.",
		}, []string{"queue"}),
		conversionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bioconvert_api_conversions_total",
			Help: "Synchronous conversion batches by formats and result code.",
		}, []string{"source_format", "target_format", "code"}),
		entriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bioconvert_api_converted_entries_total",
			Help: "Records converted by successful synchronous batches.",
		}, []string{"source_format", "target_format"}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.queueEnqueued,
		m.conversionsTotal,
		m.entriesTotal,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// observeConversion labels by format token only when the token is recognised,
// keeping label cardinality bounded.
func (m *metrics) observeConversion(source, target string, entries int, err error) {
	source, target = formatLabel(source, true), formatLabel(target, false)
	code := "ok"
	if err != nil {
		code = convert.CodeOf(err)
	}
	m.conversionsTotal.WithLabelValues(source, target, code).Inc()
	if err == nil {
		m.entriesTotal.WithLabelValues(source, target).Add(float64(entries))
	}
}

func formatLabel(token string, source bool) string {
	var err error
	if source {
		_, err = convert.ResolveSource(token)
	} else {
		_, err = convert.ResolveTarget(token)
	}
	if err != nil {
		return "invalid"
	}
	return token
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/jobs/") && strings.HasSuffix(path, "/result"):
		return "/v1/jobs/{id}/result"
	case strings.HasPrefix(path, "/v1/jobs/"):
		return "/v1/jobs/{id}"
	case path == "/v1/jobs", path == "/v1/convert", path == "/healthz", path == "/metrics":
		return path
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
