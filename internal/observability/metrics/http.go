package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	rebuildsTotal      *prometheus.CounterVec
	retrievalTotal     *prometheus.CounterVec
	retrievalChunks    prometheus.Histogram
	retrievalDuration  prometheus.Histogram
	ingestedChunkTotal prometheus.Counter
}

func NewServerMetrics(service string) *ServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	rebuildsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "index_rebuilds_total",
			Help:      "Index rebuilds by index kind and outcome.",
		},
		[]string{"service", "index", "status"},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Hybrid retrieval queries by outcome.",
		},
		[]string{"service", "status"},
	)
	retrievalChunks := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "fused_chunks",
			Help:      "Number of chunks returned per hybrid query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "retrieval",
			Name:      "query_duration_seconds",
			Help:      "Hybrid retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ingestedChunkTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total chunks appended to the corpus.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		rebuildsTotal,
		retrievalTotal,
		retrievalChunks,
		retrievalDuration,
		ingestedChunkTotal,
	)

	return &ServerMetrics{
		registry: registry,
		service:  service,

		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,

		rebuildsTotal:      rebuildsTotal,
		retrievalTotal:     retrievalTotal,
		retrievalChunks:    retrievalChunks,
		retrievalDuration:  retrievalDuration,
		ingestedChunkTotal: ingestedChunkTotal,
	}
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ServerMetrics) ObserveRebuild(index string, ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.rebuildsTotal.WithLabelValues(m.service, index, status).Inc()
}

func (m *ServerMetrics) ObserveRetrieval(chunks int, duration time.Duration, ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.retrievalTotal.WithLabelValues(m.service, status).Inc()
	m.retrievalChunks.Observe(float64(chunks))
	m.retrievalDuration.Observe(duration.Seconds())
}

func (m *ServerMetrics) ObserveIngestedChunks(n int) {
	m.ingestedChunkTotal.Add(float64(n))
}

// Middleware records request counters and latency per normalized route.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		path := normalizePath(r.URL.Path)
		m.requestTotal.WithLabelValues(
			m.service, r.Method, path, strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).
			Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses document ids so the path label stays low-cardinality.
func normalizePath(path string) string {
	const docsPrefix = "/v1/documents/"
	if len(path) > len(docsPrefix) && path[:len(docsPrefix)] == docsPrefix {
		return docsPrefix + ":id"
	}
	return path
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
