package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BFF HTTP metrics
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Upstream service metrics
var (
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Requests issued to the student, course and enrollment services.",
		},
		[]string{"service", "status"},
	)

	upstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	aggregateFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregate_failures_total",
			Help: "Aggregation queries aborted because an upstream branch failed.",
		},
		[]string{"query"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_ready",
		Help: "1 when every upstream service answered the last readiness probe.",
	})
)

var initOnce sync.Once

// Init registers the portal metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			upstreamRequestsTotal, upstreamRequestDuration, aggregateFailures, readyGauge,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument measures RPS, latency and in-flight requests of next.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// ObserveUpstream records one upstream call. status is the HTTP code, or 0 on transport failure.
func ObserveUpstream(service string, status int, d time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	upstreamRequestsTotal.WithLabelValues(service, label).Inc()
	upstreamRequestDuration.WithLabelValues(service).Observe(d.Seconds())
}

// AggregateFailed counts an aborted aggregation query.
func AggregateFailed(query string) {
	aggregateFailures.WithLabelValues(query).Inc()
}

// SetReady publishes the readiness probe outcome.
func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
