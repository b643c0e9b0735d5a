package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: responses served straight from the query cache.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_cache_hits_total",
			Help: "Total number of query cache hits.",
		},
	)

	// Counter: cache misses that went on to invoke the generators.
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_cache_misses_total",
			Help: "Total number of query cache misses.",
		},
	)

	// Counter: a fingerprint was stored twice with divergent payloads.
	CacheConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_cache_conflicts_total",
			Help: "Total number of conflicting cache stores (same fingerprint, different payload).",
		},
	)

	// Histogram: cache lookup latency in seconds.
	CacheLookupSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_cache_lookup_seconds",
			Help:    "Query cache lookup latency in seconds.",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		},
	)

	// Histogram: generator invocation latency, labelled by path.
	GeneratorLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_generator_latency_seconds",
			Help:    "Generator invocation latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"path", "outcome"},
	)

	// Histogram: service HTTP latency in seconds.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_latency_seconds",
			Help:    "HTTP request latency for the chat service in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		CacheConflictsTotal,
		CacheLookupSeconds,
		GeneratorLatencySeconds,
		HTTPLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveGenerator records one generator invocation.
func ObserveGenerator(path string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	GeneratorLatencySeconds.WithLabelValues(path, outcome).Observe(d.Seconds())
}

// Middleware measures HTTP latency for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		HTTPLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
