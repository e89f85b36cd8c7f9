package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the bridge's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "payroll_bridge",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payroll_bridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payroll_bridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "route"},
	)

	cliInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payroll_bridge",
			Subsystem: "cli",
			Name:      "invocations_total",
			Help:      "Total number of external CLI invocations by contract function and outcome.",
		},
		[]string{"function", "outcome"},
	)

	cliDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payroll_bridge",
			Subsystem: "cli",
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of external CLI invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"function"},
	)

	payrollPayments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payroll_bridge",
			Subsystem: "payroll",
			Name:      "payments_total",
			Help:      "Per-employee payments attempted by bulk payroll runs.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		cliInvocations,
		cliDuration,
		payrollPayments,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routePattern(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordInvocation records one external CLI run. outcome is "ok", "stderr" or "failed".
func RecordInvocation(function, outcome string, duration time.Duration) {
	if function == "" {
		function = "unknown"
	}
	cliInvocations.WithLabelValues(function, outcome).Inc()
	cliDuration.WithLabelValues(function).Observe(duration.Seconds())
}

// RecordPayment counts one per-employee outcome of a bulk payroll run.
func RecordPayment(status string) {
	payrollPayments.WithLabelValues(status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// routePattern keeps label cardinality bounded: /api/employee/G... is
// reported as /api/employee/{address}.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
