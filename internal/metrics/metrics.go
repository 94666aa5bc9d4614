package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postback",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "postback",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route"},
	)

	postbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postback",
			Subsystem: "ingest",
			Name:      "postbacks_total",
			Help:      "Postbacks received, by outcome.",
		},
		[]string{"outcome"},
	)

	leads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "postback",
			Subsystem: "ingest",
			Name:      "leads_captured_total",
			Help:      "sub6 values appended to the ledger.",
		},
	)

	aggregateWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postback",
			Subsystem: "ingest",
			Name:      "aggregate_writes_total",
			Help:      "Daily aggregate updates, by campaign group.",
		},
		[]string{"group"},
	)

	writeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postback",
			Subsystem: "ingest",
			Name:      "write_errors_total",
			Help:      "Failed file or database writes, by target.",
		},
		[]string{"target"},
	)

	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "postback",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Daily job executions, by job and status.",
		},
		[]string{"job", "status"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		postbacks,
		leads,
		aggregateWrites,
		writeErrors,
		jobRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency per chi route pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func RecordPostback(outcome string) {
	postbacks.WithLabelValues(outcome).Inc()
}

func RecordLead() {
	leads.Inc()
}

func RecordAggregateWrite(group string) {
	aggregateWrites.WithLabelValues(group).Inc()
}

func RecordWriteError(target string) {
	writeErrors.WithLabelValues(target).Inc()
}

func RecordJobRun(job, status string) {
	jobRuns.WithLabelValues(job, status).Inc()
}
