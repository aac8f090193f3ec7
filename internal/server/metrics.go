package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics tracks API traffic and narrative generation.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	MemoDuration    prometheus.Histogram
	MemoFailures    prometheus.Counter
}

// NewMetrics registers the API metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fiscal_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		}, []string{"route", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fiscal_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: latencyBuckets,
		}, []string{"route"}),
		MemoDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fiscal_memo_duration_seconds",
			Help:    "Duration of narrative memo generation",
			Buckets: latencyBuckets,
		}),
		MemoFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "fiscal_memo_failures_total",
			Help: "Narrative memo requests that returned an error",
		}),
	}
}

// ObserveMemo records one memo generation. Call with time.Now() at the start.
func (m *Metrics) ObserveMemo(start time.Time, err error) {
	if m == nil {
		return
	}
	m.MemoDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.MemoFailures.Inc()
	}
}

// instrument records request counts and latency keyed by the chi route pattern.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
