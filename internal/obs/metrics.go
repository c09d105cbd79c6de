package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "securemind_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securemind_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "securemind_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	claimPropagationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securemind_claim_propagation_total",
			Help: "Role propagations by outcome.",
		},
		[]string{"outcome"},
	)

	reconcileRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securemind_reconcile_repairs_total",
			Help: "Claim/profile divergences repaired, by the side that was rewritten.",
		},
		[]string{"target"},
	)

	notificationsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securemind_notifications_written_total",
			Help: "Notification records committed, by kind.",
		},
		[]string{"kind"},
	)

	gateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securemind_gate_decisions_total",
			Help: "Authorization gate decisions by state and role source.",
		},
		[]string{"state", "source"},
	)

	registerOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight,
			httpRequestsTotal,
			httpRequestDuration,
			claimPropagationTotal,
			reconcileRepairsTotal,
			notificationsWrittenTotal,
			gateDecisionsTotal,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records in-flight count, totals and latency per route pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

func ClaimPropagation(outcome string) {
	claimPropagationTotal.WithLabelValues(outcome).Inc()
}

func ReconcileRepair(target string) {
	reconcileRepairsTotal.WithLabelValues(target).Inc()
}

func NotificationsWritten(kind string, n int) {
	notificationsWrittenTotal.WithLabelValues(kind).Add(float64(n))
}

func GateDecision(state, source string) {
	gateDecisionsTotal.WithLabelValues(state, source).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
