package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
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

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the last readiness check succeeded.",
	})
)

// Domain metrics
var (
	accessDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Navigation gate decisions by route class and outcome.",
		},
		[]string{"route_class", "outcome"},
	)

	approvalActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_actions_total",
			Help: "Approve/reject operations by action and result.",
		},
		[]string{"action", "result"},
	)

	emailSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_sends_total",
			Help: "Transactional email sends by kind and result.",
		},
		[]string{"kind", "result"},
	)

	geocodeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_requests_total",
			Help: "Geocoding lookups by source (cache, upstream) and result.",
		},
		[]string{"source", "result"},
	)
)

var initOnce sync.Once

// Init registers metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration, readyGauge,
			accessDecisions, approvalActions, emailSends, geocodeRequests,
		)
	})
}

// Handler exposes the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records RPS, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// knownPrefixes keeps the path label bounded; anything below them collapses to "<prefix>/*".
var knownPrefixes = []string{
	"/dashboard", "/chart", "/predictions", "/dasha", "/birth-data", "/admin",
}

var knownPaths = map[string]struct{}{
	"/":                        {},
	"/healthz":                 {},
	"/readyz":                  {},
	"/metrics":                 {},
	"/v1/info":                 {},
	"/auth/login":              {},
	"/auth/pending":            {},
	"/auth/rejected":           {},
	"/auth/callback":           {},
	"/auth/logout":             {},
	"/auth/verify":             {},
	"/api/admin/users":         {},
	"/api/admin/approve-user":  {},
	"/api/admin/reject-user":   {},
	"/api/auth/register":       {},
	"/api/auth/verify":         {},
	"/api/places/autocomplete": {},
	"/api/places/details":      {},
}

// CanonicalPath maps a request path to a bounded metric label.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	if _, ok := knownPaths[p]; ok {
		return p
	}
	for _, prefix := range knownPrefixes {
		if p == prefix {
			return p
		}
		if strings.HasPrefix(p, prefix+"/") {
			return prefix + "/*"
		}
	}
	if strings.HasPrefix(p, "/_") {
		return "/_/*"
	}
	return "other"
}

// SetReady records the outcome of the latest readiness check.
func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// ObserveAccessDecision counts one gate decision.
func ObserveAccessDecision(routeClass, outcome string) {
	accessDecisions.WithLabelValues(routeClass, outcome).Inc()
}

// ObserveApproval counts one approve/reject call.
func ObserveApproval(action, result string) {
	approvalActions.WithLabelValues(action, result).Inc()
}

// ObserveEmail counts one email send attempt.
func ObserveEmail(kind, result string) {
	emailSends.WithLabelValues(kind, result).Inc()
}

// ObserveGeocode counts one geocoding lookup.
func ObserveGeocode(source, result string) {
	geocodeRequests.WithLabelValues(source, result).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
