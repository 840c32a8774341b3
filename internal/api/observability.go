package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

var (
	reqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docproc",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	reqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docproc", Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"method", "path", "status"},
	)
	// External ops: processor calls and blob uploads
	externalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "docproc", Name: "external_op_duration_seconds", Help: "Duration of external operations", Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}},
		[]string{"op", "outcome"},
	)
	externalTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docproc", Name: "external_op_total", Help: "Total external operations"},
		[]string{"op", "outcome"},
	)
	breakerOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "docproc", Name: "circuit_breaker_open", Help: "Circuit breaker state: 1=open, 0=closed"},
		[]string{"breaker"},
	)
	loginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docproc", Name: "logins_total", Help: "Login attempts by outcome"},
		[]string{"outcome"},
	)
	historyLoggedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docproc", Name: "history_logged_total", Help: "History rows written by request type and status"},
		[]string{"request_type", "status"},
	)
	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docproc", Name: "sessions_expired_total", Help: "Sessions deactivated by the sweeper"},
	)
)

func init() {
	prometheus.MustRegister(reqDuration, reqTotal, externalDuration, externalTotal, breakerOpen, loginTotal, historyLoggedTotal, sessionsExpiredTotal)
}

// MetricsMiddleware records basic HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start).Seconds()
		status := toStr(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		observer := reqDuration.WithLabelValues(c.Request.Method, path, status)
		// attach exemplar with trace_id if present
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			if eo, ok := observer.(prometheus.ExemplarObserver); ok {
				eo.ObserveWithExemplar(dur, prometheus.Labels{"trace_id": sc.TraceID().String()})
			} else {
				observer.Observe(dur)
			}
		} else {
			observer.Observe(dur)
		}
		reqTotal.With(prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}).Inc()
	}
}

func toStr(i int) string { return strconv.Itoa(i) }

// RecordExternalOp records an external operation metric with duration and outcome
func RecordExternalOp(op string, dur time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	externalDuration.WithLabelValues(op, outcome).Observe(dur.Seconds())
	externalTotal.WithLabelValues(op, outcome).Inc()
}

// SetBreakerState updates the breaker state gauge (1=open, 0=closed)
func SetBreakerState(name string, open bool) {
	if open {
		breakerOpen.WithLabelValues(name).Set(1)
	} else {
		breakerOpen.WithLabelValues(name).Set(0)
	}
}

// RecordLogin counts a login attempt: success, rejected or error.
func RecordLogin(outcome string) { loginTotal.WithLabelValues(outcome).Inc() }

// RecordHistoryLogged counts a written history row.
func RecordHistoryLogged(requestType, status string) {
	historyLoggedTotal.WithLabelValues(requestType, status).Inc()
}
