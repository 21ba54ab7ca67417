package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beacon_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	authorizationChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_authorization_checks_total",
			Help: "Authorization checks by observed status",
		},
		[]string{"status"},
	)

	authorizationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_authorization_requests_total",
			Help: "Permission requests issued to the platform by outcome",
		},
		[]string{"outcome"},
	)

	notificationsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_notifications_scheduled_total",
			Help: "Notifications submitted by backend",
		},
		[]string{"backend"},
	)

	submissionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_submission_failures_total",
			Help: "Notification submissions rejected by the platform",
		},
		[]string{"backend"},
	)

	rearms = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_rearms_total",
			Help: "Re-submissions of repeating notifications by result",
		},
		[]string{"result"},
	)

	eventsForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_events_forwarded_total",
			Help: "Delegate events forwarded to host handlers",
		},
		[]string{"event"},
	)

	notificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_notifications_delivered_total",
			Help: "Notifications handed to the delegate by backend",
		},
		[]string{"backend"},
	)

	deliveryLag = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beacon_delivery_lag_seconds",
			Help:    "Time between a notification's fire date and its delivery",
			Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60},
		},
	)

	rateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beacon_rate_limit_rejections_total",
			Help: "Requests rejected by rate limiter",
		},
		[]string{"key"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordAuthorizationCheck(status string) {
	authorizationChecks.WithLabelValues(status).Inc()
}

// RecordAuthorizationRequest records a platform permission request.
// outcome is one of granted, refused, error.
func RecordAuthorizationRequest(outcome string) {
	authorizationRequests.WithLabelValues(outcome).Inc()
}

func RecordScheduled(backend string) {
	notificationsScheduled.WithLabelValues(backend).Inc()
}

func RecordSubmissionFailure(backend string) {
	submissionFailures.WithLabelValues(backend).Inc()
}

// RecordRearm records a re-arm attempt; result is ok or error.
func RecordRearm(result string) {
	rearms.WithLabelValues(result).Inc()
}

func RecordEventForwarded(event string) {
	eventsForwarded.WithLabelValues(event).Inc()
}

// RecordDelivered records a delivery and how late it was.
func RecordDelivered(backend string, lag time.Duration) {
	notificationsDelivered.WithLabelValues(backend).Inc()
	if lag < 0 {
		lag = 0
	}
	deliveryLag.Observe(lag.Seconds())
}

// RecordRateLimitRejection records a rate limit rejection
func RecordRateLimitRejection(key string) {
	rateLimitRejections.WithLabelValues(key).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request metrics labelled by the chi route pattern, so
// path parameters don't explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		RecordRequest(r.Method, route, wrapped.status, time.Since(start))
	})
}
