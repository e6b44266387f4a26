package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "frontdesk_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Signup counter
	SignupCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "frontdesk_signup_total",
			Help: "Total number of client signups",
		},
	)

	// Booking request counter
	BookingCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "frontdesk_booking_requests_total",
			Help: "Total number of booking requests submitted from the marketing site",
		},
	)

	// Lead conversion counter
	ConversionCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "frontdesk_lead_conversions_total",
			Help: "Total number of leads converted into practices",
		},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_auth_errors_total",
			Help: "Total number of authentication and authorization errors",
		},
		[]string{"type"}, // "invalid_token", "not_admin", "tenant_unresolved", etc.
	)

	// Admin gate rejections. Transient admin-lookup failures land here too;
	// they are indistinguishable from real unauthorized attempts without the
	// request logs.
	AdminRejectCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_admin_rejections_total",
			Help: "Total number of requests turned away at the admin boundary",
		},
		[]string{"reason"},
	)

	// Saga step and compensation counters
	SagaCompensationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontdesk_saga_compensations_total",
			Help: "Total number of saga compensation runs by outcome",
		},
		[]string{"saga", "outcome"}, // outcome: "compensated", "compensation_failed"
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "frontdesk_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "frontdesk_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// Active sessions
	ActiveSessionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "frontdesk_active_sessions",
			Help: "Number of currently active sessions",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "frontdesk_info",
			Help: "Information about the frontdesk service",
		},
		[]string{"version"},
	)

	// Active practices
	ActivePracticesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "frontdesk_active_practices",
			Help: "Number of practices with active status",
		},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(SignupCounter)
	prometheus.MustRegister(BookingCounter)
	prometheus.MustRegister(ConversionCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(AdminRejectCounter)
	prometheus.MustRegister(SagaCompensationCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(ActiveSessionsGauge)
	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(ActivePracticesGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordAdminRejection records a request turned away at the admin boundary
func RecordAdminRejection(reason string) {
	AdminRejectCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordSagaCompensation records a saga compensation run
func RecordSagaCompensation(saga, outcome string) {
	SagaCompensationCounter.With(prometheus.Labels{"saga": saga, "outcome": outcome}).Inc()
}

// IncreaseActiveSessions increments the active sessions gauge
func IncreaseActiveSessions() {
	ActiveSessionsGauge.Inc()
}

// DecreaseActiveSessions decrements the active sessions gauge
func DecreaseActiveSessions() {
	ActiveSessionsGauge.Dec()
}

// UpdateActivePractices updates the active practices gauge
func UpdateActivePractices(count int) {
	ActivePracticesGauge.Set(float64(count))
}
