package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  route,
			"status": strconv.Itoa(c.Response().StatusCode()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// DomainMetrics counts import and outreach events. It satisfies businessflow.DomainMetrics.
type DomainMetrics struct {
	contactsImported   prometheus.Counter
	rowsSkipped        prometheus.Counter
	messagesSent       prometheus.Counter
	statusUpdateFailed prometheus.Counter
}

// NewDomainMetrics registers the domain counters on reg
func NewDomainMetrics(reg prometheus.Registerer) *DomainMetrics {
	factory := promauto.With(reg)
	return &DomainMetrics{
		contactsImported: factory.NewCounter(prometheus.CounterOpts{
			Name: "humanflow_contacts_imported_total",
			Help: "Prospects extracted from confirmed imports",
		}),
		rowsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "humanflow_rows_skipped_total",
			Help: "Workbook rows dropped for lacking a valid phone",
		}),
		messagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "humanflow_messages_sent_total",
			Help: "Message links generated",
		}),
		statusUpdateFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "humanflow_status_updates_failed_total",
			Help: "Contact status writes that failed or were dropped",
		}),
	}
}

func (m *DomainMetrics) ContactsImported(n int) { m.contactsImported.Add(float64(n)) }

func (m *DomainMetrics) RowsSkipped(n int) { m.rowsSkipped.Add(float64(n)) }

func (m *DomainMetrics) MessageSent() { m.messagesSent.Inc() }

func (m *DomainMetrics) StatusUpdateFailed() { m.statusUpdateFailed.Inc() }
