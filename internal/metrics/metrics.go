package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event lifecycle metrics
	EventsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_events_created_total",
			Help: "Total number of events ingested",
		},
		[]string{"persisted"},
	)

	EventsAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_events_acknowledged_total",
			Help: "Total number of events acknowledged",
		},
	)

	PayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inbox_event_payload_bytes",
			Help:    "Serialized payload size of accepted events",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		},
	)

	// Storage metrics
	StoreFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_store_fallbacks_total",
			Help: "Storage failures absorbed into a degraded response",
		},
		[]string{"operation"},
	)

	// HTTP metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

// Middleware records request counts and latency by matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
