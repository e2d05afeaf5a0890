// Package metrics declares the prometheus collectors shared by the store and
// the fan-out service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FanoutWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fanout_writes_total",
			Help: "Multi-path writes issued by the fan-out service",
		},
		[]string{"operation", "status"},
	)

	FanoutPaths = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_fanout_paths",
			Help:    "Number of store paths touched by one fan-out write",
			Buckets: []float64{1, 2, 4, 8, 16, 64, 256, 1024, 4096},
		},
		[]string{"operation"},
	)

	StoreSubscriptions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_store_subscriptions",
			Help: "Live store subscriptions",
		},
		[]string{"backend"},
	)

	StoreRefreshErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_store_refresh_errors_total",
			Help: "Failed snapshot re-reads for live subscriptions",
		},
		[]string{"backend"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordFanout counts one fan-out write and the paths it touched.
func RecordFanout(operation string, paths int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	FanoutWritesTotal.WithLabelValues(operation, status).Inc()
	FanoutPaths.WithLabelValues(operation).Observe(float64(paths))
}

// Middleware records request count and latency per route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}

			httpRequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
