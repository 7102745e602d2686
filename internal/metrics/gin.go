package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests that hit no registered route, so probing scanners
// cannot blow up the path label.
const unmatchedRoute = "unmatched"

var (
	httpRequestSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API latency by route template and status class.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "class"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route template and exact status.",
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "API requests currently being served.",
		},
	)
)

// skipRoutes are not measured.
var skipRoutes = map[string]bool{
	"/metrics": true,
	"/health":  true,
}

// GinMiddleware measures every API request by route template. Long-lived
// websocket upgrades are counted but do not feed the latency histogram.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if skipRoutes[route] {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()
		method := c.Request.Method

		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		if c.IsWebsocket() {
			return
		}
		httpRequestSeconds.WithLabelValues(method, route, statusClass(status)).Observe(time.Since(start).Seconds())
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
