// internal/httpserver/metrics.go
//
// Prometheus metrics, registered on the default registry and served at
// /metrics.

package httpserver

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Page metrics
	sectionViews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_section_views_total",
			Help: "Navigations that changed the visible section",
		},
		[]string{"section"},
	)

	gamesFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_games_finished_total",
			Help: "Finished mini-games by outcome",
		},
		[]string{"game", "outcome"},
	)

	workspacesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portfolio_workspaces_created_total",
			Help: "Visitor workspaces created",
		},
	)

	snakeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portfolio_snake_ws_connections",
			Help: "Open snake WebSocket connections",
		},
	)
)

func recordRequest(method, path string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
