// Package transport implements the inbound HTTP adapter for the MCP
// engine: the /mcp multiplexer carrying WebSocket and request/response
// traffic, the /health probe, and the /metrics endpoint.
package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the transport. Pass the
// same instance to every component that records.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	NotificationsTotal *prometheus.CounterVec
	WSConnections      prometheus.Gauge
	MessagesTooLarge   prometheus.Counter
}

// NewMetrics creates and registers the transport metrics with reg. The
// active-session gauge is registered separately via RegisterSessionGauge
// because it reads live registry state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "conduit",
				Name:      "requests_total",
				Help:      "Total number of MCP requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "conduit",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		NotificationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "conduit",
				Name:      "notifications_total",
				Help:      "Total server-to-client notifications delivered",
			},
			[]string{"method"},
		),
		WSConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "conduit",
				Name:      "websocket_connections",
				Help:      "Open WebSocket connections",
			},
		),
		MessagesTooLarge: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "conduit",
				Name:      "messages_too_large_total",
				Help:      "Inbound messages rejected by the size cap",
			},
		),
	}
}

// RegisterSessionGauge exposes live session count from fn as a gauge.
func RegisterSessionGauge(reg prometheus.Registerer, fn func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "conduit",
			Name:      "active_sessions",
			Help:      "Number of active sessions",
		},
		func() float64 { return float64(fn()) },
	))
}
