package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus instruments. Each server owns
// a private registry so independent instances (tests included) never
// collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	FramesSent        prometheus.Counter
	FramesReceived    prometheus.Counter
	CommandsDropped   prometheus.Counter
}

// NewMetrics creates the instrument set on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "diffodil_ws_connections_total",
			Help: "Websocket connections accepted since start.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "diffodil_ws_connections_active",
			Help: "Currently open websocket connections.",
		}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "diffodil_ws_frames_sent_total",
			Help: "Outbound websocket frames, batched deliveries counted once.",
		}),
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "diffodil_ws_frames_received_total",
			Help: "Inbound websocket frames.",
		}),
		CommandsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "diffodil_ws_commands_dropped_total",
			Help: "Client commands discarded as unknown or malformed.",
		}),
	}
}

// Handler serves the /metrics scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
