package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Joins counts successful room joins.
	Joins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_joins_total",
		Help: "Successful room joins.",
	})

	// Relays counts forwarded negotiation messages by kind.
	Relays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_relays_total",
		Help: "Relayed negotiation messages.",
	}, []string{"kind"})

	// Errors counts error events sent back to clients.
	Errors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_errors_total",
		Help: "Error events emitted to clients.",
	})

	// ActiveConnections tracks currently open websocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_active_connections",
		Help: "Open signaling connections.",
	})
)

// Handler exposes Prometheus metrics at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
