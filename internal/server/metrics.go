package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broadcast origins used as the "origin" label on chat_broadcasts_total.
const (
	originClient   = "client"
	originOperator = "operator"
)

// Metrics holds the Prometheus collectors describing chat traffic.
type Metrics struct {
	openConnections  prometheus.Gauge
	logins           prometheus.Counter
	duplicateLogins  prometheus.Counter
	broadcasts       *prometheus.CounterVec
	deliveryFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		openConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "open_connections",
			Help:      "Number of client connections currently registered",
		}),
		logins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "logins_total",
			Help:      "Total number of successful logins",
		}),
		duplicateLogins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "duplicate_logins_total",
			Help:      "Total number of connections closed for logging in twice",
		}),
		broadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "broadcasts_total",
			Help:      "Total number of messages broadcast to all connections",
		}, []string{"origin"}),
		deliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "delivery_failures_total",
			Help:      "Total number of per-recipient broadcast sends that failed",
		}),
	}
}
