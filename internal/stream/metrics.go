package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "buddyway_connections_active",
		Help: "Live websocket connections",
	})

	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buddyway_events_total",
		Help: "Inbound protocol events by type",
	}, []string{"event"})

	metricBadEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buddyway_events_rejected_total",
		Help: "Inbound messages dropped for malformed framing",
	})
)
