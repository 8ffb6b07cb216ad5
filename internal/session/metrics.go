package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "buddyway_sessions_active",
		Help: "Sessions currently held in the table, grace periods included",
	})

	metricExpiredSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buddyway_sessions_expired_total",
		Help: "Sessions reclaimed by the expiry sweeper",
	})

	metricSnapshotWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buddyway_snapshot_writes_total",
		Help: "Durable snapshot writes",
	})

	metricSnapshotErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buddyway_snapshot_errors_total",
		Help: "Failed durable snapshot writes",
	})
)
