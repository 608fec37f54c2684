package telemetry

import "github.com/prometheus/client_golang/prometheus"

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "devicefabric",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

var AlertsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "devicefabric",
		Subsystem: "alerts",
		Name:      "created_total",
		Help:      "Total number of alerts created, by severity.",
	},
	[]string{"severity"},
)

var AlertsSuppressedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "devicefabric",
		Subsystem: "alerts",
		Name:      "suppressed_total",
		Help:      "Total number of alert triggers suppressed by the single-active invariant.",
	},
)

var AlertsEscalatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "devicefabric",
		Subsystem: "escalation",
		Name:      "advanced_total",
		Help:      "Total number of escalation level advances, by level.",
	},
	[]string{"level"},
)

var RotationsTimedOutTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "devicefabric",
		Subsystem: "registry",
		Name:      "rotations_timed_out_total",
		Help:      "Total number of credential rotations that timed out waiting for device ack.",
	},
)

var BrokerReconciliationDiffsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "devicefabric",
		Subsystem: "brokerauth",
		Name:      "reconciliation_diffs_total",
		Help:      "Total number of credential upserts/deletes applied by the reconciliation loop, by action.",
	},
	[]string{"action"},
)

var DevicesOnlineGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "devicefabric",
		Subsystem: "session",
		Name:      "devices_online",
		Help:      "Current number of devices considered online by the heartbeat map.",
	},
)

// All returns every device-fabric-specific metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		AlertsCreatedTotal,
		AlertsSuppressedTotal,
		AlertsEscalatedTotal,
		RotationsTimedOutTotal,
		BrokerReconciliationDiffsTotal,
		DevicesOnlineGauge,
	}
}
