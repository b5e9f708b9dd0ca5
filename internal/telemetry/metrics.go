// Package telemetry declares the process-wide Prometheus metrics, grounded
// on the module-level metrics variable pattern used across the retrieved
// dependency pack (package-level prometheus.Collector vars plus an All()
// slice for registration).
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var CoordinatorTasksSpawnedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "yourmoment",
		Subsystem: "coordinator",
		Name:      "tasks_spawned_total",
		Help:      "Total number of stage tasks spawned by the coordinator, by stage.",
	},
	[]string{"stage"},
)

var CoordinatorTasksSkippedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "yourmoment",
		Subsystem: "coordinator",
		Name:      "tasks_skipped_total",
		Help:      "Total number of coordinator ticks that skipped spawning because a task was already in flight.",
	},
	[]string{"stage"},
)

var StageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "yourmoment",
		Subsystem: "stage",
		Name:      "duration_seconds",
		Help:      "Stage task run duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"stage"},
)

var StageErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "yourmoment",
		Subsystem: "stage",
		Name:      "errors_total",
		Help:      "Total number of work record failures by stage and error kind.",
	},
	[]string{"stage", "kind"},
)

var TimeoutsEnforcedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "yourmoment",
		Subsystem: "timeout",
		Name:      "enforced_total",
		Help:      "Total number of in-flight stage tasks revoked for exceeding their process's max duration.",
	},
	[]string{"stage"},
)

var QueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "yourmoment",
		Subsystem: "broker",
		Name:      "queue_depth",
		Help:      "Approximate number of pending tasks per broker queue.",
	},
	[]string{"queue"},
)

// All returns every yourmoment metric for registration with a
// prometheus.Registerer.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		CoordinatorTasksSpawnedTotal,
		CoordinatorTasksSkippedTotal,
		StageDuration,
		StageErrorsTotal,
		TimeoutsEnforcedTotal,
		QueueDepth,
	}
}
