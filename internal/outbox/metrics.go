package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Attendance events published to Kafka, by topic.",
	}, []string{"topic"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Attendance events whose batch failed delivery, by failure kind.",
	}, []string{"kind"})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Attendance events parked in outbox_dlq.",
	}, []string{"topic", "kind"})

	schemaLookupCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "outbox",
		Name:      "schema_lookups_total",
		Help:      "Schema id resolutions, split by whether the registry was called.",
	}, []string{"source"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "attendance_service",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time from claiming an outbox batch to stamping it published.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	markedPublishedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "outbox",
		Name:      "events_marked_published_total",
		Help:      "Outbox rows stamped with published_at, parked rows included.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, dlqCounter, schemaLookupCounter, batchDuration, markedPublishedCounter)
}
