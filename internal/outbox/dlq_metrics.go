package outbox

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

type dlqOutcome string

const (
	outcomeRequeued    dlqOutcome = "requeued"
	outcomeRetry       dlqOutcome = "retry_scheduled"
	outcomeQuarantined dlqOutcome = "quarantined"
)

var (
	dlqOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "dlq",
		Name:      "entries_handled_total",
		Help:      "DLQ entries handled by the replay manager, by outcome.",
	}, []string{"topic", "event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "attendance_service",
		Subsystem: "dlq",
		Name:      "backlog_entries",
		Help:      "DLQ entries per topic, split into waiting and quarantined.",
	}, []string{"topic", "state"})
)

func init() {
	prometheus.MustRegister(dlqOutcomeCounter, dlqBacklogGauge)
}

func recordDLQOutcome(entry dlqEntry, outcome dlqOutcome) {
	dlqOutcomeCounter.WithLabelValues(entry.Topic, entry.EventType, string(outcome)).Inc()
}

type backlogRow struct {
	Topic string
	State string
	Count int
}

// refreshBacklog resets the backlog gauge from outbox_dlq so topics that have
// drained stop reporting.
func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) {
	rows, err := pool.Query(ctx,
		`SELECT topic,
                CASE WHEN quarantined_at IS NULL THEN 'waiting' ELSE 'quarantined' END,
                COUNT(*)::int
           FROM outbox_dlq
          GROUP BY 1, 2`)
	if err != nil {
		log.Printf("dlq: backlog query: %v", err)
		return
	}
	counts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[backlogRow])
	if err != nil {
		log.Printf("dlq: backlog scan: %v", err)
		return
	}

	dlqBacklogGauge.Reset()
	for _, c := range counts {
		dlqBacklogGauge.WithLabelValues(c.Topic, c.State).Set(float64(c.Count))
	}
}
