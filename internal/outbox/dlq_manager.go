package outbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const quarantineRetryLimit = "retry limit reached"

// DLQManager replays parked attendance events into the outbox with
// exponential backoff and quarantines entries that keep failing.
type DLQManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager applies defaults of 5 retries and a one minute base delay.
func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQManager{pool: pool, maxRetries: maxRetries, baseDelay: baseDelay}
}

// Run calls RunOnce every interval until ctx is cancelled.
func (m *DLQManager) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		requeued, err := m.RunOnce(ctx, batchSize)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			log.Printf("dlq: run failed: %v", err)
		case requeued > 0:
			log.Printf("dlq: requeued %d entries", requeued)
		}
	}
}

// RunOnce handles up to batchSize due entries and returns how many went back
// into the outbox. Per-entry failures are joined into the returned error.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	entries, err := m.dueEntries(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	requeued := 0
	var errs []error
	for _, entry := range entries {
		outcome, err := m.handleEntry(ctx, entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("dlq entry %d: %w", entry.ID, err))
			continue
		}
		recordDLQOutcome(entry, outcome)
		if outcome == outcomeRequeued {
			requeued++
		}
	}
	refreshBacklog(ctx, m.pool)
	return requeued, errors.Join(errs...)
}

// dlqEntry is the part of an outbox_dlq row the manager decides on. The
// payload stays in the database and is copied by requeue.
type dlqEntry struct {
	ID            int64  `db:"dlq_id"`
	EventID       int64  `db:"event_id"`
	EventType     string `db:"event_type"`
	Topic         string `db:"topic"`
	SchemaSubject string `db:"schema_subject"`
	RetryCount    int    `db:"retry_count"`
}

func (m *DLQManager) dueEntries(ctx context.Context, batchSize int) ([]dlqEntry, error) {
	rows, err := m.pool.Query(ctx,
		`SELECT dlq_id, event_id, event_type, topic, schema_subject, retry_count
           FROM outbox_dlq
          WHERE quarantined_at IS NULL
            AND (next_retry_at IS NULL OR next_retry_at <= NOW())
          ORDER BY created_at
          LIMIT $1`, batchSize)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[dlqEntry])
}

func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) (dlqOutcome, error) {
	if entry.RetryCount >= m.maxRetries {
		_, err := m.pool.Exec(ctx,
			`UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $2 WHERE dlq_id = $1`,
			entry.ID, quarantineRetryLimit)
		return outcomeQuarantined, err
	}

	if err := m.requeue(ctx, entry); err != nil {
		return outcomeRetry, m.scheduleRetry(ctx, entry, err)
	}
	return outcomeRequeued, nil
}

// requeue moves the entry back into the outbox and removes it from the DLQ in
// one transaction.
func (m *DLQManager) requeue(ctx context.Context, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return errors.New("missing schema_subject")
	}
	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
             SELECT aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
               FROM outbox_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
			return fmt.Errorf("requeue: %w", err)
		}
		_, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID)
		return err
	})
}

func (m *DLQManager) scheduleRetry(ctx context.Context, entry dlqEntry, cause error) error {
	_, err := m.pool.Exec(ctx,
		`UPDATE outbox_dlq
            SET retry_count = retry_count + 1,
                last_attempt_at = NOW(),
                next_retry_at = NOW() + $2::interval,
                reason = $3
          WHERE dlq_id = $1`,
		entry.ID, m.backoffDelay(entry.RetryCount+1), cause.Error())
	return err
}

// backoffDelay is baseDelay doubled per attempt, capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		return time.Hour
	}
	delay := m.baseDelay << (attempt - 1)
	if delay <= 0 || delay > time.Hour {
		return time.Hour
	}
	return delay
}
