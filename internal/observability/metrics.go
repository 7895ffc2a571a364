// Package observability holds the attendance service's Prometheus collectors.
package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/attendance/internal/domain"
)

var (
	attendancePersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "attendance_service",
		Subsystem: "persistence",
		Name:      "last_attendance_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent attendance record persisted to Postgres.",
	})
	attendancePublishedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "attendance_service",
		Subsystem: "outbox",
		Name:      "last_attendance_published_timestamp_seconds",
		Help:      "Unix timestamp of the most recent attendance event batch published to Kafka.",
	})
	markOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "marking",
		Name:      "attempts_total",
		Help:      "Attendance mark attempts grouped by outcome.",
	}, []string{"outcome"})
	callSessionsEndedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance_service",
		Subsystem: "call_sessions",
		Name:      "auto_ended_total",
		Help:      "Call sessions completed by the expiry sweeper.",
	})
)

func init() {
	prometheus.MustRegister(attendancePersistGauge, attendancePublishedGauge, markOutcomeCounter, callSessionsEndedCounter)
}

// RecordAttendancePersisted updates the persistence watermark gauge.
func RecordAttendancePersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	attendancePersistGauge.Set(float64(ts.Unix()))
}

// RecordAttendancePublished updates the publish watermark gauge.
func RecordAttendancePublished(ts time.Time) {
	if ts.IsZero() {
		return
	}
	attendancePublishedGauge.Set(float64(ts.Unix()))
}

// RecordMarkOutcome counts a mark attempt under the label derived from err.
func RecordMarkOutcome(err error) {
	markOutcomeCounter.WithLabelValues(MarkOutcome(err)).Inc()
}

// MarkOutcome maps a mark result to its metric label.
func MarkOutcome(err error) string {
	switch {
	case err == nil:
		return "recorded"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, domain.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, domain.ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	}
	return "error"
}

// RecordCallSessionsEnded counts call sessions completed by the sweeper.
func RecordCallSessionsEnded(n int) {
	if n <= 0 {
		return
	}
	callSessionsEndedCounter.Add(float64(n))
}
