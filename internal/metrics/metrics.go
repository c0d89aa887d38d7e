// Package metrics exposes Prometheus collectors for the lending core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds the application-specific Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	loanTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendloop",
			Subsystem: "loans",
			Name:      "transitions_total",
			Help:      "Loan request status transitions by target status and outcome.",
		},
		[]string{"to", "result"},
	)

	accountDeletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendloop",
			Subsystem: "accounts",
			Name:      "deletions_total",
			Help:      "Account deletion cascades by outcome.",
		},
		[]string{"result"},
	)

	deletionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lendloop",
			Subsystem: "accounts",
			Name:      "deletion_duration_seconds",
			Help:      "Duration of account deletion cascades.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendloop",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Loan reminders sent by kind.",
		},
		[]string{"kind"},
	)

	reminderSweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lendloop",
			Subsystem: "reminders",
			Name:      "sweeps_total",
			Help:      "Reminder sweeps by outcome.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		loanTransitions,
		accountDeletions,
		deletionDuration,
		remindersSent,
		reminderSweeps,
	)
}

// RecordTransition counts a loan status transition attempt.
func RecordTransition(to string, err error) {
	loanTransitions.WithLabelValues(to, result(err)).Inc()
}

// RecordDeletion counts a deletion cascade and observes its duration.
func RecordDeletion(started time.Time, err error) {
	accountDeletions.WithLabelValues(result(err)).Inc()
	deletionDuration.Observe(time.Since(started).Seconds())
}

// RecordReminder counts a sent reminder.
func RecordReminder(kind string) {
	remindersSent.WithLabelValues(kind).Inc()
}

// RecordSweep counts a reminder sweep.
func RecordSweep(err error) {
	reminderSweeps.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
