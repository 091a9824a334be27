// Package metrics exposes Prometheus counters for the domain operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansRecorded counts attendance scans accepted by the ledger.
	ScansRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_scans_recorded_total",
		Help: "Attendance scans recorded.",
	})

	// StatusChanges counts HOD decisions by resulting status.
	StatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_status_changes_total",
		Help: "Attendance status changes applied, by resulting status.",
	}, []string{"status"})

	// DigestsSent counts digest emails dispatched successfully.
	DigestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_digests_sent_total",
		Help: "Digest emails sent.",
	})

	// DigestsFailed counts digest emails that failed at the transport.
	DigestsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_digests_failed_total",
		Help: "Digest emails that failed to send.",
	})
)
