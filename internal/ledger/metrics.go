package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banking_transfers_total",
			Help: "Total number of transfer attempts by result code",
		},
		[]string{"result"},
	)

	transferDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "banking_transfer_duration_seconds",
			Help:    "Duration of transfers including the storage transaction",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
	)

	accountEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banking_account_events_total",
			Help: "Total number of committed account lifecycle changes",
		},
		[]string{"action"},
	)

	auditFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banking_audit_failures_total",
			Help: "Total number of audit records that could not be written after a committed change",
		},
		[]string{"action"},
	)
)

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if code := CodeOf(err); code != "" {
		return string(code)
	}
	return "internal"
}
