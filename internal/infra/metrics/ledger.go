package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(ledgerOpsTotal, ledgerOpDuration) }

var (
	ledgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_ops_total",
			Help: "Activation-code ledger operations by backend, operation and outcome.",
		},
		[]string{"backend", "op", "status"}, // status: 'ok', 'not_found', 'error'
	)

	ledgerOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_op_duration_seconds",
			Help:    "Latency of ledger operations.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"backend", "op"},
	)
)

func ObserveLedgerOp(backend, op, status string, d time.Duration) {
	ledgerOpsTotal.WithLabelValues(norm(backend), norm(op), norm(status)).Inc()
	ledgerOpDuration.WithLabelValues(norm(backend), norm(op)).Observe(d.Seconds())
}

// LedgerOpsCounter exposes one series for tests and dashboards.
func LedgerOpsCounter(backend, op, status string) prometheus.Counter {
	return ledgerOpsTotal.WithLabelValues(norm(backend), norm(op), norm(status))
}
