package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type StoreMetrics struct {
	OperationDuration *prometheus.HistogramVec
}

type LedgerMetrics struct {
	OperationsTotal        *prometheus.CounterVec
	RepaymentsClampedTotal prometheus.Counter
	CustomersByStatus      *prometheus.GaugeVec
	OutstandingBalance     prometheus.Gauge
}

var (
	Store = StoreMetrics{
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_ledger_store_operation_duration_seconds",
				Help:    "Histogram of record store load and save latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"driver", "operation", "status"},
		),
	}

	Ledger = LedgerMetrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_ledger_operations_total",
				Help: "Total number of ledger mutations by operation and outcome.",
			},
			[]string{"operation", "status"},
		),
		RepaymentsClampedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_ledger_repayments_clamped_total",
				Help: "Repayments reduced to the loan's remaining balance.",
			},
		),
		CustomersByStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "credit_ledger_customers",
				Help: "Customers per derived status at the last overdue sweep.",
			},
			[]string{"status"},
		),
		OutstandingBalance: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "credit_ledger_outstanding_balance",
				Help: "Sum of remaining balances over all active loans at the last overdue sweep.",
			},
		),
	}
)

func RecordStoreOperation(driver, operation, status string, duration time.Duration) {
	Store.OperationDuration.WithLabelValues(driver, operation, status).Observe(duration.Seconds())
}

func RecordLedgerOperation(operation, status string) {
	Ledger.OperationsTotal.WithLabelValues(operation, status).Inc()
}

func RecordClampedRepayment() {
	Ledger.RepaymentsClampedTotal.Inc()
}

func SetCustomerStatusCounts(counts map[string]int) {
	for status, n := range counts {
		Ledger.CustomersByStatus.WithLabelValues(status).Set(float64(n))
	}
}

func SetOutstandingBalance(total float64) {
	Ledger.OutstandingBalance.Set(total)
}

// StatusOf maps an error to the status label used by the counters above.
func StatusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
