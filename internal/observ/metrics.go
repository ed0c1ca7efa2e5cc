package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders persisted with a pending payment",
	})

	PaymentsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reconciled_total",
			Help: "Webhook/process reconciliation outcomes",
		},
		[]string{"outcome"},
	)

	PaymentStatusApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_status_applied_total",
			Help: "Terminal/pending statuses applied to payment records",
		},
		[]string{"status"},
	)
)
