// Package metrics holds the Prometheus collectors of the payment engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "memberpay"

var (
	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "callbacks_total",
		Help:      "Provider callbacks by outcome.",
	}, []string{"provider", "outcome"})

	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_created_total",
		Help:      "Order creation attempts by payment method and result.",
	}, []string{"method", "result"})

	ReconcilerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciler_runs_total",
		Help:      "Reconciler job runs by job and result.",
	}, []string{"job", "result"})

	OrdersExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_expired_total",
		Help:      "Pending orders moved to expired.",
	})

	MembershipsDowngradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "memberships_downgraded_total",
		Help:      "Lapsed memberships moved back to free.",
	})

	SecurityAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "security_alerts_total",
		Help:      "Suspicious callbacks by kind.",
	}, []string{"kind"})
)

// Callback outcomes.
const (
	OutcomeProcessed        = "processed"
	OutcomeDuplicate        = "duplicate"
	OutcomeUnknownOrder     = "unknown_order"
	OutcomeAmountMismatch   = "amount_mismatch"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeMalformed        = "malformed"
	OutcomeError            = "error"
)

// Security alert kinds.
const (
	AlertInvalidSignature  = "invalid_signature"
	AlertAmountMismatch    = "amount_mismatch"
	AlertLatePayment       = "late_payment"
	AlertTransactionReused = "transaction_reused"
)
