package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "medibook"

// Payout outcomes recorded by the settlement engine
const (
	OutcomeSettled             = "settled"
	OutcomeRejected            = "rejected"
	OutcomeInsufficientBalance = "insufficient_balance"
	OutcomeAlreadyProcessed    = "already_processed"
	OutcomeStorageFailure      = "storage_failure"
	OutcomeNotFound            = "not_found"
	OutcomeError               = "error"
)

var (
	PayoutsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "payouts_total",
			Help:      "Payout settle/reject attempts by outcome",
		},
		[]string{"outcome"},
	)

	PayoutRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "payout_requests_total",
			Help:      "Payout requests accepted into the PROCESSING queue",
		},
	)

	CreditsDebited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "credits_paid_out_total",
			Help:      "Credits debited by settled payouts",
		},
	)

	LedgerDiscrepancies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "ledger_discrepancies",
			Help:      "Accounts whose stored balance differs from the ledger sum at the last reconciliation",
		},
	)

	VerificationChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "verification_changes_total",
			Help:      "Provider verification status writes by target status",
		},
		[]string{"status"},
	)
)
