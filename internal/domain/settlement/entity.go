package settlement

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus is the payout request state machine.
// PROCESSING is initial; PROCESSED and REJECTED are terminal.
type PayoutStatus string

const (
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutProcessed  PayoutStatus = "PROCESSED"
	PayoutRejected   PayoutStatus = "REJECTED"
)

// Category classifies a ledger entry
type Category string

const (
	CategoryPayoutSettlement Category = "payout_settlement"
	CategoryManualAdjustment Category = "manual_adjustment"
	CategoryServiceAccrual   Category = "service_accrual"
)

// IsAdjustment reports whether an administrator may post c directly
func (c Category) IsAdjustment() bool {
	return c == CategoryManualAdjustment || c == CategoryServiceAccrual
}

// PayoutRequest is a provider's withdrawal demand against their balance
type PayoutRequest struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	AccountID       uuid.UUID    `db:"account_id" json:"account_id"`
	Amount          int64        `db:"amount" json:"amount"`
	Status          PayoutStatus `db:"status" json:"status"`
	RejectionReason *string      `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt     *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessedBy     *uuid.UUID   `db:"processed_by" json:"processed_by,omitempty"`
}

// IsTerminal returns true once the request has left PROCESSING
func (p *PayoutRequest) IsTerminal() bool {
	return p.Status != PayoutProcessing
}

// LedgerEntry is an immutable signed balance change
type LedgerEntry struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	AccountID    uuid.UUID  `db:"account_id" json:"account_id"`
	Delta        int64      `db:"delta" json:"delta"`
	Category     Category   `db:"category" json:"category"`
	PayoutID     *uuid.UUID `db:"payout_id" json:"payout_id,omitempty"`
	ActorID      *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	Description  string     `db:"description" json:"description,omitempty"`
	BalanceAfter int64      `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// OutstandingPayout is a PROCESSING request joined with its account summary
type OutstandingPayout struct {
	PayoutRequest
	AccountEmail   string `db:"account_email" json:"account_email"`
	AccountName    string `db:"account_name" json:"account_name"`
	Speciality     string `db:"speciality" json:"speciality"`
	AccountBalance int64  `db:"account_balance" json:"account_balance"`
}

// AccountTotal pairs a stored balance with the sum of its ledger
type AccountTotal struct {
	AccountID uuid.UUID `db:"account_id" json:"account_id"`
	Balance   int64     `db:"balance" json:"balance"`
	LedgerSum int64     `db:"ledger_sum" json:"ledger_sum"`
}

// Drift returns stored balance minus ledger sum
func (t AccountTotal) Drift() int64 {
	return t.Balance - t.LedgerSum
}

// ReconcileReport is the result of one ledger audit
type ReconcileReport struct {
	Checked       int            `json:"checked"`
	Discrepancies []AccountTotal `json:"discrepancies"`
	RanAt         time.Time      `json:"ran_at"`
}

// Statement describes an exported ledger statement
type Statement struct {
	AccountID uuid.UUID `json:"account_id"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Entries   int       `json:"entries"`
}

// Pagination bounds ledger listings
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Normalize clamps the page to sane bounds
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
