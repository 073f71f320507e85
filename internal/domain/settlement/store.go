package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/domain/account"
)

// Store is the settlement persistence contract.
// Errors other than the package sentinels are treated as storage failures.
type Store interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
	GetPayout(ctx context.Context, id uuid.UUID) (*PayoutRequest, error)
	ListOutstanding(ctx context.Context) ([]*OutstandingPayout, error)
	ListEntries(ctx context.Context, accountID uuid.UUID, page Pagination) ([]*LedgerEntry, error)
	SumLedger(ctx context.Context) ([]AccountTotal, error)

	// ScanLedger feeds the account's ledger to fn oldest first in batches of at
	// most batchSize. Every batch comes from the same snapshot, so entries
	// committed while the scan runs are never seen.
	ScanLedger(ctx context.Context, accountID uuid.UUID, batchSize int, fn func(batch []*LedgerEntry) error) error

	// WithinTx runs fn in one isolated all-or-nothing unit.
	// If fn returns an error nothing it wrote is applied.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of a settlement transaction
type Tx interface {
	// LockPayout loads a payout and holds it until the unit ends
	LockPayout(ctx context.Context, id uuid.UUID) (*PayoutRequest, error)

	// LockAccount loads an account and holds it until the unit ends
	LockAccount(ctx context.Context, id uuid.UUID) (*account.Account, error)

	InsertPayout(ctx context.Context, p *PayoutRequest) error

	// MarkPayout moves a PROCESSING payout to a terminal status
	MarkPayout(ctx context.Context, id uuid.UUID, status PayoutStatus, actorID uuid.UUID, at time.Time, reason *string) error

	// PostEntry appends e and moves the account balance by e.Delta.
	// It is the only way a balance changes. e.BalanceAfter is set on success.
	PostEntry(ctx context.Context, e *LedgerEntry) error
}
