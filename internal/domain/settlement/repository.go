package settlement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medibook/medibook-api/internal/domain/account"
	"github.com/medibook/medibook-api/internal/pkg/apperr"
)

const queryTimeout = 3 * time.Second

const (
	payoutColumns = `id, account_id, amount, status, rejection_reason, created_at, processed_at, processed_by`
	entryColumns  = `id, account_id, delta, category, payout_id, actor_id, description, balance_after, created_at`
	accountFields = `id, email, display_name, role, speciality, verification_status, balance, created_at, updated_at`
)

// Postgres error codes the store distinguishes
const (
	pqUniqueViolation      = "23505"
	pqCheckViolation       = "23514"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

// Repository is the Postgres settlement store
type Repository struct {
	db        *sqlx.DB
	txTimeout time.Duration
}

// NewRepository creates the Postgres settlement store.
// txTimeout bounds each settlement transaction including lock waits.
func NewRepository(db *sqlx.DB, txTimeout time.Duration) *Repository {
	if txTimeout <= 0 {
		txTimeout = 5 * time.Second
	}
	return &Repository{db: db, txTimeout: txTimeout}
}

func (r *Repository) GetAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var a account.Account
	err := r.db.GetContext(ctx, &a, `SELECT `+accountFields+` FROM accounts WHERE id = $1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, storageFailure("get account", err)
	}
	return &a, nil
}

func (r *Repository) GetPayout(ctx context.Context, id uuid.UUID) (*PayoutRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p PayoutRequest
	err := r.db.GetContext(ctx, &p, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPayoutNotFound
	}
	if err != nil {
		return nil, storageFailure("get payout", err)
	}
	return &p, nil
}

func (r *Repository) ListOutstanding(ctx context.Context) ([]*OutstandingPayout, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT p.id, p.account_id, p.amount, p.status, p.rejection_reason,
		       p.created_at, p.processed_at, p.processed_by,
		       a.email AS account_email, a.display_name AS account_name,
		       a.speciality, a.balance AS account_balance
		FROM payout_requests p
		JOIN accounts a ON a.id = p.account_id
		WHERE p.status = $1
		ORDER BY p.created_at ASC, p.id
	`
	items := []*OutstandingPayout{}
	if err := r.db.SelectContext(ctx, &items, query, PayoutProcessing); err != nil {
		return nil, storageFailure("list outstanding", err)
	}
	return items, nil
}

func (r *Repository) ListEntries(ctx context.Context, accountID uuid.UUID, page Pagination) ([]*LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	page = page.Normalize()
	query := `SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	entries := []*LedgerEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, accountID, page.Limit, page.Offset); err != nil {
		return nil, storageFailure("list ledger", err)
	}
	return entries, nil
}

func (r *Repository) SumLedger(ctx context.Context) ([]AccountTotal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	query := `
		SELECT a.id AS account_id, a.balance, COALESCE(SUM(l.delta), 0) AS ledger_sum
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id
		GROUP BY a.id, a.balance
		ORDER BY a.id
	`
	totals := []AccountTotal{}
	if err := r.db.SelectContext(ctx, &totals, query); err != nil {
		return nil, storageFailure("sum ledger", err)
	}
	return totals, nil
}

// ScanLedger pages by (created_at, id) inside one read-only REPEATABLE READ
// transaction so that every page sees the same snapshot.
func (r *Repository) ScanLedger(ctx context.Context, accountID uuid.UUID, batchSize int, fn func(batch []*LedgerEntry) error) error {
	if batchSize <= 0 {
		batchSize = maxPageLimit
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return storageFailure("begin ledger scan", err)
	}
	defer tx.Rollback()

	var last *LedgerEntry
	for {
		batch, err := scanPage(ctx, tx, accountID, last, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			break
		}
		last = batch[len(batch)-1]
	}

	if err := tx.Commit(); err != nil {
		return storageFailure("end ledger scan", err)
	}
	return nil
}

func scanPage(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, after *LedgerEntry, limit int) ([]*LedgerEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	entries := []*LedgerEntry{}
	var err error
	if after == nil {
		err = tx.SelectContext(ctx, &entries, `SELECT `+entryColumns+`
			FROM ledger_entries
			WHERE account_id = $1
			ORDER BY created_at, id
			LIMIT $2`, accountID, limit)
	} else {
		err = tx.SelectContext(ctx, &entries, `SELECT `+entryColumns+`
			FROM ledger_entries
			WHERE account_id = $1 AND (created_at, id) > ($2, $3)
			ORDER BY created_at, id
			LIMIT $4`, accountID, after.CreatedAt, after.ID, limit)
	}
	if err != nil {
		return nil, storageFailure("scan ledger", err)
	}
	return entries, nil
}

// WithinTx runs fn in one transaction. Every row a decision depends on is
// read with FOR UPDATE (payout before account), so conflicting units queue on
// the row locks and each one re-reads committed state after acquiring them.
// Lock timeouts and deadlocks surface as ErrStorageFailure with nothing applied.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return storageFailure("begin tx", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageFailure("commit tx", err)
	}
	return nil
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) LockPayout(ctx context.Context, id uuid.UUID) (*PayoutRequest, error) {
	var p PayoutRequest
	err := t.tx.GetContext(ctx, &p, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPayoutNotFound
	}
	if err != nil {
		return nil, storageFailure("lock payout", err)
	}
	return &p, nil
}

func (t *pgTx) LockAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	var a account.Account
	err := t.tx.GetContext(ctx, &a, `SELECT `+accountFields+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, storageFailure("lock account", err)
	}
	return &a, nil
}

func (t *pgTx) InsertPayout(ctx context.Context, p *PayoutRequest) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO payout_requests (id, account_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.AccountID, p.Amount, p.Status, p.CreatedAt)
	if err != nil {
		return storageFailure("insert payout", err)
	}
	return nil
}

func (t *pgTx) MarkPayout(ctx context.Context, id uuid.UUID, status PayoutStatus, actorID uuid.UUID, at time.Time, reason *string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE payout_requests
		SET status = $2, processed_at = $3, processed_by = $4, rejection_reason = $5
		WHERE id = $1 AND status = $6
	`, id, status, at, actorID, reason, PayoutProcessing)
	if err != nil {
		return storageFailure("mark payout", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageFailure("mark payout", err)
	}
	if n == 0 {
		return ErrPayoutAlreadyProcessed
	}
	return nil
}

func (t *pgTx) PostEntry(ctx context.Context, e *LedgerEntry) error {
	// Balance moves only together with the ledger row below
	var balanceAfter int64
	err := t.tx.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1 AND balance + $2 >= 0
		RETURNING balance
	`, e.AccountID, e.Delta).Scan(&balanceAfter)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInsufficientBalance
	}
	if err != nil {
		return storageFailure("update balance", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.AccountID, e.Delta, e.Category, e.PayoutID, e.ActorID, e.Description, balanceAfter, e.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrPayoutAlreadyProcessed
		}
		return storageFailure("insert ledger", err)
	}

	e.BalanceAfter = balanceAfter
	return nil
}

func storageFailure(step string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqCheckViolation:
			if strings.Contains(pqErr.Constraint, "balance") {
				return ErrInsufficientBalance
			}
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return fmt.Errorf("%w: %s: concurrent update (%s)", apperr.ErrStorageFailure, step, pqErr.Code)
		}
	}
	return fmt.Errorf("%w: %s: %v", apperr.ErrStorageFailure, step, err)
}
