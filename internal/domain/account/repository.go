package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medibook/medibook-api/internal/pkg/apperr"
)

// Repository defines provider account data access
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	ListByStatus(ctx context.Context, role string, status VerificationStatus) ([]*Account, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status VerificationStatus) error
}

const queryTimeout = 3 * time.Second

const accountColumns = `id, email, display_name, role, speciality, verification_status, balance, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

// NewRepository creates the Postgres account repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, a *Account) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO accounts (id, email, display_name, role, speciality, verification_status, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Email, a.DisplayName, a.Role, a.Speciality,
		a.VerificationStatus, a.Balance, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w (constraint %s)", ErrEmailTaken, pqErr.Constraint)
		}
		return fmt.Errorf("%w: account create: %v", apperr.ErrStorageFailure, err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var a Account
	err := r.db.GetContext(ctx, &a, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: account get: %v", apperr.ErrStorageFailure, err)
	}
	return &a, nil
}

func (r *repository) ListByStatus(ctx context.Context, role string, status VerificationStatus) ([]*Account, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE role = $1 AND verification_status = $2
		ORDER BY created_at DESC, id`

	accounts := []*Account{}
	if err := r.db.SelectContext(ctx, &accounts, query, role, status); err != nil {
		return nil, fmt.Errorf("%w: account list: %v", apperr.ErrStorageFailure, err)
	}
	return accounts, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status VerificationStatus) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET verification_status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("%w: account update status: %v", apperr.ErrStorageFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: account update status: %v", apperr.ErrStorageFailure, err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}
