package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medibook/medibook-api/internal/domain/authz"
	"github.com/medibook/medibook-api/internal/pkg/apperr"
	"github.com/medibook/medibook-api/internal/pkg/invalidate"
	"github.com/medibook/medibook-api/internal/pkg/metrics"
)

// Registry is the provider verification registry.
// Every operation is restricted to administrators.
type Registry struct {
	repo  Repository
	gate  authz.Gate
	hooks *invalidate.Dispatcher
}

// NewRegistry creates the verification registry
func NewRegistry(repo Repository, gate authz.Gate, hooks *invalidate.Dispatcher) *Registry {
	if hooks == nil {
		hooks = invalidate.NewDispatcher(nil, 0)
	}
	return &Registry{repo: repo, gate: gate, hooks: hooks}
}

// ListByState returns providers in status, newest registration first.
// SUSPENDED is rejected because suspension is stored as PENDING.
func (r *Registry) ListByState(ctx context.Context, status VerificationStatus) ([]*Account, error) {
	if _, err := authz.RequireAdmin(ctx, r.gate); err != nil {
		return nil, err
	}
	if status == StatusSuspended {
		return nil, ErrInvalidFilter
	}
	if !status.IsTarget() {
		return nil, ErrInvalidStatus
	}

	accounts, err := r.repo.ListByStatus(ctx, RoleProvider, status)
	if err != nil {
		return nil, storageErr(err)
	}
	return accounts, nil
}

// Get returns one provider account
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	if _, err := authz.RequireAdmin(ctx, r.gate); err != nil {
		return nil, err
	}
	a, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storageErr(err)
	}
	return a, nil
}

// SetState records a verification decision for a provider
func (r *Registry) SetState(ctx context.Context, req SetStateRequest) error {
	actor, err := authz.RequireAdmin(ctx, r.gate)
	if err != nil {
		return err
	}
	if !req.Status.IsTarget() {
		return ErrInvalidStatus
	}
	return r.write(ctx, actor, req.AccountID, req.Status)
}

// SetActive suspends or reinstates a provider.
// Suspension demotes to PENDING; reinstatement promotes to VERIFIED.
func (r *Registry) SetActive(ctx context.Context, req SetActiveRequest) (VerificationStatus, error) {
	actor, err := authz.RequireAdmin(ctx, r.gate)
	if err != nil {
		return "", err
	}
	if req.Suspend == nil {
		return "", ErrInvalidStatus
	}

	target := StatusVerified
	if *req.Suspend {
		target = StatusPending
	}
	if err := r.write(ctx, actor, req.AccountID, target); err != nil {
		return "", err
	}
	return target, nil
}

// Register creates a PENDING provider account. Onboarding is owned by the
// identity service; the registry exposes this for seeding and tests.
func (r *Registry) Register(ctx context.Context, req *CreateAccountRequest) (*Account, error) {
	if _, err := authz.RequireAdmin(ctx, r.gate); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := &Account{
		ID:                 uuid.New(),
		Email:              strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName:        req.DisplayName,
		Role:               RoleProvider,
		Speciality:         req.Speciality,
		VerificationStatus: StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.repo.Create(ctx, a); err != nil {
		return nil, storageErr(err)
	}

	r.hooks.Fire(invalidate.ScopeProviders)
	return a, nil
}

func (r *Registry) write(ctx context.Context, actor authz.Actor, id uuid.UUID, status VerificationStatus) error {
	if id == uuid.Nil {
		return ErrAccountNotFound
	}
	if err := r.repo.UpdateStatus(ctx, id, status); err != nil {
		return storageErr(err)
	}

	metrics.VerificationChanges.WithLabelValues(string(status)).Inc()
	log.Info().
		Str("account_id", id.String()).
		Str("actor_id", actor.ID.String()).
		Str("status", string(status)).
		Msg("provider verification updated")

	r.hooks.Fire(invalidate.ScopeProviders, invalidate.AccountScope(id.String()))
	return nil
}

func storageErr(err error) error {
	if apperr.IsTyped(err) {
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrStorageFailure, err)
}
