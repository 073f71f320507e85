package settlement

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
	"github.com/medibook/medibook-api/internal/pkg/storage"
)

// Service is the settlement engine: payout queue, ledger and balances
type Service struct {
	store   Store
	gate    authz.Gate
	hooks   *invalidate.Dispatcher
	objects storage.ObjectStore
	now     func() time.Time
}

// NewService creates the settlement engine.
// objects may be nil, in which case statement export is disabled.
func NewService(store Store, gate authz.Gate, hooks *invalidate.Dispatcher, objects storage.ObjectStore) *Service {
	if hooks == nil {
		hooks = invalidate.NewDispatcher(nil, 0)
	}
	return &Service{
		store:   store,
		gate:    gate,
		hooks:   hooks,
		objects: objects,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListOutstandingPayouts returns the PROCESSING queue, oldest first
func (s *Service) ListOutstandingPayouts(ctx context.Context) ([]*OutstandingPayout, error) {
	if _, err := authz.RequireAdmin(ctx, s.gate); err != nil {
		return nil, err
	}
	items, err := s.store.ListOutstanding(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return items, nil
}

// RequestPayout files a withdrawal demand. The balance is not checked here;
// it is re-validated when the request is settled.
func (s *Service) RequestPayout(ctx context.Context, req RequestPayoutRequest) (*PayoutRequest, error) {
	actor, err := authz.RequireSelfOrAdmin(ctx, s.gate, req.AccountID)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	p := &PayoutRequest{
		ID:        uuid.New(),
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Status:    PayoutProcessing,
		CreatedAt: s.now(),
	}

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, req.AccountID)
		if err != nil {
			return err
		}
		if !acc.IsVerified() {
			return ErrAccountNotVerified
		}
		return tx.InsertPayout(ctx, p)
	})
	if err != nil {
		return nil, classify(err)
	}

	metrics.PayoutRequests.Inc()
	log.Info().
		Str("payout_id", p.ID.String()).
		Str("account_id", p.AccountID.String()).
		Str("actor_id", actor.ID.String()).
		Int64("amount", p.Amount).
		Msg("payout requested")

	s.hooks.Fire(invalidate.ScopePayouts)
	return p, nil
}

// SettlePayout approves a PROCESSING payout. The status change, the ledger
// debit and the balance update are applied together or not at all.
func (s *Service) SettlePayout(ctx context.Context, payoutID uuid.UUID) (*SettleResponse, error) {
	actor, err := authz.RequireAdmin(ctx, s.gate)
	if err != nil {
		return nil, err
	}

	var (
		payout *PayoutRequest
		entry  *LedgerEntry
	)
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		p, err := tx.LockPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if p.IsTerminal() {
			return ErrPayoutAlreadyProcessed
		}

		acc, err := tx.LockAccount(ctx, p.AccountID)
		if err != nil {
			return err
		}
		if acc.Balance < p.Amount {
			return ErrInsufficientBalance
		}

		now := s.now()
		if err := tx.MarkPayout(ctx, p.ID, PayoutProcessed, actor.ID, now, nil); err != nil {
			return err
		}

		e := &LedgerEntry{
			ID:          uuid.New(),
			AccountID:   p.AccountID,
			Delta:       -p.Amount,
			Category:    CategoryPayoutSettlement,
			PayoutID:    &p.ID,
			ActorID:     &actor.ID,
			Description: "payout " + p.ID.String(),
			CreatedAt:   now,
		}
		if err := tx.PostEntry(ctx, e); err != nil {
			return err
		}

		p.Status = PayoutProcessed
		p.ProcessedAt = &now
		p.ProcessedBy = &actor.ID
		payout, entry = p, e
		return nil
	})
	if err != nil {
		err = classify(err)
		metrics.PayoutsProcessed.WithLabelValues(outcome(err)).Inc()
		log.Warn().Err(err).
			Str("payout_id", payoutID.String()).
			Str("actor_id", actor.ID.String()).
			Msg("payout settlement failed")
		return nil, err
	}

	metrics.PayoutsProcessed.WithLabelValues(metrics.OutcomeSettled).Inc()
	metrics.CreditsDebited.Add(float64(payout.Amount))
	log.Info().
		Str("payout_id", payout.ID.String()).
		Str("account_id", payout.AccountID.String()).
		Str("actor_id", actor.ID.String()).
		Int64("amount", payout.Amount).
		Int64("balance_after", entry.BalanceAfter).
		Msg("payout settled")

	s.hooks.Fire(invalidate.ScopePayouts, invalidate.ScopeProviders, invalidate.AccountScope(payout.AccountID.String()))
	return &SettleResponse{Payout: payout, Entry: entry}, nil
}

// RejectPayout declines a PROCESSING payout; no balance change occurs
func (s *Service) RejectPayout(ctx context.Context, req RejectPayoutRequest) (*PayoutRequest, error) {
	actor, err := authz.RequireAdmin(ctx, s.gate)
	if err != nil {
		return nil, err
	}

	var reason *string
	if r := strings.TrimSpace(req.Reason); r != "" {
		reason = &r
	}

	var payout *PayoutRequest
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		p, err := tx.LockPayout(ctx, req.PayoutID)
		if err != nil {
			return err
		}
		if p.IsTerminal() {
			return ErrPayoutAlreadyProcessed
		}

		now := s.now()
		if err := tx.MarkPayout(ctx, p.ID, PayoutRejected, actor.ID, now, reason); err != nil {
			return err
		}
		p.Status = PayoutRejected
		p.ProcessedAt = &now
		p.ProcessedBy = &actor.ID
		p.RejectionReason = reason
		payout = p
		return nil
	})
	if err != nil {
		err = classify(err)
		metrics.PayoutsProcessed.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	metrics.PayoutsProcessed.WithLabelValues(metrics.OutcomeRejected).Inc()
	log.Info().
		Str("payout_id", payout.ID.String()).
		Str("account_id", payout.AccountID.String()).
		Str("actor_id", actor.ID.String()).
		Msg("payout rejected")

	s.hooks.Fire(invalidate.ScopePayouts)
	return payout, nil
}

// AdjustBalance posts an administrator credit or debit to an account
func (s *Service) AdjustBalance(ctx context.Context, req AdjustmentRequest) (*LedgerEntry, error) {
	actor, err := authz.RequireAdmin(ctx, s.gate)
	if err != nil {
		return nil, err
	}
	if req.Delta == 0 {
		return nil, ErrZeroAdjustment
	}
	category := req.Category
	if category == "" {
		category = CategoryManualAdjustment
	}
	if !category.IsAdjustment() {
		return nil, ErrInvalidCategory
	}

	e := &LedgerEntry{
		ID:          uuid.New(),
		AccountID:   req.AccountID,
		Delta:       req.Delta,
		Category:    category,
		ActorID:     &actor.ID,
		Description: strings.TrimSpace(req.Reason),
		CreatedAt:   s.now(),
	}
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		acc, err := tx.LockAccount(ctx, req.AccountID)
		if err != nil {
			return err
		}
		if acc.Balance+req.Delta < 0 {
			return ErrInsufficientBalance
		}
		return tx.PostEntry(ctx, e)
	})
	if err != nil {
		return nil, classify(err)
	}

	log.Info().
		Str("account_id", e.AccountID.String()).
		Str("actor_id", actor.ID.String()).
		Str("category", string(e.Category)).
		Int64("delta", e.Delta).
		Int64("balance_after", e.BalanceAfter).
		Msg("balance adjusted")

	s.hooks.Fire(invalidate.ScopeProviders, invalidate.AccountScope(e.AccountID.String()))
	return e, nil
}

// GetBalance returns an account's running balance
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (*BalanceResponse, error) {
	if _, err := authz.RequireSelfOrAdmin(ctx, s.gate, accountID); err != nil {
		return nil, err
	}
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, classify(err)
	}
	return &BalanceResponse{
		AccountID:          acc.ID,
		Balance:            acc.Balance,
		VerificationStatus: acc.VerificationStatus,
	}, nil
}

// ListLedger returns an account's ledger, newest first
func (s *Service) ListLedger(ctx context.Context, accountID uuid.UUID, page Pagination) ([]*LedgerEntry, error) {
	if _, err := authz.RequireSelfOrAdmin(ctx, s.gate, accountID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, classify(err)
	}
	entries, err := s.store.ListEntries(ctx, accountID, page.Normalize())
	if err != nil {
		return nil, classify(err)
	}
	return entries, nil
}

// GetPayout returns a single payout request to its owner or an administrator
func (s *Service) GetPayout(ctx context.Context, payoutID uuid.UUID) (*PayoutRequest, error) {
	actor, err := authz.RequireActor(ctx, s.gate)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, classify(err)
	}
	if !actor.IsAdmin() && actor.ID != p.AccountID {
		return nil, authz.ErrNotOwner
	}
	return p, nil
}

// Reconcile compares every stored balance with the sum of its ledger
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	if _, err := authz.RequireAdmin(ctx, s.gate); err != nil {
		return nil, err
	}
	return s.reconcile(ctx)
}

func (s *Service) reconcile(ctx context.Context) (*ReconcileReport, error) {
	totals, err := s.store.SumLedger(ctx)
	if err != nil {
		return nil, classify(err)
	}

	report := &ReconcileReport{
		Checked:       len(totals),
		Discrepancies: []AccountTotal{},
		RanAt:         s.now(),
	}
	for _, t := range totals {
		if t.Drift() != 0 {
			report.Discrepancies = append(report.Discrepancies, t)
		}
	}
	metrics.LedgerDiscrepancies.Set(float64(len(report.Discrepancies)))
	return report, nil
}

// classify passes typed errors through and converts anything else into a
// storage failure so callers never see raw driver errors.
func classify(err error) error {
	if apperr.IsTyped(err) {
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrStorageFailure, err)
}

func outcome(err error) string {
	switch apperr.Kind(err) {
	case apperr.ErrInsufficientBalance:
		return metrics.OutcomeInsufficientBalance
	case apperr.ErrAlreadyProcessed:
		return metrics.OutcomeAlreadyProcessed
	case apperr.ErrStorageFailure:
		return metrics.OutcomeStorageFailure
	case apperr.ErrNotFound:
		return metrics.OutcomeNotFound
	}
	return metrics.OutcomeError
}
