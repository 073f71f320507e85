// Package memory is an in-process store for the account registry and the
// settlement engine. One mutex serialises every transaction and writes are
// staged until the transaction function returns without error.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/domain/account"
	"github.com/medibook/medibook-api/internal/domain/settlement"
	"github.com/medibook/medibook-api/internal/pkg/apperr"
)

// Store implements account.Repository and settlement.Store
type Store struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*account.Account
	payouts  map[uuid.UUID]*settlement.PayoutRequest
	ledger   []*settlement.LedgerEntry
}

var (
	_ account.Repository = (*Store)(nil)
	_ settlement.Store   = (*Store)(nil)
)

// New creates an empty store
func New() *Store {
	return &Store{
		accounts: make(map[uuid.UUID]*account.Account),
		payouts:  make(map[uuid.UUID]*settlement.PayoutRequest),
	}
}

// --- account.Repository ---

func (s *Store) Create(ctx context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return account.ErrEmailTaken
		}
	}
	if a.Balance != 0 {
		return fmt.Errorf("%w: accounts start at zero; credit them through the ledger", apperr.ErrInvalidAmount)
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *Store) ListByStatus(ctx context.Context, role string, status account.VerificationStatus) ([]*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []*account.Account{}
	for _, a := range s.accounts {
		if a.Role == role && a.VerificationStatus == status {
			cp := *a
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status account.VerificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return account.ErrAccountNotFound
	}
	a.VerificationStatus = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// --- settlement.Store ---

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetPayout(ctx context.Context, id uuid.UUID) (*settlement.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payouts[id]
	if !ok {
		return nil, settlement.ErrPayoutNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListOutstanding(ctx context.Context) ([]*settlement.OutstandingPayout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := []*settlement.OutstandingPayout{}
	for _, p := range s.payouts {
		if p.Status != settlement.PayoutProcessing {
			continue
		}
		a := s.accounts[p.AccountID]
		items = append(items, &settlement.OutstandingPayout{
			PayoutRequest:  *p,
			AccountEmail:   a.Email,
			AccountName:    a.DisplayName,
			Speciality:     a.Speciality,
			AccountBalance: a.Balance,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ListEntries(ctx context.Context, accountID uuid.UUID, page settlement.Pagination) ([]*settlement.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page = page.Normalize()
	result := []*settlement.LedgerEntry{}
	skipped := 0
	// ledger is append-only, so walking backwards yields newest first
	for i := len(s.ledger) - 1; i >= 0 && len(result) < page.Limit; i-- {
		e := s.ledger[i]
		if e.AccountID != accountID {
			continue
		}
		if skipped < page.Offset {
			skipped++
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	return result, nil
}

// ScanLedger copies the account's entries under one lock hold and releases it
// before calling fn, so fn may itself write to the store.
func (s *Store) ScanLedger(ctx context.Context, accountID uuid.UUID, batchSize int, fn func(batch []*settlement.LedgerEntry) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	s.mu.Lock()
	snapshot := []*settlement.LedgerEntry{}
	for _, e := range s.ledger {
		if e.AccountID == accountID {
			cp := *e
			snapshot = append(snapshot, &cp)
		}
	}
	s.mu.Unlock()

	for start := 0; start < len(snapshot); start += batchSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: scan ledger: %v", apperr.ErrStorageFailure, err)
		}
		end := min(start+batchSize, len(snapshot))
		if err := fn(snapshot[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SumLedger(ctx context.Context) ([]settlement.AccountTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sums := make(map[uuid.UUID]int64, len(s.accounts))
	for _, e := range s.ledger {
		sums[e.AccountID] += e.Delta
	}

	totals := make([]settlement.AccountTotal, 0, len(s.accounts))
	for id, a := range s.accounts {
		totals = append(totals, settlement.AccountTotal{AccountID: id, Balance: a.Balance, LedgerSum: sums[id]})
	}
	sort.Slice(totals, func(i, j int) bool {
		return totals[i].AccountID.String() < totals[j].AccountID.String()
	})
	return totals, nil
}

// WithinTx holds the store lock for the whole of fn and applies its staged
// writes only if fn succeeds and ctx is still live.
func (s *Store) WithinTx(ctx context.Context, fn func(tx settlement.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: begin tx: %v", apperr.ErrStorageFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		accounts: make(map[uuid.UUID]*account.Account),
		payouts:  make(map[uuid.UUID]*settlement.PayoutRequest),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", apperr.ErrStorageFailure, err)
	}

	for id, a := range tx.accounts {
		s.accounts[id] = a
	}
	for id, p := range tx.payouts {
		s.payouts[id] = p
	}
	s.ledger = append(s.ledger, tx.entries...)
	return nil
}

// memTx reads through its staged copies to the committed maps
type memTx struct {
	store    *Store
	accounts map[uuid.UUID]*account.Account
	payouts  map[uuid.UUID]*settlement.PayoutRequest
	entries  []*settlement.LedgerEntry
}

func (t *memTx) account(id uuid.UUID) (*account.Account, error) {
	if a, ok := t.accounts[id]; ok {
		return a, nil
	}
	a, ok := t.store.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	cp := *a
	t.accounts[id] = &cp
	return &cp, nil
}

func (t *memTx) payout(id uuid.UUID) (*settlement.PayoutRequest, error) {
	if p, ok := t.payouts[id]; ok {
		return p, nil
	}
	p, ok := t.store.payouts[id]
	if !ok {
		return nil, settlement.ErrPayoutNotFound
	}
	cp := *p
	t.payouts[id] = &cp
	return &cp, nil
}

func (t *memTx) LockPayout(ctx context.Context, id uuid.UUID) (*settlement.PayoutRequest, error) {
	p, err := t.payout(id)
	if err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) LockAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	a, err := t.account(id)
	if err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

func (t *memTx) InsertPayout(ctx context.Context, p *settlement.PayoutRequest) error {
	if _, err := t.account(p.AccountID); err != nil {
		return err
	}
	if _, exists := t.store.payouts[p.ID]; exists {
		return fmt.Errorf("%w: duplicate payout id %s", apperr.ErrStorageFailure, p.ID)
	}
	cp := *p
	t.payouts[p.ID] = &cp
	return nil
}

func (t *memTx) MarkPayout(ctx context.Context, id uuid.UUID, status settlement.PayoutStatus, actorID uuid.UUID, at time.Time, reason *string) error {
	p, err := t.payout(id)
	if err != nil {
		return err
	}
	if p.Status != settlement.PayoutProcessing {
		return settlement.ErrPayoutAlreadyProcessed
	}
	p.Status = status
	p.ProcessedAt = &at
	p.ProcessedBy = &actorID
	p.RejectionReason = reason
	return nil
}

func (t *memTx) PostEntry(ctx context.Context, e *settlement.LedgerEntry) error {
	a, err := t.account(e.AccountID)
	if err != nil {
		return err
	}
	balance := a.Balance + e.Delta
	if balance < 0 {
		return settlement.ErrInsufficientBalance
	}
	if e.PayoutID != nil {
		for _, existing := range t.store.ledger {
			if existing.PayoutID != nil && *existing.PayoutID == *e.PayoutID {
				return settlement.ErrPayoutAlreadyProcessed
			}
		}
	}

	a.Balance = balance
	a.UpdatedAt = e.CreatedAt
	e.BalanceAfter = balance
	cp := *e
	t.entries = append(t.entries, &cp)
	return nil
}
