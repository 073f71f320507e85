package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/domain/account"
	"github.com/medibook/medibook-api/internal/domain/settlement"
	"github.com/medibook/medibook-api/internal/pkg/apperr"
	"github.com/medibook/medibook-api/internal/storage/memory"
)

func newAccount(t *testing.T, s *memory.Store) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	a := &account.Account{
		ID:                 uuid.New(),
		Email:              uuid.NewString() + "@clinic.test",
		Role:               account.RoleProvider,
		VerificationStatus: account.StatusVerified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	return a.ID
}

func credit(id uuid.UUID, delta int64) *settlement.LedgerEntry {
	return &settlement.LedgerEntry{
		ID:        uuid.New(),
		AccountID: id,
		Delta:     delta,
		Category:  settlement.CategoryServiceAccrual,
		CreatedAt: time.Now().UTC(),
	}
}

func TestWithinTx_DiscardsWritesOnError(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	id := newAccount(t, s)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx settlement.Tx) error {
		if err := tx.PostEntry(ctx, credit(id, 50)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	a, _ := s.GetAccount(ctx, id)
	if a.Balance != 0 {
		t.Fatalf("expected balance 0 after rollback, got %d", a.Balance)
	}
	entries, _ := s.ListEntries(ctx, id, settlement.Pagination{})
	if len(entries) != 0 {
		t.Fatalf("expected no entries after rollback, got %d", len(entries))
	}
}

func TestWithinTx_ReadsOwnWrites(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	id := newAccount(t, s)

	err := s.WithinTx(ctx, func(tx settlement.Tx) error {
		if err := tx.PostEntry(ctx, credit(id, 30)); err != nil {
			return err
		}
		a, err := tx.LockAccount(ctx, id)
		if err != nil {
			return err
		}
		if a.Balance != 30 {
			t.Errorf("expected staged balance 30, got %d", a.Balance)
		}
		return tx.PostEntry(ctx, credit(id, -30))
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	totals, _ := s.SumLedger(ctx)
	if len(totals) != 1 || totals[0].Balance != 0 || totals[0].LedgerSum != 0 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestPostEntry_RefusesNegativeBalance(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	id := newAccount(t, s)

	err := s.WithinTx(ctx, func(tx settlement.Tx) error {
		return tx.PostEntry(ctx, credit(id, -1))
	})
	if !errors.Is(err, apperr.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestListEntries_NewestFirstWithOffset(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	id := newAccount(t, s)

	for i := int64(1); i <= 5; i++ {
		delta := i
		if err := s.WithinTx(ctx, func(tx settlement.Tx) error {
			return tx.PostEntry(ctx, credit(id, delta))
		}); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	page, _ := s.ListEntries(ctx, id, settlement.Pagination{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].Delta != 4 || page[1].Delta != 3 {
		t.Fatalf("unexpected page: %d entries", len(page))
	}
	if page[0].BalanceAfter != 10 {
		t.Fatalf("expected balance_after 10, got %d", page[0].BalanceAfter)
	}
}

func TestScanLedger_SnapshotOldestFirst(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	id := newAccount(t, s)
	post := func(delta int64) {
		t.Helper()
		if err := s.WithinTx(ctx, func(tx settlement.Tx) error {
			return tx.PostEntry(ctx, credit(id, delta))
		}); err != nil {
			t.Fatalf("post: %v", err)
		}
	}
	for i := int64(1); i <= 5; i++ {
		post(i)
	}

	var deltas []int64
	batches := 0
	err := s.ScanLedger(ctx, id, 2, func(batch []*settlement.LedgerEntry) error {
		batches++
		for _, e := range batch {
			deltas = append(deltas, e.Delta)
		}
		if batches == 1 {
			post(100)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if batches != 3 || len(deltas) != 5 {
		t.Fatalf("expected 5 entries in 3 batches, got %d in %d", len(deltas), batches)
	}
	for i, d := range deltas {
		if d != int64(i+1) {
			t.Fatalf("expected oldest first, got %v", deltas)
		}
	}
}

func TestCreate_RejectsOpeningBalance(t *testing.T) {
	s := memory.New()
	err := s.Create(context.Background(), &account.Account{ID: uuid.New(), Email: "x@clinic.test", Balance: 10})
	if !errors.Is(err, apperr.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
