package account_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/domain/account"
	"github.com/medibook/medibook-api/internal/domain/authz"
	"github.com/medibook/medibook-api/internal/pkg/apperr"
	"github.com/medibook/medibook-api/internal/pkg/invalidate"
	"github.com/medibook/medibook-api/internal/storage/memory"
)

type recordingHook struct {
	mu     sync.Mutex
	scopes []string
}

func (h *recordingHook) Invalidate(_ context.Context, scope string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scopes = append(h.scopes, scope)
	return nil
}

func (h *recordingHook) seen(scope string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func newRegistry(t *testing.T) (*account.Registry, *memory.Store, *recordingHook, *invalidate.Dispatcher) {
	t.Helper()
	store := memory.New()
	hook := &recordingHook{}
	hooks := invalidate.NewDispatcher(hook, time.Second)
	return account.NewRegistry(store, authz.NewContextGate(), hooks), store, hook, hooks
}

func adminCtx() context.Context {
	return authz.WithActor(context.Background(), authz.Actor{ID: uuid.New(), Role: authz.RoleAdmin})
}

func seedProvider(t *testing.T, store *memory.Store, status account.VerificationStatus, createdAt time.Time) *account.Account {
	t.Helper()
	a := &account.Account{
		ID:                 uuid.New(),
		Email:              uuid.NewString() + "@clinic.test",
		DisplayName:        "Dr. Seed",
		Role:               account.RoleProvider,
		Speciality:         "neurology",
		VerificationStatus: status,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
	if err := store.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}
	return a
}

func TestListByState_NewestFirstProvidersOnly(t *testing.T) {
	reg, store, _, _ := newRegistry(t)
	base := time.Now().UTC().Add(-time.Hour)

	older := seedProvider(t, store, account.StatusPending, base)
	newer := seedProvider(t, store, account.StatusPending, base.Add(time.Minute))
	seedProvider(t, store, account.StatusVerified, base.Add(2*time.Minute))

	patient := &account.Account{
		ID: uuid.New(), Email: "patient@clinic.test", Role: string(authz.RolePatient),
		VerificationStatus: account.StatusPending, CreatedAt: base.Add(3 * time.Minute),
	}
	if err := store.Create(context.Background(), patient); err != nil {
		t.Fatalf("create patient: %v", err)
	}

	pending, err := reg.ListByState(adminCtx(), account.StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending providers, got %d", len(pending))
	}
	if pending[0].ID != newer.ID || pending[1].ID != older.ID {
		t.Fatalf("expected newest first")
	}
}

func TestListByState_RejectsSuspendedAndUnknown(t *testing.T) {
	reg, _, _, _ := newRegistry(t)

	if _, err := reg.ListByState(adminCtx(), account.StatusSuspended); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for SUSPENDED, got %v", err)
	}
	if _, err := reg.ListByState(adminCtx(), "ARCHIVED"); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for unknown status, got %v", err)
	}
}

func TestSetState_VerifiesAndInvalidates(t *testing.T) {
	reg, store, hook, hooks := newRegistry(t)
	a := seedProvider(t, store, account.StatusPending, time.Now().UTC())

	if err := reg.SetState(adminCtx(), account.SetStateRequest{AccountID: a.ID, Status: account.StatusVerified}); err != nil {
		t.Fatalf("set state: %v", err)
	}
	hooks.Wait()

	got, err := reg.Get(adminCtx(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.VerificationStatus != account.StatusVerified {
		t.Fatalf("expected VERIFIED, got %s", got.VerificationStatus)
	}
	if !hook.seen(invalidate.ScopeProviders) {
		t.Fatalf("expected %q to be invalidated", invalidate.ScopeProviders)
	}
}

func TestSetState_UnknownAccount(t *testing.T) {
	reg, store, hook, hooks := newRegistry(t)
	existing := seedProvider(t, store, account.StatusPending, time.Now().UTC())

	err := reg.SetState(adminCtx(), account.SetStateRequest{AccountID: uuid.New(), Status: account.StatusVerified})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	hooks.Wait()

	got, _ := store.GetByID(context.Background(), existing.ID)
	if got.VerificationStatus != account.StatusPending {
		t.Fatalf("registry state changed: %s", got.VerificationStatus)
	}
	if hook.seen(invalidate.ScopeProviders) {
		t.Fatalf("failed write must not invalidate")
	}
}

func TestSetState_InvalidTarget(t *testing.T) {
	reg, store, _, _ := newRegistry(t)
	a := seedProvider(t, store, account.StatusPending, time.Now().UTC())

	for _, status := range []account.VerificationStatus{account.StatusSuspended, "", "verified"} {
		err := reg.SetState(adminCtx(), account.SetStateRequest{AccountID: a.ID, Status: status})
		if !errors.Is(err, apperr.ErrInvalidState) {
			t.Fatalf("status %q: expected ErrInvalidState, got %v", status, err)
		}
	}
}

func TestSetActive_SuspendStoresPending(t *testing.T) {
	reg, store, _, _ := newRegistry(t)
	a := seedProvider(t, store, account.StatusVerified, time.Now().UTC())

	suspend := true
	status, err := reg.SetActive(adminCtx(), account.SetActiveRequest{AccountID: a.ID, Suspend: &suspend})
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if status != account.StatusPending {
		t.Fatalf("expected suspension to store PENDING, got %s", status)
	}

	suspend = false
	status, err = reg.SetActive(adminCtx(), account.SetActiveRequest{AccountID: a.ID, Suspend: &suspend})
	if err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	if status != account.StatusVerified {
		t.Fatalf("expected VERIFIED, got %s", status)
	}
}

func TestRegistry_RequiresAdmin(t *testing.T) {
	reg, store, _, _ := newRegistry(t)
	a := seedProvider(t, store, account.StatusPending, time.Now().UTC())

	doctor := authz.WithActor(context.Background(), authz.Actor{ID: a.ID, Role: authz.RoleDoctor})
	if err := reg.SetState(doctor, account.SetStateRequest{AccountID: a.ID, Status: account.StatusVerified}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := reg.ListByState(context.Background(), account.StatusPending); !errors.Is(err, authz.ErrNoActor) {
		t.Fatalf("expected ErrNoActor, got %v", err)
	}

	got, _ := store.GetByID(context.Background(), a.ID)
	if got.VerificationStatus != account.StatusPending {
		t.Fatalf("unauthorized call changed status")
	}
}

func TestRegister_CreatesPendingProvider(t *testing.T) {
	reg, _, _, _ := newRegistry(t)

	a, err := reg.Register(adminCtx(), &account.CreateAccountRequest{Email: " Dr.House@Clinic.test ", DisplayName: "Gregory House"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if a.VerificationStatus != account.StatusPending || a.Role != account.RoleProvider || a.Email != "dr.house@clinic.test" {
		t.Fatalf("unexpected account %+v", a)
	}

	if _, err := reg.Register(adminCtx(), &account.CreateAccountRequest{Email: "dr.house@clinic.test"}); !errors.Is(err, account.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}
