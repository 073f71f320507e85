package settlement_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/domain/authz"
	"github.com/medibook/medibook-api/internal/domain/settlement"
	"github.com/medibook/medibook-api/internal/pkg/response"
)

// actorMiddleware stands in for JWT auth and injects a fixed actor
func actorMiddleware(actor authz.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(authz.WithActor(r.Context(), actor)))
		})
	}
}

func TestAdminRoutes_Registered(t *testing.T) {
	h := settlement.NewHandler(nil, authz.NewContextGate())
	r := h.AdminRoutes(actorMiddleware(authz.Actor{}))

	patterns := map[string]bool{}
	if err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		patterns[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk routes: %v", err)
	}

	for _, want := range []string{
		"GET /payouts/",
		"POST /payouts/{id}/settle",
		"POST /payouts/{id}/reject",
		"POST /accounts/{id}/adjustments",
		"GET /accounts/{id}/ledger",
		"POST /accounts/{id}/statement",
		"GET /reconciliation",
	} {
		if !patterns[want] {
			t.Errorf("expected %s to be registered", want)
		}
	}
}

func TestHandler_RequestAndSettle(t *testing.T) {
	f := newFixture(t)
	acc := f.provider(t, 100)
	h := settlement.NewHandler(f.svc, authz.NewContextGate())

	provider := h.Routes(actorMiddleware(authz.Actor{ID: acc, Role: authz.RoleDoctor}))
	admin := h.AdminRoutes(actorMiddleware(authz.Actor{ID: f.adminID, Role: authz.RoleAdmin}))

	rec := httptest.NewRecorder()
	provider.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(`{"amount":0}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for zero amount, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	provider.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(`{"amount":40}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data settlement.PayoutRequest `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = httptest.NewRecorder()
	provider.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(`{"amount":5,"account_id":"x"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payouts/"+created.Data.ID.String()+"/settle", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payouts/"+created.Data.ID.String()+"/settle", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second settle, got %d", rec.Code)
	}
	var body response.Response
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == nil || body.Error.Code != "ALREADY_PROCESSED" {
		t.Fatalf("unexpected error body %+v", body.Error)
	}

	rec = httptest.NewRecorder()
	provider.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/balance", nil))
	var balance struct {
		Data settlement.BalanceResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&balance); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if balance.Data.Balance != 60 {
		t.Fatalf("expected balance 60, got %d", balance.Data.Balance)
	}
}

func TestHandler_ProviderCannotSettle(t *testing.T) {
	f := newFixture(t)
	acc := f.provider(t, 100)
	p := f.request(t, acc, 10)
	h := settlement.NewHandler(f.svc, authz.NewContextGate())

	asProvider := h.AdminRoutes(actorMiddleware(authz.Actor{ID: acc, Role: authz.RoleDoctor}))
	rec := httptest.NewRecorder()
	asProvider.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payouts/"+p.ID.String()+"/settle", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	anonymous := h.AdminRoutes(actorMiddleware(authz.Actor{}))
	rec = httptest.NewRecorder()
	anonymous.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payouts/"+uuid.NewString()+"/settle", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandler_NonAdminRejectedBeforeBodyValidation(t *testing.T) {
	f := newFixture(t)
	acc := f.provider(t, 100)
	p := f.request(t, acc, 10)
	h := settlement.NewHandler(f.svc, authz.NewContextGate())
	asProvider := h.AdminRoutes(actorMiddleware(authz.Actor{ID: acc, Role: authz.RoleDoctor}))

	cases := []struct {
		name string
		path string
		body string
	}{
		{"zero adjustment", "/accounts/" + acc.String() + "/adjustments", `{"delta":0}`},
		{"unknown field", "/accounts/" + acc.String() + "/adjustments", `{"delta":5,"reason":"x","bonus":true}`},
		{"malformed reject", "/payouts/" + p.ID.String() + "/reject", `{"reason":`},
		{"bad payout id", "/payouts/nope/settle", ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		asProvider.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d: %s", tc.name, rec.Code, rec.Body.String())
		}
	}

	if got := f.balance(t, acc); got != 100 {
		t.Fatalf("non-admin moved the balance to %d", got)
	}
}
