package settlement

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/domain/authz"
	"github.com/medibook/medibook-api/internal/middleware"
	"github.com/medibook/medibook-api/internal/pkg/errorhandler"
	"github.com/medibook/medibook-api/internal/pkg/response"
	"github.com/medibook/medibook-api/internal/pkg/validator"
)

// Handler serves payout, balance and ledger endpoints
type Handler struct {
	service *Service
	gate    authz.Gate
}

// NewHandler creates settlement handler
func NewHandler(service *Service, gate authz.Gate) *Handler {
	return &Handler{service: service, gate: gate}
}

// Routes returns the provider-facing router mounted at /api/v1
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)

	r.Post("/payouts", h.RequestPayout)
	r.Get("/payouts/{id}", h.GetPayout)
	r.Get("/balance", h.MyBalance)
	r.Get("/ledger", h.MyLedger)

	return r
}

// AdminRoutes returns the administrator router mounted at /api/admin
func (h *Handler) AdminRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin(h.gate))

	r.Route("/payouts", func(r chi.Router) {
		r.Get("/", h.ListOutstanding)
		r.Post("/{id}/settle", h.Settle)
		r.Post("/{id}/reject", h.Reject)
	})

	r.Route("/accounts/{id}", func(r chi.Router) {
		r.Get("/balance", h.AccountBalance)
		r.Get("/ledger", h.AccountLedger)
		r.Post("/adjustments", h.Adjust)
		r.Post("/statement", h.ExportStatement)
	})

	r.Get("/reconciliation", h.Reconcile)

	return r
}

// --- Provider ---

// RequestPayout handles POST /api/v1/payouts
func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.RequireActor(r.Context(), h.gate)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	var req RequestPayoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	req.AccountID = actor.ID

	p, err := h.service.RequestPayout(r.Context(), req)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, p)
}

// GetPayout handles GET /api/v1/payouts/{id}
func (h *Handler) GetPayout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid payout ID")
	if !ok {
		return
	}

	p, err := h.service.GetPayout(r.Context(), id)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, p)
}

// MyBalance handles GET /api/v1/balance
func (h *Handler) MyBalance(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.RequireActor(r.Context(), h.gate)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	h.writeBalance(w, r, actor.ID)
}

// MyLedger handles GET /api/v1/ledger
func (h *Handler) MyLedger(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.RequireActor(r.Context(), h.gate)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	h.writeLedger(w, r, actor.ID)
}

// --- Admin ---

// ListOutstanding handles GET /api/admin/payouts
func (h *Handler) ListOutstanding(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListOutstandingPayouts(r.Context())
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, items)
}

// Settle handles POST /api/admin/payouts/{id}/settle
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid payout ID")
	if !ok {
		return
	}

	result, err := h.service.SettlePayout(r.Context(), id)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, result)
}

// Reject handles POST /api/admin/payouts/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid payout ID")
	if !ok {
		return
	}

	var req RejectPayoutRequest
	// body is optional
	if err := response.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	req.PayoutID = id

	p, err := h.service.RejectPayout(r.Context(), req)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, p)
}

// AccountBalance handles GET /api/admin/accounts/{id}/balance
func (h *Handler) AccountBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid account ID")
	if !ok {
		return
	}
	h.writeBalance(w, r, id)
}

// AccountLedger handles GET /api/admin/accounts/{id}/ledger
func (h *Handler) AccountLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid account ID")
	if !ok {
		return
	}
	h.writeLedger(w, r, id)
}

// Adjust handles POST /api/admin/accounts/{id}/adjustments
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid account ID")
	if !ok {
		return
	}

	var req AdjustmentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	req.AccountID = id

	entry, err := h.service.AdjustBalance(r.Context(), req)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, entry)
}

// ExportStatement handles POST /api/admin/accounts/{id}/statement
func (h *Handler) ExportStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid account ID")
	if !ok {
		return
	}

	stmt, err := h.service.ExportStatement(r.Context(), id)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, stmt)
}

// Reconcile handles GET /api/admin/reconciliation
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reconcile(r.Context())
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, report)
}

func (h *Handler) writeBalance(w http.ResponseWriter, r *http.Request, accountID uuid.UUID) {
	balance, err := h.service.GetBalance(r.Context(), accountID)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}
	response.OK(w, balance)
}

func (h *Handler) writeLedger(w http.ResponseWriter, r *http.Request, accountID uuid.UUID) {
	page := Pagination{
		Limit:  queryInt(r, "limit", defaultPageLimit),
		Offset: queryInt(r, "offset", 0),
	}.Normalize()

	entries, err := h.service.ListLedger(r.Context(), accountID, page)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.WithMeta(w, entries, response.Meta{Limit: page.Limit, Offset: page.Offset, Count: len(entries)})
}

func pathID(w http.ResponseWriter, r *http.Request, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, message)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return defaultValue
	}
	return v
}
