package account

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medibook/medibook-api/internal/middleware"
	"github.com/medibook/medibook-api/internal/pkg/errorhandler"
	"github.com/medibook/medibook-api/internal/pkg/response"
	"github.com/medibook/medibook-api/internal/pkg/validator"
)

// Handler serves the admin provider verification endpoints
type Handler struct {
	registry *Registry
}

// NewHandler creates registry handler
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// Routes returns the provider router mounted at /api/admin/providers
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(middleware.RequireAdmin(h.registry.gate))

	r.Get("/", h.List)
	r.Post("/", h.Register)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.SetStatus)
	r.Post("/{id}/active", h.SetActive)

	return r
}

// List handles GET /api/admin/providers?status=PENDING
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	status := VerificationStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status == "" {
		status = StatusPending
	}

	accounts, err := h.registry.ListByState(r.Context(), status)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, accounts)
}

// Get handles GET /api/admin/providers/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid provider ID")
		return
	}

	a, err := h.registry.Get(r.Context(), id)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, a)
}

// Register handles POST /api/admin/providers
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	a, err := h.registry.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			response.Conflict(w, "EMAIL_TAKEN", "Email already in use")
			return
		}
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.Created(w, a)
}

// SetStatus handles PATCH /api/admin/providers/{id}/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid provider ID")
		return
	}

	var req SetStateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	req.AccountID = id

	if err := h.registry.SetState(r.Context(), req); err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, StatusResponse{AccountID: id, VerificationStatus: req.Status})
}

// SetActive handles POST /api/admin/providers/{id}/active
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid provider ID")
		return
	}

	var req SetActiveRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	req.AccountID = id

	status, err := h.registry.SetActive(r.Context(), req)
	if err != nil {
		errorhandler.Respond(r.Context(), w, err)
		return
	}

	response.OK(w, StatusResponse{AccountID: id, VerificationStatus: status})
}
