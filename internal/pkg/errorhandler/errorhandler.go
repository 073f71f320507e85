package errorhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/medibook/medibook-api/internal/domain/authz"
	"github.com/medibook/medibook-api/internal/pkg/apperr"
	"github.com/medibook/medibook-api/internal/pkg/logger"
	"github.com/medibook/medibook-api/internal/pkg/response"
)

// Status maps a domain error to its HTTP status and error code
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, authz.ErrNoActor):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, apperr.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "INVALID_AMOUNT"
	case errors.Is(err, apperr.ErrInvalidState):
		return http.StatusBadRequest, "INVALID_STATE"
	case errors.Is(err, apperr.ErrAlreadyProcessed):
		return http.StatusConflict, "ALREADY_PROCESSED"
	case errors.Is(err, apperr.ErrInsufficientBalance):
		return http.StatusConflict, "INSUFFICIENT_BALANCE"
	case errors.Is(err, apperr.ErrStorageFailure):
		return http.StatusServiceUnavailable, "STORAGE_FAILURE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// Respond logs err with the request logger and writes the mapped response.
// Messages of untyped errors and storage failures are not echoed to the client.
func Respond(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := Status(err)

	event := logger.FromContext(ctx).Warn()
	if status >= http.StatusInternalServerError {
		event = logger.FromContext(ctx).Error()
	}
	event.Err(err).
		Str("error_code", code).
		Int("status_code", status).
		Msg("Request error")

	switch status {
	case http.StatusInternalServerError:
		response.InternalError(w)
		return
	case http.StatusServiceUnavailable:
		response.ServiceUnavailable(w, "Storage is temporarily unavailable, nothing was applied")
		return
	}
	response.Error(w, status, code, err.Error())
}
