package handlers

import (
	"errors"
	"net/http"

	"github.com/username/dmtrade/backend/src/ledger"
	"github.com/username/dmtrade/backend/src/logger"
	"github.com/username/dmtrade/backend/src/repository"
	"github.com/username/dmtrade/backend/src/security/validation"
	"github.com/username/dmtrade/backend/src/services"
	"github.com/username/dmtrade/backend/src/utils"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, validation.ErrValidationFailed), errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateName),
		errors.Is(err, repository.ErrDuplicateEmail),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, services.ErrPortfolioLimit):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrMissingPrice), errors.Is(err, services.ErrPriceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// sendServiceError logs err and writes it with the mapped status. Internal
// errors are not echoed to the client.
func sendServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := statusFor(err)
	ctxLogger := logger.FromContext(r.Context())
	message := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		ctxLogger.Error(action+" failed", "error", err)
		message = "Internal server error"
	case services.IsClientError(err):
		ctxLogger.Warn(action+" rejected", "error", err, "status", status)
	default:
		ctxLogger.Error(action+" failed", "error", err, "status", status)
	}
	utils.SendJSONError(w, message, status)
}
