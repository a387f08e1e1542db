package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type insufficientFundsDetails struct {
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
	Shortfall int64 `json:"shortfall"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// RespondDomainError maps a service error onto the public error codes.
// Specific sentinels are matched before the generic ones they may wrap.
func RespondDomainError(w http.ResponseWriter, err error) {
	var ife *domain.InsufficientFundsError
	if errors.As(err, &ife) {
		RespondAppError(w, ErrInsufficientFunds, insufficientFundsDetails{
			Required:  ife.Required,
			Available: ife.Available,
			Shortfall: ife.Shortfall(),
		})
		return
	}

	RespondAppError(w, appErrorFor(err), nil)
}

func appErrorFor(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case errors.Is(err, domain.ErrIdempotencyKeyReuse):
		return ErrIdempotencyConflict
	case errors.Is(err, domain.ErrIdempotencyOutcomeAbsent):
		return ErrIdempotencyInProgress
	case errors.Is(err, domain.ErrMissingIdempotencyKey):
		return ErrMissingIdempotencyKey
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrVersionConflict):
		return ErrVersionConflict
	case errors.Is(err, domain.ErrMenuItemNotFound):
		return ErrMenuItemNotFound
	case errors.Is(err, domain.ErrStudentNotLinked):
		return ErrStudentNotLinked
	case errors.Is(err, domain.ErrWalletNotFound):
		return ErrWalletNotFound
	case errors.Is(err, domain.ErrOrderNotFound):
		return ErrOrderNotFound
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrMenuItemUnavailable):
		return ErrMenuItemUnavailable
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return ErrOrderNotCancellable
	case errors.Is(err, domain.ErrEmptyCart):
		return ErrEmptyCart
	case errors.Is(err, domain.ErrInvalidQuantity):
		return ErrInvalidQuantity
	case errors.Is(err, domain.ErrPriceMismatch):
		return ErrPriceMismatch
	case errors.Is(err, domain.ErrInvalidPrice):
		return ErrInvalidPrice
	case errors.Is(err, domain.ErrBatchTooLarge):
		return ErrBatchTooLarge
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		return ErrInternalError
	}
}
