package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	return env
}

func TestRespondDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"key reuse", fmt.Errorf("PlaceOrder: %w", domain.ErrIdempotencyKeyReuse), http.StatusConflict, "IDEMPOTENCY_CONFLICT"},
		{"retries exhausted", fmt.Errorf("Run: %w", domain.ErrConflict), http.StatusConflict, "VERSION_CONFLICT"},
		{"version conflict", domain.ErrVersionConflict, http.StatusConflict, "VERSION_CONFLICT"},
		{"claimed without outcome", domain.ErrIdempotencyOutcomeAbsent, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS"},
		{"student not linked", domain.ErrStudentNotLinked, http.StatusNotFound, "STUDENT_NOT_FOUND"},
		{"order not found", domain.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
		{"wallet not found", domain.ErrWalletNotFound, http.StatusNotFound, "WALLET_NOT_FOUND"},
		{"generic not found", domain.ErrNotFound, http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{"menu item missing", domain.ErrMenuItemNotFound, http.StatusNotFound, "MENU_ITEM_NOT_FOUND"},
		{"menu item unavailable", domain.ErrMenuItemUnavailable, http.StatusUnprocessableEntity, "MENU_ITEM_UNAVAILABLE"},
		{"not cancellable", domain.ErrInvalidStatusTransition, http.StatusUnprocessableEntity, "ORDER_NOT_CANCELLABLE"},
		{"empty cart", domain.ErrEmptyCart, http.StatusBadRequest, "EMPTY_CART"},
		{"price mismatch", domain.ErrPriceMismatch, http.StatusBadRequest, "PRICE_MISMATCH"},
		{"batch too large", domain.ErrBatchTooLarge, http.StatusBadRequest, "BATCH_TOO_LARGE"},
		{"zero total", domain.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"missing key", domain.ErrMissingIdempotencyKey, http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondDomainError(rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCode, decodeError(t, rec).Error.Code)
		})
	}
}

func TestRespondDomainError_InsufficientFundsDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondDomainError(rec, fmt.Errorf("PlaceOrder: %w", &domain.InsufficientFundsError{Required: 300, Available: 200}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "INSUFFICIENT_FUNDS", env.Error.Code)
	assert.JSONEq(t, `{"required":300,"available":200,"shortfall":100}`, string(env.Error.Details))
}
