package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/canteen-ledger/internal/handler"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	maxIdempotencyKeyLength = 255
)

// RequireIdempotencyKey rejects mutating requests without a usable
// Idempotency-Key. Replay itself happens in the ordering service, inside
// the same transaction as the debit.
func RequireIdempotencyKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if key == "" {
			handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			handler.RespondValidationError(w, []handler.FieldError{
				{Field: idempotencyHeader, Message: "must be at most 255 characters"},
			})
			return
		}

		r.Header.Set(idempotencyHeader, key)
		ctx := logging.With(r.Context(), "idempotency_key", key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
