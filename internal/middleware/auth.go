package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/canteen-ledger/internal/auth"
	"github.com/josh-kwaku/canteen-ledger/internal/handler"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
)

// Auth verifies the bearer token and scopes the request to its guardian.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				logging.FromContext(r.Context()).Debug("token rejected", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithUserID(r.Context(), claims.GuardianID)
			ctx = logging.With(ctx, "user_id", claims.GuardianID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
