package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/josh-kwaku/canteen-ledger/internal/handler"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
)

// Recovery turns a panic into a 500. A transaction open at the time of the
// panic is rolled back by its runner before the panic reaches here.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logging.FromContext(r.Context()).Error("panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
