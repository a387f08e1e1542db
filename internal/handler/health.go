package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    *sql.DB
	cache pinger
}

// NewHealthHandler takes an optional cache probe; a nil cache is not checked.
func NewHealthHandler(db *sql.DB, cache pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness fails only on the database. The menu cache falls back to
// Postgres, so an unreachable cache is reported as degraded.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	httpStatus := http.StatusOK
	overallStatus := "ok"

	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		checks["database"] = "down"
		httpStatus = http.StatusServiceUnavailable
		overallStatus = "down"
	}

	if h.cache != nil {
		checks["cache"] = "ok"
		if err := h.cache.Ping(r.Context()); err != nil {
			slog.Warn("readiness check: cache unreachable", "error", err)
			checks["cache"] = "down"
			if overallStatus == "ok" {
				overallStatus = "degraded"
			}
		}
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
