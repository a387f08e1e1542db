package domain

import (
	"time"

	"github.com/google/uuid"
)

type IdempotencyOperation string

const (
	IdempotencyOpPlaceOrder        IdempotencyOperation = "place_order"
	IdempotencyOpPlaceWeeklyOrders IdempotencyOperation = "place_weekly_orders"
)

type IdempotencyRecord struct {
	OwnerID     uuid.UUID
	Key         string
	Operation   IdempotencyOperation
	RequestHash string
	OrderIDs    []uuid.UUID
	NewBalance  *int64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Completed reports whether the admission that claimed the key has committed an outcome.
func (r *IdempotencyRecord) Completed() bool {
	return r.NewBalance != nil
}
