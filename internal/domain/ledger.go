package domain

import (
	"time"

	"github.com/google/uuid"
)

type LedgerReason string

const (
	LedgerReasonSingleOrder    LedgerReason = "single_order"
	LedgerReasonWeeklyOrder    LedgerReason = "weekly_order"
	LedgerReasonOrderCancelled LedgerReason = "order_cancelled"
	LedgerReasonTopUp          LedgerReason = "top_up"
)

// LedgerEntry is append-only. SignedAmount is negative for debits.
type LedgerEntry struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	SignedAmount    int64
	BalanceBefore   int64
	BalanceAfter    int64
	RelatedOrderIDs []uuid.UUID
	Reason          LedgerReason
	CreatedAt       time.Time
}
