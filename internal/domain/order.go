package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing: {OrderStatusReady},
	OrderStatusReady:     {OrderStatusCompleted},
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type OrderKind string

const (
	OrderKindSingle       OrderKind = "single"
	OrderKindWeeklyMember OrderKind = "weekly_member"
)

// OrderItem snapshots the catalog price at admission time. ServeDate is the
// day the item is handed out; for single orders it equals the order's delivery date.
type OrderItem struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	UnitPrice  int64     `json:"unit_price"`
	Quantity   int       `json:"quantity"`
	ServeDate  string    `json:"serve_date"`
}

func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

type Order struct {
	ID           uuid.UUID
	ParentID     uuid.UUID
	StudentID    uuid.UUID
	BatchID      *uuid.UUID
	Items        []OrderItem
	TotalAmount  int64
	Status       OrderStatus
	Kind         OrderKind
	DeliveryDate time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CartItem is a client-submitted line. Prices are never taken from the client.
type CartItem struct {
	MenuItemID uuid.UUID
	Quantity   int
}

const DateLayout = "2006-01-02"

// ParseDate reads a calendar date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
