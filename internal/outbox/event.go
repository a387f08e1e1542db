package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

// OrderPayload is the message body consumers of the orders topic receive.
type OrderPayload struct {
	EventID      uuid.UUID          `json:"event_id"`
	EventType    string             `json:"event_type"`
	OrderID      uuid.UUID          `json:"order_id"`
	ParentID     uuid.UUID          `json:"parent_id"`
	StudentID    uuid.UUID          `json:"student_id"`
	BatchID      *uuid.UUID         `json:"batch_id,omitempty"`
	Kind         domain.OrderKind   `json:"order_kind"`
	Status       domain.OrderStatus `json:"status"`
	TotalAmount  int64              `json:"total_amount"`
	DeliveryDate string             `json:"delivery_date"`
	Items        []domain.OrderItem `json:"items"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

func NewOrderEvent(order *domain.Order, eventType domain.OutboxEventType, now time.Time) (*domain.OutboxEvent, error) {
	id := uuid.New()
	payload, err := json.Marshal(OrderPayload{
		EventID:      id,
		EventType:    string(eventType),
		OrderID:      order.ID,
		ParentID:     order.ParentID,
		StudentID:    order.StudentID,
		BatchID:      order.BatchID,
		Kind:         order.Kind,
		Status:       order.Status,
		TotalAmount:  order.TotalAmount,
		DeliveryDate: domain.FormatDate(order.DeliveryDate),
		Items:        order.Items,
		OccurredAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("NewOrderEvent: %w", err)
	}

	return &domain.OutboxEvent{
		ID:          id,
		AggregateID: order.ID,
		EventType:   eventType,
		Payload:     payload,
		Status:      domain.OutboxEventStatusPending,
		CreatedAt:   now,
	}, nil
}
