package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxEventStatus string

const (
	OutboxEventStatusPending    OutboxEventStatus = "pending"
	OutboxEventStatusDispatched OutboxEventStatus = "dispatched"
	OutboxEventStatusFailed     OutboxEventStatus = "failed"
)

type OutboxEventType string

const (
	OutboxEventTypeOrderPlaced    OutboxEventType = "order.placed"
	OutboxEventTypeOrderCancelled OutboxEventType = "order.cancelled"
)

type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	EventType   OutboxEventType
	Payload     json.RawMessage
	Status      OutboxEventStatus
	Attempts    int
	LastAttempt *time.Time
	CreatedAt   time.Time
}
