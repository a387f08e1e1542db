package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

type eventRepo interface {
	ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.OutboxEvent, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.OutboxEventStatus) error
}

type txRunner interface {
	Run(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type observer interface {
	ObserveOutbox(status string)
}

const DefaultMaxAttempts = 10

// Relay drains committed outbox rows to the publisher. Rows stay locked for
// the duration of one batch, so concurrent relays never publish the same row.
type Relay struct {
	events      eventRepo
	tx          txRunner
	publisher   Publisher
	observer    observer
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewRelay(
	events eventRepo,
	tx txRunner,
	publisher Publisher,
	obs observer,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
) *Relay {
	return &Relay{
		events:      events,
		tx:          tx,
		publisher:   publisher,
		observer:    obs,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: DefaultMaxAttempts,
	}
}

func (r *Relay) Start(ctx context.Context) {
	r.logger.Info("outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil {
				r.logger.Error("failed to relay outbox events", "error", err)
			}
		}
	}
}

// ProcessBatch publishes one batch and returns how many events were dispatched.
// A failed publish leaves the batch pending with its attempt count raised;
// events that reach maxAttempts are parked as failed.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	var dispatched int
	var publishErr error

	err := r.tx.Run(ctx, func(tx *sql.Tx) error {
		dispatched, publishErr = 0, nil

		events, err := r.events.ClaimPending(ctx, tx, r.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		publishErr = r.publisher.Publish(ctx, events)

		for _, e := range events {
			status := r.nextStatus(e, publishErr)
			if err := r.events.UpdateStatus(ctx, tx, e.ID, status); err != nil {
				return err
			}
			r.observe(status)
			if status == domain.OutboxEventStatusDispatched {
				dispatched++
			} else if status == domain.OutboxEventStatusFailed {
				r.logger.Error("outbox event parked after repeated publish failures",
					"event_id", e.ID,
					"event_type", e.EventType,
					"attempts", e.Attempts+1,
				)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ProcessBatch: %w", err)
	}
	if publishErr != nil {
		return 0, fmt.Errorf("ProcessBatch: %w", publishErr)
	}
	return dispatched, nil
}

func (r *Relay) nextStatus(e domain.OutboxEvent, publishErr error) domain.OutboxEventStatus {
	if publishErr == nil {
		return domain.OutboxEventStatusDispatched
	}
	if e.Attempts+1 >= r.maxAttempts {
		return domain.OutboxEventStatusFailed
	}
	return domain.OutboxEventStatusPending
}

func (r *Relay) observe(status domain.OutboxEventStatus) {
	if r.observer != nil {
		r.observer.ObserveOutbox(string(status))
	}
}
