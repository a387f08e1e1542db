package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

const outboxEventColumns = `id, aggregate_id, event_type, payload, status,
	attempts, last_attempt, created_at`

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, tx *sql.Tx, event *domain.OutboxEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (
			id, aggregate_id, event_type, payload, status, attempts, last_attempt, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.AggregateID, event.EventType, []byte(event.Payload),
		event.Status, event.Attempts, event.LastAttempt, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ClaimPending locks up to limit pending events for the lifetime of tx.
// SKIP LOCKED lets several relays drain the table without double publishing.
func (r *OutboxRepository) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.OutboxEvent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+outboxEventColumns+` FROM outbox_events
		WHERE status = $1 ORDER BY created_at LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.OutboxEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var events []domain.OutboxEvent
	for rows.Next() {
		e, err := scanOutboxEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return events, nil
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.OutboxEventStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE outbox_events SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_events WHERE status = $1`,
		domain.OutboxEventStatusPending,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountPending: %w", err)
	}
	return n, nil
}

func scanOutboxEvent(s scanner) (*domain.OutboxEvent, error) {
	var e domain.OutboxEvent
	var payload []byte
	err := s.Scan(
		&e.ID, &e.AggregateID, &e.EventType, &payload,
		&e.Status, &e.Attempts, &e.LastAttempt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return &e, nil
}
