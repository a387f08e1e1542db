package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Get returns the live record for (owner, key), or nil when none exists or it has expired.
func (r *IdempotencyRepository) Get(ctx context.Context, ownerID uuid.UUID, key string) (*domain.IdempotencyRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT owner_id, idempotency_key, operation, request_hash, order_ids, new_balance, created_at, expires_at
		FROM idempotency_keys
		WHERE owner_id = $1 AND idempotency_key = $2 AND expires_at > now()`,
		ownerID, key,
	)
	rec, err := scanIdempotencyRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return rec, nil
}

// Claim reserves the key inside tx. An expired record is taken over. A live
// record, committed or still in flight in another transaction, yields
// ErrDuplicateIdempotencyKey once that transaction has finished.
func (r *IdempotencyRepository) Claim(ctx context.Context, tx *sql.Tx, rec *domain.IdempotencyRecord) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO idempotency_keys (owner_id, idempotency_key, operation, request_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id, idempotency_key) DO UPDATE
		SET operation = EXCLUDED.operation,
			request_hash = EXCLUDED.request_hash,
			order_ids = '{}',
			new_balance = NULL,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at <= now()`,
		rec.OwnerID, rec.Key, rec.Operation, rec.RequestHash, rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("Claim: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Claim: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Claim: %w", domain.ErrDuplicateIdempotencyKey)
	}
	return nil
}

func (r *IdempotencyRepository) Complete(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, key string, orderIDs []uuid.UUID, newBalance int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE idempotency_keys SET order_ids = $1, new_balance = $2
		WHERE owner_id = $3 AND idempotency_key = $4`,
		uuidArray(orderIDs), newBalance, ownerID, key,
	)
	if err != nil {
		return fmt.Errorf("Complete: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Complete: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Complete: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: rows affected: %w", err)
	}
	return n, nil
}

func scanIdempotencyRecord(s scanner) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	var orderIDs pq.StringArray
	var newBalance sql.NullInt64

	err := s.Scan(
		&rec.OwnerID, &rec.Key, &rec.Operation, &rec.RequestHash,
		&orderIDs, &newBalance, &rec.CreatedAt, &rec.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	rec.OrderIDs, err = parseUUIDArray(orderIDs)
	if err != nil {
		return nil, err
	}
	if newBalance.Valid {
		rec.NewBalance = &newBalance.Int64
	}
	return &rec, nil
}
