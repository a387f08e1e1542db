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

const ledgerColumns = `id, owner_id, signed_amount, balance_before, balance_after,
	related_order_ids, reason, created_at`

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (
			id, owner_id, signed_amount, balance_before, balance_after,
			related_order_ids, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.OwnerID, entry.SignedAmount, entry.BalanceBefore, entry.BalanceAfter,
		uuidArray(entry.RelatedOrderIDs), entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LedgerRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE owner_id = $1`, ownerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByOwner: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE owner_id = $1 ORDER BY seq DESC LIMIT $2 OFFSET $3`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByOwner: %w", err)
	}
	defer rows.Close()

	entries, err := collectLedgerEntries(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByOwner: %w", err)
	}
	return entries, total, nil
}

// GetByOrderID returns every entry that settles or refunds the given order.
func (r *LedgerRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE $1 = ANY(related_order_ids) ORDER BY seq`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByOrderID: %w", err)
	}
	defer rows.Close()

	entries, err := collectLedgerEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("GetByOrderID: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepository) Latest(ctx context.Context, ownerID uuid.UUID) (*domain.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE owner_id = $1 ORDER BY seq DESC LIMIT 1`, ownerID,
	)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Latest: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Latest: %w", err)
	}
	return e, nil
}

func collectLedgerEntries(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return entries, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var related pq.StringArray
	err := s.Scan(
		&e.ID, &e.OwnerID, &e.SignedAmount, &e.BalanceBefore, &e.BalanceAfter,
		&related, &e.Reason, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.RelatedOrderIDs, err = parseUUIDArray(related)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
