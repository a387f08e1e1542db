package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

const walletColumns = `owner_id, balance, version, created_at, updated_at`

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create opens a zero-balance wallet. Opening an existing wallet is a no-op.
func (r *WalletRepository) Create(ctx context.Context, ownerID uuid.UUID, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wallets (owner_id, balance, version, created_at, updated_at)
		VALUES ($1, 0, 0, $2, $2)
		ON CONFLICT (owner_id) DO NOTHING`,
		ownerID, now,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WalletRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByOwner: %w", domain.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("GetByOwner: %w", err)
	}
	return w, nil
}

// Get reads the wallet inside tx without taking a row lock. The caller is
// expected to write back through UpdateBalance, which fails on a stale version.
func (r *WalletRepository) Get(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID) (*domain.Wallet, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, newBalance int64, expectedVersion int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, version = version + 1, updated_at = now()
		WHERE owner_id = $2 AND version = $3`,
		newBalance, ownerID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrVersionConflict)
	}
	return nil
}

func scanWallet(s scanner) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.Scan(&w.OwnerID, &w.Balance, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
