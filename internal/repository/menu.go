package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

const menuItemColumns = `id, name, price, available`

type MenuRepository struct {
	db *sql.DB
}

func NewMenuRepository(db *sql.DB) *MenuRepository {
	return &MenuRepository{db: db}
}

func (r *MenuRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.MenuItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE id = $1`, id,
	)
	m, err := scanMenuItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrMenuItemNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return m, nil
}

// GetByIDs returns the items that exist, keyed by id. Missing ids are simply absent.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.MenuItem, error) {
	out := make(map[uuid.UUID]domain.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items WHERE id = ANY($1::uuid[])`,
		uuidArray(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("GetByIDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByIDs: scan: %w", err)
		}
		out[m.ID] = *m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByIDs: rows: %w", err)
	}
	return out, nil
}

// GetStates reads only price and availability, for revalidating cached items.
func (r *MenuRepository) GetStates(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.MenuItemState, error) {
	out := make(map[uuid.UUID]domain.MenuItemState, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, price, available FROM menu_items WHERE id = ANY($1::uuid[])`,
		uuidArray(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("GetStates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var st domain.MenuItemState
		if err := rows.Scan(&id, &st.Price, &st.Available); err != nil {
			return nil, fmt.Errorf("GetStates: scan: %w", err)
		}
		out[id] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStates: rows: %w", err)
	}
	return out, nil
}

func scanMenuItem(s scanner) (*domain.MenuItem, error) {
	var m domain.MenuItem
	if err := s.Scan(&m.ID, &m.Name, &m.Price, &m.Available); err != nil {
		return nil, err
	}
	return &m, nil
}
