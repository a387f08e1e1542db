package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

const orderColumns = `id, parent_id, student_id, batch_id, items, total_amount,
	status, order_kind, delivery_date, created_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("Create: marshal items: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (
			id, parent_id, student_id, batch_id, items, total_amount,
			status, order_kind, delivery_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.ParentID, order.StudentID, order.BatchID, items, order.TotalAmount,
		order.Status, order.Kind, domain.FormatDate(order.DeliveryDate), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.OrderStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = now() WHERE id = $2`,
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
		return fmt.Errorf("UpdateStatus: %w", domain.ErrOrderNotFound)
	}
	return nil
}

func (r *OrderRepository) GetByParent(ctx context.Context, parentID uuid.UUID, limit, offset int) ([]domain.Order, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE parent_id = $1`, parentID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByParent: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE parent_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		parentID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByParent: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("GetByParent: scan: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("GetByParent: rows: %w", err)
	}
	return orders, total, nil
}

func scanOrder(s scanner) (*domain.Order, error) {
	var o domain.Order
	var batchID uuid.NullUUID
	var items []byte

	err := s.Scan(
		&o.ID, &o.ParentID, &o.StudentID, &batchID, &items, &o.TotalAmount,
		&o.Status, &o.Kind, &o.DeliveryDate, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if !o.Status.IsValid() {
		return nil, fmt.Errorf("order %s: unknown status %q", o.ID, o.Status)
	}
	if batchID.Valid {
		o.BatchID = &batchID.UUID
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	return &o, nil
}
