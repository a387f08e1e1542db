package ordering

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
	"github.com/josh-kwaku/canteen-ledger/internal/outbox"
)

const (
	cancelOutcomeCancelled = "cancelled"
	cancelOutcomeNoop      = "already_cancelled"
	cancelOutcomeRejected  = "rejected"
)

type Cancellation struct {
	OrderID    uuid.UUID
	Status     domain.OrderStatus
	Refunded   int64
	NewBalance int64
	// AlreadyCancelled is set when the order was cancelled by an earlier call.
	AlreadyCancelled bool
}

// CancelOrder cancels a pending or confirmed order and refunds its total to the
// wallet in the same transaction. Cancelling a cancelled order is a no-op.
func (s *Service) CancelOrder(ctx context.Context, parentID, orderID uuid.UUID) (*Cancellation, error) {
	log := logging.FromContext(ctx)

	var res *Cancellation
	err := s.tx.Run(ctx, func(tx *sql.Tx) error {
		res = nil

		order, err := s.orders.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.ParentID != parentID {
			return domain.ErrOrderNotFound
		}

		if order.Status == domain.OrderStatusCancelled {
			balance, err := s.ledger.Balance(ctx, tx, parentID)
			if err != nil {
				return err
			}
			res = &Cancellation{
				OrderID:          order.ID,
				Status:           order.Status,
				NewBalance:       balance,
				AlreadyCancelled: true,
			}
			return nil
		}

		if !order.Status.CanTransitionTo(domain.OrderStatusCancelled) {
			return fmt.Errorf("%s to %s: %w", order.Status, domain.OrderStatusCancelled, domain.ErrInvalidStatusTransition)
		}

		if err := s.orders.UpdateStatus(ctx, tx, order.ID, domain.OrderStatusCancelled); err != nil {
			return err
		}
		order.Status = domain.OrderStatusCancelled

		mv, err := s.ledger.Credit(ctx, tx, parentID, order.TotalAmount, []uuid.UUID{order.ID}, domain.LedgerReasonOrderCancelled)
		if err != nil {
			return err
		}

		ev, err := outbox.NewOrderEvent(order, domain.OutboxEventTypeOrderCancelled, s.now())
		if err != nil {
			return err
		}
		if err := s.outbox.Create(ctx, tx, ev); err != nil {
			return fmt.Errorf("queue event: %w", err)
		}

		res = &Cancellation{
			OrderID:    order.ID,
			Status:     order.Status,
			Refunded:   order.TotalAmount,
			NewBalance: mv.NewBalance,
		}
		return nil
	})
	if err != nil {
		s.recorder.ObserveCancellation(cancelOutcomeRejected)
		log.Warn("order cancellation rejected", "order_id", orderID, "parent_id", parentID, "error", err)
		return nil, fmt.Errorf("CancelOrder: %w", err)
	}

	if res.AlreadyCancelled {
		s.recorder.ObserveCancellation(cancelOutcomeNoop)
		return res, nil
	}

	s.recorder.ObserveCancellation(cancelOutcomeCancelled)
	log.Info("order cancelled",
		"order_id", res.OrderID,
		"parent_id", parentID,
		"refunded", res.Refunded,
		"new_balance", res.NewBalance,
	)
	return res, nil
}
