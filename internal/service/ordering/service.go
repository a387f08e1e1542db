package ordering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/metrics"
	"github.com/josh-kwaku/canteen-ledger/internal/outbox"
	"github.com/josh-kwaku/canteen-ledger/internal/pricing"
	"github.com/josh-kwaku/canteen-ledger/internal/service/idempotency"
	"github.com/josh-kwaku/canteen-ledger/internal/service/wallet"
)

type orderRepo interface {
	Create(ctx context.Context, tx *sql.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.OrderStatus) error
	GetByParent(ctx context.Context, parentID uuid.UUID, limit, offset int) ([]domain.Order, int, error)
}

type studentDirectory interface {
	IsLinked(ctx context.Context, parentID, studentID uuid.UUID) (bool, error)
}

type pricer interface {
	Price(ctx context.Context, lines []pricing.Line) (*pricing.Quote, error)
}

type walletLedger interface {
	Debit(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount int64, orderIDs []uuid.UUID, reason domain.LedgerReason) (*wallet.Movement, error)
	Credit(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, amount int64, orderIDs []uuid.UUID, reason domain.LedgerReason) (*wallet.Movement, error)
	Balance(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID) (int64, error)
}

type idempotencyGuard interface {
	Lookup(ctx context.Context, ownerID uuid.UUID, key string, op domain.IdempotencyOperation, requestHash string) (*idempotency.Outcome, error)
	Claim(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, key string, op domain.IdempotencyOperation, requestHash string) error
	Complete(ctx context.Context, tx *sql.Tx, ownerID uuid.UUID, key string, out idempotency.Outcome) error
}

type outboxRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.OutboxEvent) error
}

type txRunner interface {
	Run(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type recorder interface {
	ObserveAdmission(kind, outcome string, amount int64)
	ObserveCancellation(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAdmission(string, string, int64) {}
func (nopRecorder) ObserveCancellation(string)             {}

// Admission is the outcome of a placed or replayed order request.
type Admission struct {
	OrderIDs   []uuid.UUID
	NewBalance int64
	Replayed   bool
}

type Service struct {
	orders   orderRepo
	students studentDirectory
	pricer   pricer
	ledger   walletLedger
	guard    idempotencyGuard
	outbox   outboxRepo
	tx       txRunner
	recorder recorder
	maxBatch int
	now      func() time.Time
}

func NewService(
	orders orderRepo,
	students studentDirectory,
	pricer pricer,
	ledger walletLedger,
	guard idempotencyGuard,
	outbox outboxRepo,
	tx txRunner,
	rec recorder,
	maxBatchOrders int,
) *Service {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{
		orders:   orders,
		students: students,
		pricer:   pricer,
		ledger:   ledger,
		guard:    guard,
		outbox:   outbox,
		tx:       tx,
		recorder: rec,
		maxBatch: maxBatchOrders,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetOrderForParent hides orders of other parents behind ErrOrderNotFound.
func (s *Service) GetOrderForParent(ctx context.Context, parentID, orderID uuid.UUID) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("GetOrderForParent: %w", err)
	}
	if o.ParentID != parentID {
		return nil, fmt.Errorf("GetOrderForParent: %w", domain.ErrOrderNotFound)
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, parentID uuid.UUID, limit, offset int) ([]domain.Order, int, error) {
	orders, total, err := s.orders.GetByParent(ctx, parentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListOrders: %w", err)
	}
	return orders, total, nil
}

func (s *Service) ensureLinked(ctx context.Context, parentID, studentID uuid.UUID) error {
	linked, err := s.students.IsLinked(ctx, parentID, studentID)
	if err != nil {
		return err
	}
	if !linked {
		return fmt.Errorf("student %s: %w", studentID, domain.ErrStudentNotLinked)
	}
	return nil
}

// replay answers a request whose key already has a committed outcome.
func (s *Service) replay(ctx context.Context, parentID uuid.UUID, key string, op domain.IdempotencyOperation, hash string) (*Admission, error) {
	out, err := s.guard.Lookup(ctx, parentID, key, op, hash)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return &Admission{OrderIDs: out.OrderIDs, NewBalance: out.NewBalance, Replayed: true}, nil
}

// admit runs the write half of an admission: claim the key, insert the
// orders, take one debit covering all of them, queue their events and record
// the outcome. Losing the claim to a concurrent request with the same key
// returns that request's outcome instead.
func (s *Service) admit(
	ctx context.Context,
	parentID uuid.UUID,
	key string,
	op domain.IdempotencyOperation,
	hash string,
	orders []*domain.Order,
	amount int64,
	reason domain.LedgerReason,
) (*Admission, error) {
	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	var newBalance int64
	err := s.tx.Run(ctx, func(tx *sql.Tx) error {
		if err := s.guard.Claim(ctx, tx, parentID, key, op, hash); err != nil {
			return err
		}

		for _, o := range orders {
			if err := s.orders.Create(ctx, tx, o); err != nil {
				return fmt.Errorf("insert order: %w", err)
			}
		}

		mv, err := s.ledger.Debit(ctx, tx, parentID, amount, ids, reason)
		if err != nil {
			return err
		}

		for _, o := range orders {
			ev, err := outbox.NewOrderEvent(o, domain.OutboxEventTypeOrderPlaced, s.now())
			if err != nil {
				return err
			}
			if err := s.outbox.Create(ctx, tx, ev); err != nil {
				return fmt.Errorf("queue event: %w", err)
			}
		}

		if err := s.guard.Complete(ctx, tx, parentID, key, idempotency.Outcome{OrderIDs: ids, NewBalance: mv.NewBalance}); err != nil {
			return err
		}
		newBalance = mv.NewBalance
		return nil
	})

	if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		adm, lookupErr := s.replay(ctx, parentID, key, op, hash)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if adm == nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
		return adm, nil
	}
	if err != nil {
		return nil, err
	}

	return &Admission{OrderIDs: ids, NewBalance: newBalance}, nil
}

func outcomeOf(err error) string {
	switch domain.Classify(err) {
	case domain.KindInsufficientFunds:
		return metrics.OutcomeInsufficientFunds
	case domain.KindConflict:
		return metrics.OutcomeConflict
	case domain.KindValidation, domain.KindNotFound:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// cartLine is the hashed form of a requested item.
type cartLine struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int       `json:"quantity"`
}

func toCartLines(items []domain.CartItem) []cartLine {
	out := make([]cartLine, len(items))
	for i, it := range items {
		out[i] = cartLine{MenuItemID: it.MenuItemID, Quantity: it.Quantity}
	}
	return out
}
