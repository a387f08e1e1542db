package ordering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
	"github.com/josh-kwaku/canteen-ledger/internal/metrics"
	"github.com/josh-kwaku/canteen-ledger/internal/pricing"
	"github.com/josh-kwaku/canteen-ledger/internal/service/idempotency"
)

const kindSingle = "single"

type PlaceOrderRequest struct {
	ParentID     uuid.UUID
	StudentID    uuid.UUID
	Items        []domain.CartItem
	DeliveryDate time.Time
	// ExpectedTotal is the client's own figure. When set it must match the
	// server-computed total exactly.
	ExpectedTotal  *int64
	IdempotencyKey string
}

func (r PlaceOrderRequest) validate() error {
	if strings.TrimSpace(r.IdempotencyKey) == "" {
		return domain.ErrMissingIdempotencyKey
	}
	if r.StudentID == uuid.Nil {
		return fmt.Errorf("student_id: %w", domain.ErrInvalidRequest)
	}
	if r.DeliveryDate.IsZero() {
		return fmt.Errorf("delivery_date: %w", domain.ErrInvalidRequest)
	}
	if len(r.Items) == 0 {
		return domain.ErrEmptyCart
	}
	return nil
}

type placeOrderFingerprint struct {
	StudentID     uuid.UUID  `json:"student_id"`
	Items         []cartLine `json:"items"`
	DeliveryDate  string     `json:"delivery_date"`
	ExpectedTotal *int64     `json:"expected_total"`
}

// PlaceOrder admits a single order: the order row, its debit and its event
// commit together or not at all. A repeated key returns the first outcome.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Admission, error) {
	log := logging.FromContext(ctx)

	adm, amount, err := s.placeOrder(ctx, req)
	if err != nil {
		s.recorder.ObserveAdmission(kindSingle, outcomeOf(err), 0)
		log.Warn("order rejected",
			"parent_id", req.ParentID,
			"student_id", req.StudentID,
			"kind", domain.Classify(err),
			"error", err,
		)
		return nil, fmt.Errorf("PlaceOrder: %w", err)
	}

	if adm.Replayed {
		s.recorder.ObserveAdmission(kindSingle, metrics.OutcomeReplayed, 0)
		log.Info("order request replayed", "parent_id", req.ParentID, "order_ids", adm.OrderIDs)
		return adm, nil
	}

	s.recorder.ObserveAdmission(kindSingle, metrics.OutcomeAdmitted, amount)
	log.Info("order placed",
		"parent_id", req.ParentID,
		"student_id", req.StudentID,
		"order_id", adm.OrderIDs[0],
		"total", amount,
		"new_balance", adm.NewBalance,
	)
	return adm, nil
}

func (s *Service) placeOrder(ctx context.Context, req PlaceOrderRequest) (*Admission, int64, error) {
	if err := req.validate(); err != nil {
		return nil, 0, err
	}

	date := domain.FormatDate(req.DeliveryDate)
	op := domain.IdempotencyOpPlaceOrder
	hash, err := idempotency.Hash(op, placeOrderFingerprint{
		StudentID:     req.StudentID,
		Items:         toCartLines(req.Items),
		DeliveryDate:  date,
		ExpectedTotal: req.ExpectedTotal,
	})
	if err != nil {
		return nil, 0, err
	}

	// A completed request replays even if the student was unlinked since.
	if adm, err := s.replay(ctx, req.ParentID, req.IdempotencyKey, op, hash); err != nil || adm != nil {
		return adm, 0, err
	}
	if err := s.ensureLinked(ctx, req.ParentID, req.StudentID); err != nil {
		return nil, 0, err
	}

	lines := make([]pricing.Line, len(req.Items))
	for i, it := range req.Items {
		lines[i] = pricing.Line{MenuItemID: it.MenuItemID, Quantity: it.Quantity, ServeDate: date}
	}
	quote, err := s.pricer.Price(ctx, lines)
	if err != nil {
		return nil, 0, err
	}
	if quote.Total <= 0 {
		return nil, 0, fmt.Errorf("order total %d: %w", quote.Total, domain.ErrInvalidAmount)
	}
	if req.ExpectedTotal != nil && *req.ExpectedTotal != quote.Total {
		return nil, 0, fmt.Errorf("expected %d, computed %d: %w", *req.ExpectedTotal, quote.Total, domain.ErrPriceMismatch)
	}

	now := s.now()
	order := &domain.Order{
		ID:           uuid.New(),
		ParentID:     req.ParentID,
		StudentID:    req.StudentID,
		Items:        quote.Items,
		TotalAmount:  quote.Total,
		Status:       domain.OrderStatusPending,
		Kind:         domain.OrderKindSingle,
		DeliveryDate: req.DeliveryDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	adm, err := s.admit(ctx, req.ParentID, req.IdempotencyKey, op, hash,
		[]*domain.Order{order}, quote.Total, domain.LedgerReasonSingleOrder)
	if err != nil {
		return nil, 0, err
	}
	return adm, quote.Total, nil
}
