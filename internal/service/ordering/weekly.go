package ordering

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
	"github.com/josh-kwaku/canteen-ledger/internal/metrics"
	"github.com/josh-kwaku/canteen-ledger/internal/pricing"
	"github.com/josh-kwaku/canteen-ledger/internal/service/idempotency"
)

const kindWeekly = "weekly"

// WeeklySelection is one week of meals applied identically to every selected student.
type WeeklySelection struct {
	DatesWithOrders []time.Time
	// ItemsByDate is keyed by domain.DateLayout dates.
	ItemsByDate        map[string][]domain.CartItem
	PerStudentTotal    *int64
	SelectedStudentIDs []uuid.UUID
}

type WeeklyOrderRequest struct {
	ParentID       uuid.UUID
	Selection      WeeklySelection
	IdempotencyKey string
}

// validate returns the selected dates in ascending order.
func (r WeeklyOrderRequest) validate() ([]string, error) {
	if strings.TrimSpace(r.IdempotencyKey) == "" {
		return nil, domain.ErrMissingIdempotencyKey
	}

	sel := r.Selection
	if len(sel.SelectedStudentIDs) == 0 {
		return nil, fmt.Errorf("selected_student_ids: %w", domain.ErrInvalidRequest)
	}
	seenStudents := make(map[uuid.UUID]struct{}, len(sel.SelectedStudentIDs))
	for _, id := range sel.SelectedStudentIDs {
		if _, dup := seenStudents[id]; dup {
			return nil, fmt.Errorf("student %s selected twice: %w", id, domain.ErrInvalidRequest)
		}
		seenStudents[id] = struct{}{}
	}

	if len(sel.DatesWithOrders) == 0 {
		return nil, domain.ErrEmptyCart
	}
	dates := make([]string, 0, len(sel.DatesWithOrders))
	seenDates := make(map[string]struct{}, len(sel.DatesWithOrders))
	for _, d := range sel.DatesWithOrders {
		key := domain.FormatDate(d)
		if _, dup := seenDates[key]; dup {
			return nil, fmt.Errorf("date %s listed twice: %w", key, domain.ErrInvalidRequest)
		}
		seenDates[key] = struct{}{}
		if len(sel.ItemsByDate[key]) == 0 {
			return nil, fmt.Errorf("date %s has no items: %w", key, domain.ErrEmptyCart)
		}
		dates = append(dates, key)
	}
	for key := range sel.ItemsByDate {
		if _, ok := seenDates[key]; !ok {
			return nil, fmt.Errorf("items for unselected date %s: %w", key, domain.ErrInvalidRequest)
		}
	}

	sort.Strings(dates)
	return dates, nil
}

type weeklyFingerprint struct {
	Dates           []string              `json:"dates"`
	ItemsByDate     map[string][]cartLine `json:"items_by_date"`
	PerStudentTotal *int64                `json:"per_student_total"`
	StudentIDs      []uuid.UUID           `json:"student_ids"`
}

// PlaceWeeklyOrders creates one order per selected student, all sharing a
// batch id, and pays for them with a single debit. Either every order commits
// with the debit or none does.
func (s *Service) PlaceWeeklyOrders(ctx context.Context, req WeeklyOrderRequest) (*Admission, error) {
	log := logging.FromContext(ctx)

	adm, amount, err := s.placeWeeklyOrders(ctx, req)
	if err != nil {
		s.recorder.ObserveAdmission(kindWeekly, outcomeOf(err), 0)
		log.Warn("weekly order rejected",
			"parent_id", req.ParentID,
			"students", len(req.Selection.SelectedStudentIDs),
			"kind", domain.Classify(err),
			"error", err,
		)
		return nil, fmt.Errorf("PlaceWeeklyOrders: %w", err)
	}

	if adm.Replayed {
		s.recorder.ObserveAdmission(kindWeekly, metrics.OutcomeReplayed, 0)
		log.Info("weekly order request replayed", "parent_id", req.ParentID, "order_ids", adm.OrderIDs)
		return adm, nil
	}

	s.recorder.ObserveAdmission(kindWeekly, metrics.OutcomeAdmitted, amount)
	log.Info("weekly orders placed",
		"parent_id", req.ParentID,
		"orders", len(adm.OrderIDs),
		"total", amount,
		"new_balance", adm.NewBalance,
	)
	return adm, nil
}

func (s *Service) placeWeeklyOrders(ctx context.Context, req WeeklyOrderRequest) (*Admission, int64, error) {
	dates, err := req.validate()
	if err != nil {
		return nil, 0, err
	}

	sel := req.Selection
	n := len(sel.SelectedStudentIDs)
	if s.maxBatch > 0 && n > s.maxBatch {
		return nil, 0, fmt.Errorf("%d orders, limit %d: %w", n, s.maxBatch, domain.ErrBatchTooLarge)
	}

	fp := weeklyFingerprint{
		Dates:           dates,
		ItemsByDate:     make(map[string][]cartLine, len(dates)),
		PerStudentTotal: sel.PerStudentTotal,
		StudentIDs:      sortedIDs(sel.SelectedStudentIDs),
	}
	var lines []pricing.Line
	for _, d := range dates {
		items := sel.ItemsByDate[d]
		fp.ItemsByDate[d] = toCartLines(items)
		for _, it := range items {
			lines = append(lines, pricing.Line{MenuItemID: it.MenuItemID, Quantity: it.Quantity, ServeDate: d})
		}
	}

	op := domain.IdempotencyOpPlaceWeeklyOrders
	hash, err := idempotency.Hash(op, fp)
	if err != nil {
		return nil, 0, err
	}
	if adm, err := s.replay(ctx, req.ParentID, req.IdempotencyKey, op, hash); err != nil || adm != nil {
		return adm, 0, err
	}

	for _, studentID := range sel.SelectedStudentIDs {
		if err := s.ensureLinked(ctx, req.ParentID, studentID); err != nil {
			return nil, 0, err
		}
	}

	quote, err := s.pricer.Price(ctx, lines)
	if err != nil {
		return nil, 0, err
	}
	perStudent := quote.Total
	if perStudent <= 0 {
		return nil, 0, fmt.Errorf("per-student total %d: %w", perStudent, domain.ErrInvalidAmount)
	}
	if sel.PerStudentTotal != nil && *sel.PerStudentTotal != perStudent {
		return nil, 0, fmt.Errorf("expected %d per student, computed %d: %w",
			*sel.PerStudentTotal, perStudent, domain.ErrPriceMismatch)
	}
	combined := perStudent * int64(n)

	deliveryDate, err := domain.ParseDate(dates[0])
	if err != nil {
		return nil, 0, fmt.Errorf("delivery date: %w", domain.ErrInvalidRequest)
	}

	now := s.now()
	batchID := uuid.New()
	orders := make([]*domain.Order, n)
	for i, studentID := range sel.SelectedStudentIDs {
		items := make([]domain.OrderItem, len(quote.Items))
		copy(items, quote.Items)
		orders[i] = &domain.Order{
			ID:           uuid.New(),
			ParentID:     req.ParentID,
			StudentID:    studentID,
			BatchID:      &batchID,
			Items:        items,
			TotalAmount:  perStudent,
			Status:       domain.OrderStatusPending,
			Kind:         domain.OrderKindWeeklyMember,
			DeliveryDate: deliveryDate,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	adm, err := s.admit(ctx, req.ParentID, req.IdempotencyKey, op, hash,
		orders, combined, domain.LedgerReasonWeeklyOrder)
	if err != nil {
		return nil, 0, err
	}
	return adm, combined, nil
}

// sortedIDs returns a sorted copy so the selection order does not change the request hash.
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
