package pricing

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

var (
	hundred      = decimal.NewFromInt(100)
	maxMinorUnit = decimal.NewFromInt(math.MaxInt64)
)

// QuantityCeiling bounds every line, before and after merging, whatever the
// configured maximum. It keeps merged quantities and line totals far from overflow.
const QuantityCeiling = 1000

type Catalog interface {
	GetItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.MenuItem, error)
}

// Line is one requested item for a given serve date.
type Line struct {
	MenuItemID uuid.UUID
	Quantity   int
	ServeDate  string
}

type Quote struct {
	Items []domain.OrderItem
	Total int64
}

type Service struct {
	catalog     Catalog
	maxQuantity int
}

// NewService clamps maxQuantity to QuantityCeiling; zero or negative means the ceiling.
func NewService(catalog Catalog, maxQuantity int) *Service {
	if maxQuantity <= 0 || maxQuantity > QuantityCeiling {
		maxQuantity = QuantityCeiling
	}
	return &Service{catalog: catalog, maxQuantity: maxQuantity}
}

// Price resolves every line against the catalog and totals it in minor units.
// Lines naming the same item for the same serve date are merged first.
func (s *Service) Price(ctx context.Context, lines []Line) (*Quote, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("Price: %w", domain.ErrEmptyCart)
	}
	if err := s.checkQuantities(lines); err != nil {
		return nil, fmt.Errorf("Price: %w", err)
	}
	merged := Merge(lines)
	if err := s.checkQuantities(merged); err != nil {
		return nil, fmt.Errorf("Price: %w", err)
	}

	items, err := s.catalog.GetItems(ctx, distinctIDs(merged))
	if err != nil {
		return nil, fmt.Errorf("Price: %w", err)
	}

	quote := &Quote{Items: make([]domain.OrderItem, 0, len(merged))}
	for _, l := range merged {
		m, ok := items[l.MenuItemID]
		if !ok {
			return nil, fmt.Errorf("Price: %s: %w", l.MenuItemID, domain.ErrMenuItemNotFound)
		}
		if !m.Available {
			return nil, fmt.Errorf("Price: %s: %w", l.MenuItemID, domain.ErrMenuItemUnavailable)
		}

		unit, err := ToMinorUnits(m.Price)
		if err != nil {
			return nil, fmt.Errorf("Price: %s: %w", l.MenuItemID, err)
		}
		if unit > math.MaxInt64/int64(l.Quantity) {
			return nil, fmt.Errorf("Price: %s: line total overflows: %w", l.MenuItemID, domain.ErrInvalidPrice)
		}

		item := domain.OrderItem{
			MenuItemID: m.ID,
			Name:       m.Name,
			UnitPrice:  unit,
			Quantity:   l.Quantity,
			ServeDate:  l.ServeDate,
		}
		if quote.Total > math.MaxInt64-item.LineTotal() {
			return nil, fmt.Errorf("Price: order total overflows: %w", domain.ErrInvalidPrice)
		}
		quote.Items = append(quote.Items, item)
		quote.Total += item.LineTotal()
	}
	return quote, nil
}

func (s *Service) checkQuantities(lines []Line) error {
	for _, l := range lines {
		if l.Quantity <= 0 || l.Quantity > s.maxQuantity {
			return fmt.Errorf("item %s quantity %d outside 1..%d: %w",
				l.MenuItemID, l.Quantity, s.maxQuantity, domain.ErrInvalidQuantity)
		}
	}
	return nil
}

// ToMinorUnits converts a currency amount to cents. Negative amounts and
// amounts with sub-cent precision are rejected rather than rounded.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("ToMinorUnits: %s: %w", amount, domain.ErrInvalidPrice)
	}
	cents := amount.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) || cents.GreaterThan(maxMinorUnit) {
		return 0, fmt.Errorf("ToMinorUnits: %s: %w", amount, domain.ErrInvalidPrice)
	}
	return cents.IntPart(), nil
}

// Merge folds lines for the same item and serve date, keeping first-seen order.
func Merge(lines []Line) []Line {
	type key struct {
		id   uuid.UUID
		date string
	}
	idx := make(map[key]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		k := key{l.MenuItemID, l.ServeDate}
		if i, ok := idx[k]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[k] = len(out)
		out = append(out, l)
	}
	return out
}

func distinctIDs(lines []Line) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.MenuItemID]; ok {
			continue
		}
		seen[l.MenuItemID] = struct{}{}
		ids = append(ids, l.MenuItemID)
	}
	return ids
}
