package ordering

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/canteen-ledger/internal/domain"
)

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestWeeklyValidate_SortsDates(t *testing.T) {
	item := []domain.CartItem{{MenuItemID: uuid.New(), Quantity: 1}}
	req := WeeklyOrderRequest{
		ParentID:       uuid.New(),
		IdempotencyKey: "k",
		Selection: WeeklySelection{
			DatesWithOrders: []time.Time{mustDay(t, "2026-03-04"), mustDay(t, "2026-03-02"), mustDay(t, "2026-03-03")},
			ItemsByDate: map[string][]domain.CartItem{
				"2026-03-02": item, "2026-03-03": item, "2026-03-04": item,
			},
			SelectedStudentIDs: []uuid.UUID{uuid.New()},
		},
	}

	dates, err := req.validate()
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-02", "2026-03-03", "2026-03-04"}, dates)
}

func TestWeeklyValidate_DuplicateDate(t *testing.T) {
	item := []domain.CartItem{{MenuItemID: uuid.New(), Quantity: 1}}
	req := WeeklyOrderRequest{
		IdempotencyKey: "k",
		Selection: WeeklySelection{
			DatesWithOrders:    []time.Time{mustDay(t, "2026-03-02"), mustDay(t, "2026-03-02")},
			ItemsByDate:        map[string][]domain.CartItem{"2026-03-02": item},
			SelectedStudentIDs: []uuid.UUID{uuid.New()},
		},
	}

	_, err := req.validate()
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

type countingDirectory struct{ calls int }

func (c *countingDirectory) IsLinked(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	c.calls++
	return true, nil
}

func TestPlaceWeeklyOrders_SizeGuardBeforeAnyWork(t *testing.T) {
	dir := &countingDirectory{}
	svc := NewService(nil, dir, nil, nil, nil, nil, nil, nil, 2)

	item := []domain.CartItem{{MenuItemID: uuid.New(), Quantity: 1}}
	_, err := svc.PlaceWeeklyOrders(context.Background(), WeeklyOrderRequest{
		ParentID:       uuid.New(),
		IdempotencyKey: "k",
		Selection: WeeklySelection{
			DatesWithOrders:    []time.Time{mustDay(t, "2026-03-02")},
			ItemsByDate:        map[string][]domain.CartItem{"2026-03-02": item},
			SelectedStudentIDs: []uuid.UUID{uuid.New(), uuid.New(), uuid.New()},
		},
	})

	require.ErrorIs(t, err, domain.ErrBatchTooLarge)
	assert.Equal(t, domain.KindValidation, domain.Classify(err))
	assert.Zero(t, dir.calls)
}

func TestSortedIDs_LeavesSelectionOrder(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	selection := []uuid.UUID{b, a}

	assert.Equal(t, []uuid.UUID{a, b}, sortedIDs(selection))
	assert.Equal(t, []uuid.UUID{b, a}, selection)
}
