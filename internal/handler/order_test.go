package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/canteen-ledger/internal/auth"
	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/service/ordering"
)

type fakeOrderService struct {
	placed    *ordering.PlaceOrderRequest
	weekly    *ordering.WeeklyOrderRequest
	admission *ordering.Admission
	cancel    *ordering.Cancellation
	order     *domain.Order
	orders    []domain.Order
	total     int
	limit     int
	offset    int
	err       error
}

func (f *fakeOrderService) PlaceOrder(_ context.Context, req ordering.PlaceOrderRequest) (*ordering.Admission, error) {
	f.placed = &req
	return f.admission, f.err
}

func (f *fakeOrderService) PlaceWeeklyOrders(_ context.Context, req ordering.WeeklyOrderRequest) (*ordering.Admission, error) {
	f.weekly = &req
	return f.admission, f.err
}

func (f *fakeOrderService) CancelOrder(_ context.Context, _, _ uuid.UUID) (*ordering.Cancellation, error) {
	return f.cancel, f.err
}

func (f *fakeOrderService) GetOrderForParent(_ context.Context, _, _ uuid.UUID) (*domain.Order, error) {
	return f.order, f.err
}

func (f *fakeOrderService) ListOrders(_ context.Context, _ uuid.UUID, limit, offset int) ([]domain.Order, int, error) {
	f.limit, f.offset = limit, offset
	return f.orders, f.total, f.err
}

func authedRequest(method, target, body string, parentID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(auth.ContextWithUserID(req.Context(), parentID))
}

func TestOrderHandler_Place(t *testing.T) {
	parentID := uuid.New()
	studentID := uuid.New()
	itemID := uuid.New()
	orderID := uuid.New()

	svc := &fakeOrderService{admission: &ordering.Admission{OrderIDs: []uuid.UUID{orderID}, NewBalance: 200}}
	h := NewOrderHandler(svc)

	body := `{"student_id":"` + studentID.String() + `","items":[{"menu_item_id":"` + itemID.String() + `","quantity":2}],"delivery_date":"2026-10-19","expected_total":300}`
	req := authedRequest(http.MethodPost, "/api/v1/orders", body, parentID)
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()

	h.Place(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/api/v1/orders/"+orderID.String(), rec.Header().Get("Location"))

	require.NotNil(t, svc.placed)
	assert.Equal(t, parentID, svc.placed.ParentID)
	assert.Equal(t, studentID, svc.placed.StudentID)
	assert.Equal(t, "key-1", svc.placed.IdempotencyKey)
	assert.Equal(t, []domain.CartItem{{MenuItemID: itemID, Quantity: 2}}, svc.placed.Items)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), svc.placed.DeliveryDate)
	require.NotNil(t, svc.placed.ExpectedTotal)
	assert.Equal(t, int64(300), *svc.placed.ExpectedTotal)

	var resp struct {
		Data admissionDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(200), resp.Data.NewBalance)
	assert.False(t, resp.Data.Replayed)
}

func TestOrderHandler_Place_ReplayHeader(t *testing.T) {
	svc := &fakeOrderService{admission: &ordering.Admission{OrderIDs: []uuid.UUID{uuid.New()}, NewBalance: 200, Replayed: true}}
	h := NewOrderHandler(svc)

	body := `{"student_id":"` + uuid.NewString() + `","items":[{"menu_item_id":"` + uuid.NewString() + `","quantity":1}],"delivery_date":"2026-10-19"}`
	rec := httptest.NewRecorder()
	h.Place(rec, authedRequest(http.MethodPost, "/api/v1/orders", body, uuid.New()))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Idempotent-Replayed"))
}

func TestOrderHandler_Place_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{
			name:       "malformed json",
			body:       `{`,
			wantFields: nil,
		},
		{
			name:       "missing everything",
			body:       `{}`,
			wantFields: []string{"student_id", "items", "delivery_date"},
		},
		{
			name:       "bad item and date",
			body:       `{"student_id":"` + uuid.NewString() + `","items":[{"menu_item_id":"x","quantity":0}],"delivery_date":"19/10/2026"}`,
			wantFields: []string{"items[0].menu_item_id", "items[0].quantity", "delivery_date"},
		},
		{
			name:       "quantity above ceiling",
			body:       `{"student_id":"` + uuid.NewString() + `","items":[{"menu_item_id":"` + uuid.NewString() + `","quantity":9223372036854775807}],"delivery_date":"2026-10-19"}`,
			wantFields: []string{"items[0].quantity"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeOrderService{}
			rec := httptest.NewRecorder()
			NewOrderHandler(svc).Place(rec, authedRequest(http.MethodPost, "/api/v1/orders", tc.body, uuid.New()))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, svc.placed)

			if tc.wantFields == nil {
				assert.Equal(t, "INVALID_REQUEST", decodeError(t, rec).Error.Code)
				return
			}
			env := decodeError(t, rec)
			assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
			var fields []FieldError
			require.NoError(t, json.Unmarshal(env.Error.Details, &fields))
			var got []string
			for _, f := range fields {
				got = append(got, f.Field)
			}
			assert.ElementsMatch(t, tc.wantFields, got)
		})
	}
}

func TestOrderHandler_Place_InsufficientFunds(t *testing.T) {
	svc := &fakeOrderService{err: &domain.InsufficientFundsError{Required: 300, Available: 200}}
	body := `{"student_id":"` + uuid.NewString() + `","items":[{"menu_item_id":"` + uuid.NewString() + `","quantity":1}],"delivery_date":"2026-10-19"}`

	rec := httptest.NewRecorder()
	NewOrderHandler(svc).Place(rec, authedRequest(http.MethodPost, "/api/v1/orders", body, uuid.New()))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", decodeError(t, rec).Error.Code)
}

func TestOrderHandler_Place_Unauthenticated(t *testing.T) {
	rec := httptest.NewRecorder()
	NewOrderHandler(&fakeOrderService{}).Place(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderHandler_PlaceWeekly(t *testing.T) {
	parentID := uuid.New()
	s1, s2 := uuid.New(), uuid.New()
	itemID := uuid.New()
	svc := &fakeOrderService{admission: &ordering.Admission{OrderIDs: []uuid.UUID{uuid.New(), uuid.New()}, NewBalance: 50}}

	body := `{
		"dates_with_orders": ["2026-10-21", "2026-10-19"],
		"items_by_date": {
			"2026-10-19": [{"menu_item_id":"` + itemID.String() + `","quantity":1}],
			"2026-10-21": [{"menu_item_id":"` + itemID.String() + `","quantity":2}]
		},
		"per_student_total": 450,
		"selected_student_ids": ["` + s1.String() + `","` + s2.String() + `"]
	}`
	req := authedRequest(http.MethodPost, "/api/v1/orders/weekly", body, parentID)
	req.Header.Set("Idempotency-Key", "week-42")
	rec := httptest.NewRecorder()

	NewOrderHandler(svc).PlaceWeekly(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.weekly)
	assert.Equal(t, parentID, svc.weekly.ParentID)
	assert.Equal(t, "week-42", svc.weekly.IdempotencyKey)

	sel := svc.weekly.Selection
	assert.Equal(t, []uuid.UUID{s1, s2}, sel.SelectedStudentIDs)
	assert.Len(t, sel.DatesWithOrders, 2)
	assert.Equal(t, []domain.CartItem{{MenuItemID: itemID, Quantity: 2}}, sel.ItemsByDate["2026-10-21"])
	require.NotNil(t, sel.PerStudentTotal)
	assert.Equal(t, int64(450), *sel.PerStudentTotal)
}

func TestOrderHandler_PlaceWeekly_Validation(t *testing.T) {
	svc := &fakeOrderService{}
	body := `{"dates_with_orders":["monday"],"selected_student_ids":["nope"]}`

	rec := httptest.NewRecorder()
	NewOrderHandler(svc).PlaceWeekly(rec, authedRequest(http.MethodPost, "/api/v1/orders/weekly", body, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeError(t, rec).Error.Code)
	assert.Nil(t, svc.weekly)
}

func TestOrderHandler_Cancel(t *testing.T) {
	orderID := uuid.New()
	svc := &fakeOrderService{cancel: &ordering.Cancellation{
		OrderID:    orderID,
		Status:     domain.OrderStatusCancelled,
		Refunded:   300,
		NewBalance: 500,
	}}

	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", "", uuid.New())
	req.SetPathValue("id", orderID.String())
	rec := httptest.NewRecorder()

	NewOrderHandler(svc).Cancel(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data cancellationDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cancelled", resp.Data.Status)
	assert.Equal(t, int64(500), resp.Data.NewBalance)
}

func TestOrderHandler_Cancel_NotCancellable(t *testing.T) {
	svc := &fakeOrderService{err: domain.ErrInvalidStatusTransition}
	orderID := uuid.New()
	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", "", uuid.New())
	req.SetPathValue("id", orderID.String())
	rec := httptest.NewRecorder()

	NewOrderHandler(svc).Cancel(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestOrderHandler_Get_BadID(t *testing.T) {
	req := authedRequest(http.MethodGet, "/api/v1/orders/xyz", "", uuid.New())
	req.SetPathValue("id", "xyz")
	rec := httptest.NewRecorder()

	NewOrderHandler(&fakeOrderService{}).Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ORDER_NOT_FOUND", decodeError(t, rec).Error.Code)
}

func TestOrderHandler_Get(t *testing.T) {
	o := &domain.Order{
		ID:           uuid.New(),
		StudentID:    uuid.New(),
		Items:        []domain.OrderItem{{MenuItemID: uuid.New(), Name: "Jollof", UnitPrice: 150, Quantity: 2, ServeDate: "2026-10-19"}},
		TotalAmount:  300,
		Status:       domain.OrderStatusConfirmed,
		Kind:         domain.OrderKindSingle,
		DeliveryDate: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
	}
	req := authedRequest(http.MethodGet, "/api/v1/orders/"+o.ID.String(), "", uuid.New())
	req.SetPathValue("id", o.ID.String())
	rec := httptest.NewRecorder()

	NewOrderHandler(&fakeOrderService{order: o}).Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data orderDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-10-19", resp.Data.DeliveryDate)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, int64(300), resp.Data.Items[0].LineTotal)
}

func TestOrderHandler_List(t *testing.T) {
	svc := &fakeOrderService{orders: []domain.Order{{ID: uuid.New()}}, total: 7}
	rec := httptest.NewRecorder()

	NewOrderHandler(svc).List(rec, authedRequest(http.MethodGet, "/api/v1/orders?limit=5&offset=5", "", uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.limit)
	assert.Equal(t, 5, svc.offset)

	var resp struct {
		Data orderListDTO `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Data.Total)
	assert.Len(t, resp.Data.Orders, 1)
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		query      string
		want       page
		wantFields int
	}{
		{"", page{Limit: 20}, 0},
		{"limit=100&offset=40", page{Limit: 100, Offset: 40}, 0},
		{"limit=0", page{Limit: 20}, 1},
		{"limit=101&offset=-1", page{Limit: 20}, 2},
		{"limit=ten", page{Limit: 20}, 1},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got, fields := parsePage(httptest.NewRequest(http.MethodGet, "/x?"+tc.query, nil))
			assert.Equal(t, tc.want, got)
			assert.Len(t, fields, tc.wantFields)
		})
	}
}
