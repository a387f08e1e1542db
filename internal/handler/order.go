package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/canteen-ledger/internal/auth"
	"github.com/josh-kwaku/canteen-ledger/internal/domain"
	"github.com/josh-kwaku/canteen-ledger/internal/logging"
	"github.com/josh-kwaku/canteen-ledger/internal/pricing"
	"github.com/josh-kwaku/canteen-ledger/internal/service/ordering"
)

const idempotencyKeyHeader = "Idempotency-Key"

type orderService interface {
	PlaceOrder(ctx context.Context, req ordering.PlaceOrderRequest) (*ordering.Admission, error)
	PlaceWeeklyOrders(ctx context.Context, req ordering.WeeklyOrderRequest) (*ordering.Admission, error)
	CancelOrder(ctx context.Context, parentID, orderID uuid.UUID) (*ordering.Cancellation, error)
	GetOrderForParent(ctx context.Context, parentID, orderID uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, parentID uuid.UUID, limit, offset int) ([]domain.Order, int, error)
}

type OrderHandler struct {
	orders orderService
}

func NewOrderHandler(orders orderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type cartItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

func validateCartItems(field string, items []cartItemRequest) []FieldError {
	var errs []FieldError
	for i, item := range items {
		if _, err := uuid.Parse(item.MenuItemID); err != nil {
			errs = append(errs, FieldError{Field: fmt.Sprintf("%s[%d].menu_item_id", field, i), Message: "must be a valid UUID"})
		}
		if item.Quantity <= 0 || item.Quantity > pricing.QuantityCeiling {
			errs = append(errs, FieldError{Field: fmt.Sprintf("%s[%d].quantity", field, i), Message: fmt.Sprintf("must be between 1 and %d", pricing.QuantityCeiling)})
		}
	}
	return errs
}

func toCartItems(items []cartItemRequest) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.CartItem{
			MenuItemID: uuid.MustParse(item.MenuItemID),
			Quantity:   item.Quantity,
		})
	}
	return out
}

type placeOrderRequest struct {
	StudentID     string            `json:"student_id"`
	Items         []cartItemRequest `json:"items"`
	DeliveryDate  string            `json:"delivery_date"`
	ExpectedTotal *int64            `json:"expected_total"`
}

func (r placeOrderRequest) Validate() []FieldError {
	var errs []FieldError

	if r.StudentID == "" {
		errs = append(errs, FieldError{Field: "student_id", Message: "required"})
	} else if _, err := uuid.Parse(r.StudentID); err != nil {
		errs = append(errs, FieldError{Field: "student_id", Message: "must be a valid UUID"})
	}

	if len(r.Items) == 0 {
		errs = append(errs, FieldError{Field: "items", Message: "at least one item is required"})
	}
	errs = append(errs, validateCartItems("items", r.Items)...)

	if r.DeliveryDate == "" {
		errs = append(errs, FieldError{Field: "delivery_date", Message: "required"})
	} else if _, err := domain.ParseDate(r.DeliveryDate); err != nil {
		errs = append(errs, FieldError{Field: "delivery_date", Message: "must be a YYYY-MM-DD date"})
	}

	if r.ExpectedTotal != nil && *r.ExpectedTotal < 0 {
		errs = append(errs, FieldError{Field: "expected_total", Message: "must not be negative"})
	}

	return errs
}

type weeklyOrderRequest struct {
	DatesWithOrders    []string                     `json:"dates_with_orders"`
	ItemsByDate        map[string][]cartItemRequest `json:"items_by_date"`
	PerStudentTotal    *int64                       `json:"per_student_total"`
	SelectedStudentIDs []string                     `json:"selected_student_ids"`
}

func (r weeklyOrderRequest) Validate() []FieldError {
	var errs []FieldError

	if len(r.DatesWithOrders) == 0 {
		errs = append(errs, FieldError{Field: "dates_with_orders", Message: "at least one date is required"})
	}
	for i, d := range r.DatesWithOrders {
		if _, err := domain.ParseDate(d); err != nil {
			errs = append(errs, FieldError{Field: fmt.Sprintf("dates_with_orders[%d]", i), Message: "must be a YYYY-MM-DD date"})
		}
	}

	for date, items := range r.ItemsByDate {
		errs = append(errs, validateCartItems("items_by_date."+date, items)...)
	}

	if len(r.SelectedStudentIDs) == 0 {
		errs = append(errs, FieldError{Field: "selected_student_ids", Message: "at least one student is required"})
	}
	for i, id := range r.SelectedStudentIDs {
		if _, err := uuid.Parse(id); err != nil {
			errs = append(errs, FieldError{Field: fmt.Sprintf("selected_student_ids[%d]", i), Message: "must be a valid UUID"})
		}
	}

	if r.PerStudentTotal != nil && *r.PerStudentTotal < 0 {
		errs = append(errs, FieldError{Field: "per_student_total", Message: "must not be negative"})
	}

	return errs
}

func (r weeklyOrderRequest) toSelection() ordering.WeeklySelection {
	sel := ordering.WeeklySelection{
		DatesWithOrders:    make([]time.Time, 0, len(r.DatesWithOrders)),
		ItemsByDate:        make(map[string][]domain.CartItem, len(r.ItemsByDate)),
		PerStudentTotal:    r.PerStudentTotal,
		SelectedStudentIDs: make([]uuid.UUID, 0, len(r.SelectedStudentIDs)),
	}
	for _, d := range r.DatesWithOrders {
		t, _ := domain.ParseDate(d)
		sel.DatesWithOrders = append(sel.DatesWithOrders, t)
	}
	for date, items := range r.ItemsByDate {
		sel.ItemsByDate[date] = toCartItems(items)
	}
	for _, id := range r.SelectedStudentIDs {
		sel.SelectedStudentIDs = append(sel.SelectedStudentIDs, uuid.MustParse(id))
	}
	return sel
}

type admissionDTO struct {
	OrderIDs   []uuid.UUID `json:"order_ids"`
	NewBalance int64       `json:"new_balance"`
	Replayed   bool        `json:"replayed"`
}

func respondAdmission(w http.ResponseWriter, a *ordering.Admission) {
	if a.Replayed {
		w.Header().Set("X-Idempotent-Replayed", "true")
	}
	RespondSuccess(w, http.StatusCreated, admissionDTO{
		OrderIDs:   a.OrderIDs,
		NewBalance: a.NewBalance,
		Replayed:   a.Replayed,
	})
}

type orderItemDTO struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	UnitPrice  int64     `json:"unit_price"`
	Quantity   int       `json:"quantity"`
	LineTotal  int64     `json:"line_total"`
	ServeDate  string    `json:"serve_date"`
}

type orderDTO struct {
	ID           uuid.UUID      `json:"id"`
	StudentID    uuid.UUID      `json:"student_id"`
	BatchID      *uuid.UUID     `json:"batch_id,omitempty"`
	Kind         string         `json:"kind"`
	Status       string         `json:"status"`
	Items        []orderItemDTO `json:"items"`
	TotalAmount  int64          `json:"total_amount"`
	DeliveryDate string         `json:"delivery_date"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func toOrderDTO(o *domain.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDTO{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			LineTotal:  it.LineTotal(),
			ServeDate:  it.ServeDate,
		})
	}
	return orderDTO{
		ID:           o.ID,
		StudentID:    o.StudentID,
		BatchID:      o.BatchID,
		Kind:         string(o.Kind),
		Status:       string(o.Status),
		Items:        items,
		TotalAmount:  o.TotalAmount,
		DeliveryDate: domain.FormatDate(o.DeliveryDate),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

type orderListDTO struct {
	Orders []orderDTO `json:"orders"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

type cancellationDTO struct {
	OrderID          uuid.UUID `json:"order_id"`
	Status           string    `json:"status"`
	Refunded         int64     `json:"refunded"`
	NewBalance       int64     `json:"new_balance"`
	AlreadyCancelled bool      `json:"already_cancelled"`
}

func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	parentID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	deliveryDate, _ := domain.ParseDate(req.DeliveryDate)
	admission, err := h.orders.PlaceOrder(r.Context(), ordering.PlaceOrderRequest{
		ParentID:       parentID,
		StudentID:      uuid.MustParse(req.StudentID),
		Items:          toCartItems(req.Items),
		DeliveryDate:   deliveryDate,
		ExpectedTotal:  req.ExpectedTotal,
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		log.Warn("order placement failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	if len(admission.OrderIDs) == 1 {
		w.Header().Set("Location", fmt.Sprintf("/api/v1/orders/%s", admission.OrderIDs[0]))
	}
	respondAdmission(w, admission)
}

func (h *OrderHandler) PlaceWeekly(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	parentID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req weeklyOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	admission, err := h.orders.PlaceWeeklyOrders(r.Context(), ordering.WeeklyOrderRequest{
		ParentID:       parentID,
		Selection:      req.toSelection(),
		IdempotencyKey: r.Header.Get(idempotencyKeyHeader),
	})
	if err != nil {
		log.Warn("weekly order placement failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	respondAdmission(w, admission)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	parentID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrOrderNotFound, nil)
		return
	}

	c, err := h.orders.CancelOrder(r.Context(), parentID, orderID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("order cancellation failed", "error", err, "order_id", orderID)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, cancellationDTO{
		OrderID:          c.OrderID,
		Status:           string(c.Status),
		Refunded:         c.Refunded,
		NewBalance:       c.NewBalance,
		AlreadyCancelled: c.AlreadyCancelled,
	})
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	parentID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrOrderNotFound, nil)
		return
	}

	o, err := h.orders.GetOrderForParent(r.Context(), parentID, orderID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("order lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toOrderDTO(o))
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	parentID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	page, fields := parsePage(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	orders, total, err := h.orders.ListOrders(r.Context(), parentID, page.Limit, page.Offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("order listing failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]orderDTO, 0, len(orders))
	for i := range orders {
		dtos = append(dtos, toOrderDTO(&orders[i]))
	}
	RespondSuccess(w, http.StatusOK, orderListDTO{
		Orders: dtos,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}
