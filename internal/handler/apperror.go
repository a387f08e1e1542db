package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInsufficientFunds     = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrInvalidAmount         = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrEmptyCart             = &AppError{http.StatusBadRequest, "EMPTY_CART", "At least one item is required"}
	ErrInvalidQuantity       = &AppError{http.StatusBadRequest, "INVALID_QUANTITY", "Quantity is out of range"}
	ErrPriceMismatch         = &AppError{http.StatusBadRequest, "PRICE_MISMATCH", "Submitted total does not match current prices"}
	ErrInvalidPrice          = &AppError{http.StatusUnprocessableEntity, "INVALID_PRICE", "Menu item has an invalid price"}
	ErrBatchTooLarge         = &AppError{http.StatusBadRequest, "BATCH_TOO_LARGE", "Too many orders in one request"}
	ErrMenuItemNotFound      = &AppError{http.StatusNotFound, "MENU_ITEM_NOT_FOUND", "Menu item not found"}
	ErrMenuItemUnavailable   = &AppError{http.StatusUnprocessableEntity, "MENU_ITEM_UNAVAILABLE", "Menu item is not available"}
	ErrStudentNotLinked      = &AppError{http.StatusNotFound, "STUDENT_NOT_FOUND", "Student not found"}
	ErrWalletNotFound        = &AppError{http.StatusNotFound, "WALLET_NOT_FOUND", "Wallet not found"}
	ErrOrderNotFound         = &AppError{http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found"}
	ErrOrderNotCancellable   = &AppError{http.StatusUnprocessableEntity, "ORDER_NOT_CANCELLABLE", "Order can no longer be cancelled"}
	ErrVersionConflict       = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrIdempotencyInProgress = &AppError{http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is still being processed"}
)
