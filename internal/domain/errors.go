package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrInvalidAmount            = errors.New("amount must be greater than zero")
	ErrInvalidRequest           = errors.New("invalid request")
	ErrEmptyCart                = errors.New("cart is empty")
	ErrInvalidQuantity          = errors.New("quantity out of range")
	ErrMissingIdempotencyKey    = errors.New("idempotency key required")
	ErrPriceMismatch            = errors.New("submitted total does not match current prices")
	ErrInvalidPrice             = errors.New("catalog price is not a valid currency amount")
	ErrMenuItemNotFound         = errors.New("menu item not found")
	ErrMenuItemUnavailable      = errors.New("menu item unavailable")
	ErrStudentNotLinked         = errors.New("student not linked to parent")
	ErrWalletNotFound           = errors.New("wallet not found")
	ErrOrderNotFound            = errors.New("order not found")
	ErrBatchTooLarge            = errors.New("batch exceeds maximum orders per transaction")
	ErrInvalidStatusTransition  = errors.New("order status transition not allowed")
	ErrVersionConflict          = errors.New("optimistic lock conflict")
	ErrConflict                 = errors.New("concurrent modification, retry with the same idempotency key")
	ErrDuplicateIdempotencyKey  = errors.New("duplicate idempotency key")
	ErrIdempotencyKeyReuse      = errors.New("idempotency key already used with a different request")
	ErrIdempotencyOutcomeAbsent = errors.New("idempotency key claimed but no outcome recorded")
)

// InsufficientFundsError reports how far a debit overshot the wallet.
// It matches ErrInsufficientFunds under errors.Is.
type InsufficientFundsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %d, available %d", e.Required, e.Available)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Required - e.Available
}

type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindConflict          ErrorKind = "conflict"
	KindNotFound          ErrorKind = "not_found"
	KindInternal          ErrorKind = "internal"
)

// Classify maps an error onto the caller-facing taxonomy. Anything unrecognised
// is treated as internal and therefore retryable by the caller.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrVersionConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrMenuItemNotFound),
		errors.Is(err, ErrStudentNotLinked),
		errors.Is(err, ErrWalletNotFound),
		errors.Is(err, ErrOrderNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrMissingIdempotencyKey),
		errors.Is(err, ErrPriceMismatch),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrMenuItemUnavailable),
		errors.Is(err, ErrBatchTooLarge),
		errors.Is(err, ErrIdempotencyKeyReuse),
		errors.Is(err, ErrInvalidStatusTransition):
		return KindValidation
	default:
		return KindInternal
	}
}
