package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MenuItem is the read-only catalog view consumed for pricing.
type MenuItem struct {
	ID        uuid.UUID
	Name      string
	Price     decimal.Decimal
	Available bool
}

// MenuItemState is the part of a menu item that decides whether and at what
// price it can be ordered.
type MenuItemState struct {
	Price     decimal.Decimal
	Available bool
}
