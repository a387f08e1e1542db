package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is the prepaid balance of one guardian. Balance is in minor units.
type Wallet struct {
	OwnerID   uuid.UUID
	Balance   int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
