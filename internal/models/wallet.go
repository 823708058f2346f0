package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's spendable balance in integer minor units.
// balance_minor is guarded by a CHECK (>= 0) and only changes alongside
// exactly one transaction row.
type Wallet struct {
	UserID       uuid.UUID `json:"user_id"`
	BalanceMinor int64     `json:"balance_minor"`
	Currency     string    `json:"currency"`
	UpdatedAt    time.Time `json:"updated_at"`
}
