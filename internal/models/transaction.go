package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction type and status enums. Rows are append-only: a transaction is
// never mutated after reaching completed.
const (
	TxTypeCredit = "credit"
	TxTypeDebit  = "debit"

	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// Reference types link a transaction back to the event that produced it.
const (
	TxRefJobPayment = "job_payment"
	TxRefFee        = "fee"
	TxRefTopup      = "topup"
)

type Transaction struct {
	ID            uuid.UUID  `json:"id"`
	WalletUserID  uuid.UUID  `json:"wallet_user_id"`
	TxType        string     `json:"tx_type"`
	AmountMinor   int64      `json:"amount_minor"`
	ReferenceType string     `json:"reference_type"`
	ReferenceID   *uuid.UUID `json:"reference_id,omitempty"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
}
