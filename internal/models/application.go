package models

import (
	"time"

	"github.com/google/uuid"
)

// Application status enums. At most one application per job is ever accepted;
// accepting one rejects every other pending application on the same job in
// the same transaction.
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusRejected = "rejected"
)

type Application struct {
	ID                  uuid.UUID `json:"id"`
	JobID               uuid.UUID `json:"job_id"`
	TaskerID            uuid.UUID `json:"tasker_id"`
	Status              string    `json:"status"`
	ProposedBudgetMinor *int64    `json:"proposed_budget_minor,omitempty"`
	Message             string    `json:"message,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
