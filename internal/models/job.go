package models

import (
	"time"

	"github.com/google/uuid"
)

// Job status enums. Transitions are owned by the jobs service; nothing else
// may write jobs.status.
const (
	JobStatusOpen            = "open"
	JobStatusInProgress      = "in_progress"
	JobStatusReadyForPayment = "ready_for_payment"
	JobStatusCompleted       = "completed"
	JobStatusCancelled       = "cancelled"
)

type Job struct {
	ID          uuid.UUID `json:"id"`
	PosterID    uuid.UUID `json:"poster_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	BudgetMinor int64     `json:"budget_minor"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	FeeMinor    *int64    `json:"fee_minor,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Terminal reports whether no further transitions are allowed.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusCancelled
}
