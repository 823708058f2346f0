package models

import (
	"time"

	"github.com/google/uuid"
)

// PlatformAccountID is the system account that collects service fees.
var PlatformAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// User roles.
const (
	RolePoster = "poster"
	RoleTasker = "tasker"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
