package newsletter

import (
	"errors"
	"time"
)

// Subscription is keyed by email; unsubscribing only deactivates it.
type Subscription struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var ErrInvalidEmail = errors.New("invalid email address")
