package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account models an identity that can authenticate against the API.
// PasswordHash is empty for accounts created without credentials; such
// accounts can never log in.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasCredentials reports whether a password has ever been set.
func (a *Account) HasCredentials() bool {
	return a.PasswordHash != ""
}
