package domain

import (
	"time"

	"github.com/google/uuid"
)

const TokenTypeBearer = "bearer"

// Token is an issued bearer credential.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// TokenClaims are the verified contents of a bearer token. They are never
// persisted.
type TokenClaims struct {
	Subject   uuid.UUID
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
