package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoginThrottleState is the per-account attempt counter and lockout window.
// There is exactly one record per account, created on the first login attempt.
type LoginThrottleState struct {
	AccountID     uuid.UUID
	Attempts      int
	LastAttemptAt time.Time
	BlockedUntil  *time.Time // nil when no block was ever applied or after a successful login
}

// IsBlocked reports whether a lockout window covers now (inclusive bound).
func (s *LoginThrottleState) IsBlocked(now time.Time) bool {
	return s.BlockedUntil != nil && !now.After(*s.BlockedUntil)
}

// Clone returns a deep copy so callers can keep a snapshot across a store update.
func (s *LoginThrottleState) Clone() *LoginThrottleState {
	if s == nil {
		return nil
	}
	c := *s
	if s.BlockedUntil != nil {
		t := *s.BlockedUntil
		c.BlockedUntil = &t
	}
	return &c
}
