package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoginEvent records a successful authentication together with the agent
// data of the client that performed it.
type LoginEvent struct {
	AccountID uuid.UUID
	Username  string
	IPAddress string
	UserAgent string
	RequestID string
	At        time.Time
}
