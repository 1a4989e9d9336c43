package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avcrm/identity/internal/core/domain"
)

// ThrottleMutator edits a throttle record in place and reports whether the
// edit must be written back. Returning false (or an error) leaves the stored
// record untouched.
type ThrottleMutator func(state *domain.LoginThrottleState) (persist bool, err error)

// ThrottleRepository persists LoginThrottleState.
//
// Update fetches the record for accountID (creating it with Attempts=0 and
// LastAttemptAt=now when missing), runs fn while holding the account's lock
// and commits the result atomically. Concurrent Updates for the same account
// are serialized; different accounts proceed independently. If ctx is
// cancelled before the commit the stored record is unchanged.
type ThrottleRepository interface {
	Update(ctx context.Context, accountID uuid.UUID, now time.Time, fn ThrottleMutator) (*domain.LoginThrottleState, error)
	Get(ctx context.Context, accountID uuid.UUID) (*domain.LoginThrottleState, error)
}
