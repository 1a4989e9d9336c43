package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrAccountLocked      = errors.New("account blocked")
	ErrAccountInactive    = errors.New("account is not active")
	ErrTokenInvalid       = errors.New("could not validate credentials")
	ErrInsufficientScope  = errors.New("not enough permissions")

	ErrAccountNotFound    = errors.New("account not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")
)

// AccountLockedError is returned while a login throttle block is active.
// It matches ErrAccountLocked with errors.Is.
type AccountLockedError struct {
	RetryAfterMinutes int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account blocked. Too many login attempts. Try again in %d minutes.", e.RetryAfterMinutes)
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
