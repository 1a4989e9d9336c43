package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/avcrm/identity/internal/core/domain"
)

// AccountRepository defines account persistence. Lookups return
// domain.ErrAccountNotFound when no row matches.
type AccountRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// CredentialStore looks accounts up by username and owns the password hash
// format. VerifyPassword never fails: an empty or malformed hash simply does
// not match.
type CredentialStore interface {
	LookupByUsername(ctx context.Context, username string) (*domain.Account, error)
	VerifyPassword(plain, hash string) bool
	HashPassword(plain string) (string, error)
}
