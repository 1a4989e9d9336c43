// Package credentials owns the password hash format and the username lookup
// used by the login flow.
package credentials

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/avcrm/identity/internal/core/domain"
	"github.com/avcrm/identity/internal/core/ports"
)

// Store implements ports.CredentialStore with bcrypt hashes on top of an
// AccountRepository.
type Store struct {
	accounts ports.AccountRepository
	cost     int

	dummyOnce sync.Once
	dummyHash []byte
}

// Option customises a Store.
type Option func(*Store)

// WithCost sets the bcrypt work factor. Tests use bcrypt.MinCost.
func WithCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

func NewStore(accounts ports.AccountRepository, opts ...Option) *Store {
	s := &Store{accounts: accounts, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LookupByUsername returns domain.ErrAccountNotFound for unknown names.
func (s *Store) LookupByUsername(ctx context.Context, username string) (*domain.Account, error) {
	if username == "" {
		return nil, domain.ErrAccountNotFound
	}
	return s.accounts.FindByUsername(ctx, username)
}

// VerifyPassword compares plain against hash. An empty hash is compared
// against a throwaway hash so the call costs the same as a real mismatch.
func (s *Store) VerifyPassword(plain, hash string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(plain))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

func (s *Store) HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Store) dummy() []byte {
	s.dummyOnce.Do(func() {
		// Any fixed input works; only the cost matters.
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), s.cost)
	})
	return s.dummyHash
}
