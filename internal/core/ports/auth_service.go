package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/avcrm/identity/internal/core/domain"
)

// LoginInput is the DTO passed from the transport layer to AuthService.Login.
// Agent fields are only used for the audit trail.
type LoginInput struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
	RequestID string
}

// Profile is an account together with its effective permissions.
type Profile struct {
	Account     *domain.Account
	Permissions domain.PermissionSet
}

// AuthService is the gate consumed by the HTTP layer.
type AuthService interface {
	Login(ctx context.Context, in LoginInput) (*domain.Token, error)
	AuthenticateRequest(ctx context.Context, token string, requiredScopes []string) (uuid.UUID, error)
	Profile(ctx context.Context, accountID uuid.UUID) (*Profile, error)
}
