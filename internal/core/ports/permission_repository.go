package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/avcrm/identity/internal/core/domain"
)

// PermissionRepository resolves account → role → permission in one query.
type PermissionRepository interface {
	PermissionNames(ctx context.Context, accountID uuid.UUID) ([]string, error)
}

// RoleAdmin mutates roles, permissions and their assignments.
type RoleAdmin interface {
	EnsurePermission(ctx context.Context, name, description string) (*domain.Permission, error)
	EnsureRole(ctx context.Context, name, description string) (*domain.Role, error)
	GrantPermission(ctx context.Context, roleName, permissionName string) error
	AssignRole(ctx context.Context, accountID uuid.UUID, roleName string) error
}
