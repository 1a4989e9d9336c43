package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avcrm/identity/internal/api/metrics"
	"github.com/avcrm/identity/internal/core/domain"
	"github.com/avcrm/identity/internal/core/ports"
)

// ResolverOptions configures permission resolution. A zero SuperuserID
// disables the superuser bypass.
type ResolverOptions struct {
	SuperuserID uuid.UUID
}

// PermissionResolver computes effective permissions from role memberships.
// Results are never cached: every call reads the latest committed
// assignments.
type PermissionResolver struct {
	repo ports.PermissionRepository
	opts ResolverOptions
	log  zerolog.Logger
}

func NewPermissionResolver(repo ports.PermissionRepository, opts ResolverOptions, log zerolog.Logger) *PermissionResolver {
	return &PermissionResolver{repo: repo, opts: opts, log: log}
}

func (r *PermissionResolver) isSuperuser(accountID uuid.UUID) bool {
	return r.opts.SuperuserID != uuid.Nil && accountID == r.opts.SuperuserID
}

// Resolve returns the union of permission names granted through the
// account's roles, or the wildcard set for the superuser.
func (r *PermissionResolver) Resolve(ctx context.Context, accountID uuid.UUID) (domain.PermissionSet, error) {
	if r.isSuperuser(accountID) {
		return domain.AllPermissions(), nil
	}

	names, err := r.repo.PermissionNames(ctx, accountID)
	if err != nil {
		return domain.PermissionSet{}, fmt.Errorf("resolve permissions: %w", err)
	}

	set := domain.NewPermissionSet(names...)
	r.log.Debug().
		Str("account_id", accountID.String()).
		Strs("permissions", set.Names()).
		Msg("permissions resolved")
	return set, nil
}

// Authorize reports whether the account holds every required scope.
func (r *PermissionResolver) Authorize(ctx context.Context, accountID uuid.UUID, requiredScopes []string) (bool, error) {
	set, err := r.Resolve(ctx, accountID)
	if err != nil {
		return false, err
	}

	allowed := set.Contains(requiredScopes...)
	result := "forbidden"
	if allowed {
		result = "allowed"
	}
	metrics.AuthorizationsTotal.WithLabelValues(result).Inc()
	return allowed, nil
}
