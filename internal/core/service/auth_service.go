package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avcrm/identity/internal/api/metrics"
	"github.com/avcrm/identity/internal/core/domain"
	"github.com/avcrm/identity/internal/core/ports"
)

// AuthService implements login and per-request authentication on top of
// the credential store, the login throttle, the token service and the
// permission resolver.
type AuthService struct {
	creds    ports.CredentialStore
	accounts ports.AccountRepository
	throttle *LoginThrottle
	tokens   *TokenService
	perms    *PermissionResolver
	audit    ports.LoginRecorder
	log      zerolog.Logger
	now      func() time.Time
}

// NewAuthService wires the gate. audit may be nil.
func NewAuthService(
	creds ports.CredentialStore,
	accounts ports.AccountRepository,
	throttle *LoginThrottle,
	tokens *TokenService,
	perms *PermissionResolver,
	audit ports.LoginRecorder,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		creds:    creds,
		accounts: accounts,
		throttle: throttle,
		tokens:   tokens,
		perms:    perms,
		audit:    audit,
		log:      log,
		now:      time.Now,
	}
}

// Login authenticates username/password and issues an access token.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*domain.Token, error) {
	now := s.now().UTC()

	account, err := s.creds.LookupByUsername(ctx, in.Username)
	if errors.Is(err, domain.ErrAccountNotFound) {
		// No throttle key exists for an unknown name. The comparison still
		// runs so the response takes as long as a wrong password.
		s.creds.VerifyPassword(in.Password, "")
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: lookup account: %w", err)
	}

	dec, err := s.throttle.Admit(ctx, account.ID, now)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if dec.Verdict == Blocked {
		metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		return nil, &domain.AccountLockedError{RetryAfterMinutes: dec.RetryAfterMinutes}
	}

	if !s.creds.VerifyPassword(in.Password, account.PasswordHash) {
		_ = s.throttle.RecordFailure(ctx, dec.State)
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	// Credentials are valid: the counter is cleared even when the account
	// turns out to be inactive.
	if err := s.throttle.RecordSuccess(ctx, dec.State); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if !account.IsActive {
		metrics.LoginAttemptsTotal.WithLabelValues("inactive").Inc()
		return nil, domain.ErrAccountInactive
	}

	token, err := s.tokens.Issue(account.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if s.audit != nil {
		s.audit.Record(domain.LoginEvent{
			AccountID: account.ID,
			Username:  account.Username,
			IPAddress: in.IPAddress,
			UserAgent: in.UserAgent,
			RequestID: in.RequestID,
			At:        now,
		})
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.log.Info().
		Str("account_id", account.ID.String()).
		Str("ip", in.IPAddress).
		Msg("login succeeded")

	return token, nil
}

// AuthenticateRequest validates the bearer token and checks that its subject
// holds every required scope.
func (s *AuthService) AuthenticateRequest(ctx context.Context, token string, requiredScopes []string) (uuid.UUID, error) {
	claims, err := s.tokens.Validate(token, s.now().UTC())
	if err != nil {
		return uuid.Nil, domain.ErrTokenInvalid
	}

	allowed, err := s.perms.Authorize(ctx, claims.Subject, requiredScopes)
	if err != nil {
		return uuid.Nil, fmt.Errorf("authenticate request: %w", err)
	}
	if !allowed {
		s.log.Debug().
			Str("account_id", claims.Subject.String()).
			Strs("required", requiredScopes).
			Msg("insufficient scope")
		return uuid.Nil, domain.ErrInsufficientScope
	}

	return claims.Subject, nil
}

// Profile returns the account and its effective permissions.
func (s *AuthService) Profile(ctx context.Context, accountID uuid.UUID) (*ports.Profile, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	perms, err := s.perms.Resolve(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &ports.Profile{Account: account, Permissions: perms}, nil
}
