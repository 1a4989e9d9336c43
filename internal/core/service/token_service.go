package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avcrm/identity/internal/api/metrics"
	"github.com/avcrm/identity/internal/core/domain"
)

const defaultAccessTokenTTL = 60 * time.Minute

// TokenOptions configures signing. Algorithm must name an HMAC method
// (HS256, HS384 or HS512).
type TokenOptions struct {
	Secret    string
	Algorithm string
	TTL       time.Duration
}

// TokenService issues and validates signed, time-limited bearer tokens.
// It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(opts TokenOptions) (*TokenService, error) {
	if opts.Secret == "" {
		return nil, errors.New("token service: empty signing secret")
	}
	if opts.Algorithm == "" {
		opts.Algorithm = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(opts.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("token service: unsupported algorithm %q", opts.Algorithm)
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultAccessTokenTTL
	}
	return &TokenService{
		secret: []byte(opts.Secret),
		method: method,
		ttl:    opts.TTL,
		now:    time.Now,
	}, nil
}

// Issue signs a token for accountID valid for ttl (the configured TTL when
// ttl <= 0).
func (s *TokenService) Issue(accountID uuid.UUID, ttl time.Duration) (*domain.Token, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	now := s.now().UTC()
	exp := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &domain.Token{
		AccessToken: signed,
		TokenType:   domain.TokenTypeBearer,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Validate verifies the signature and expiry of raw at instant now. Every
// failure yields domain.ErrTokenInvalid with no further detail.
func (s *TokenService) Validate(raw string, now time.Time) (*domain.TokenClaims, error) {
	claims := &jwt.RegisteredClaims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !tkn.Valid {
		metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrTokenInvalid
	}

	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrTokenInvalid
	}

	out := &domain.TokenClaims{
		Subject:   sub,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	metrics.TokenValidationsTotal.WithLabelValues("valid").Inc()
	return out, nil
}
