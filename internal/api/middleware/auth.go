package middleware

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avcrm/identity/internal/core/domain"
)

// Authenticator is the part of the auth service the middleware needs.
type Authenticator interface {
	AuthenticateRequest(ctx context.Context, token string, requiredScopes []string) (uuid.UUID, error)
}

// Authenticate guards every route registered in reg. It must be installed
// with e.Use so it runs after routing and c.Path() holds the route template.
// On success the account id is stored under "account_id".
func Authenticate(auth Authenticator, reg *ScopeRegistry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scopes, protected := reg.Lookup(c.Request().Method, c.Path())
			if !protected {
				return next(c)
			}

			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return domain.ErrTokenInvalid
			}

			id, err := auth.AuthenticateRequest(c.Request().Context(), token, scopes)
			if err != nil {
				return err
			}

			c.Set("account_id", id)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
