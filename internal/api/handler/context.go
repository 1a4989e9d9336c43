package handler

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avcrm/identity/internal/core/domain"
)

// accountID returns the subject stored by the Authenticate middleware.
// A missing value means the route was not registered as protected, which
// is treated as an unauthenticated request.
func accountID(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get("account_id").(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, domain.ErrTokenInvalid
	}
	return id, nil
}
