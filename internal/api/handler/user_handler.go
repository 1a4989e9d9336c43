package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/avcrm/identity/internal/core/ports"
)

type UserHandler struct {
	authService ports.AuthService
	events      ports.LoginEventRepository
}

func NewUserHandler(authService ports.AuthService, events ports.LoginEventRepository) *UserHandler {
	return &UserHandler{authService: authService, events: events}
}

type profileResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	IsActive    bool      `json:"is_active"`
	Permissions []string  `json:"permissions"`
}

type loginEventResponse struct {
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	At        time.Time `json:"at"`
}

// Me returns the caller's account and effective permissions.
//
// @Summary      Current account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  profileResponse
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	id, err := accountID(c)
	if err != nil {
		return err
	}

	profile, err := h.authService.Profile(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, profileResponse{
		ID:          profile.Account.ID,
		Username:    profile.Account.Username,
		IsActive:    profile.Account.IsActive,
		Permissions: profile.Permissions.Names(),
	})
}

// Logins lists recent successful logins of an account.
//
// @Summary      Login history
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id     path   string  true   "Account ID"
// @Param        limit  query  int     false  "Max entries (default 50)"
// @Success      200  {array}   loginEventResponse
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/users/{id}/logins [get]
func (h *UserHandler) Logins(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid account id")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
	}

	events, err := h.events.ListByAccount(c.Request().Context(), id, limit)
	if err != nil {
		return err
	}

	out := make([]loginEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, loginEventResponse{
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			RequestID: e.RequestID,
			At:        e.At,
		})
	}
	return c.JSON(http.StatusOK, out)
}
