package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/avcrm/identity/docs"
	"github.com/avcrm/identity/internal/api/handler"
	"github.com/avcrm/identity/internal/api/middleware"
	"github.com/avcrm/identity/internal/core/ports"
)

// Scope names enforced by the routes below.
const (
	ScopeUserGet = "user.get"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Auth      ports.AuthService
	Events    ports.LoginEventRepository
	Readiness []handler.Check
	Log       zerolog.Logger
	// Metrics mounts the Prometheus middleware and GET /metrics. The
	// collectors go to the default registry, so only one router per
	// process may enable it.
	Metrics bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
//
// @title        Identity API
// @version      1.0
// @description  Login, bearer token validation and scope checks.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	if d.Metrics {
		e.Use(echoprometheus.NewMiddleware("identity"))
		e.GET("/metrics", echoprometheus.NewHandler())
	}

	scopes := middleware.NewScopeRegistry()
	e.Use(middleware.Authenticate(d.Auth, scopes))

	authHandler := handler.NewAuthHandler(d.Auth)
	userHandler := handler.NewUserHandler(d.Auth, d.Events)

	// --- Auth routes ---
	v1 := e.Group("/api/v1")
	v1.POST("/login", authHandler.Login)

	// --- Protected routes ---
	protect(v1, scopes, http.MethodGet, "/users/me", userHandler.Me)
	protect(v1, scopes, http.MethodGet, "/users/:id/logins", userHandler.Logins, ScopeUserGet)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Readiness...)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// protect registers a route and records the scopes it requires.
func protect(g *echo.Group, reg *middleware.ScopeRegistry, method, path string, h echo.HandlerFunc, scopes ...string) {
	r := g.Add(method, path, h)
	reg.Require(method, r.Path, scopes...)
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
