// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/unrolled/secure"

	"github.com/iliyamo/backoffice-ledger/internal/config"
	"github.com/iliyamo/backoffice-ledger/internal/handler"
	"github.com/iliyamo/backoffice-ledger/internal/middleware"
)

// Deps is everything the routes need.
type Deps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Redis    *redis.Client // nil disables cache and rate limiting
	Verifier middleware.IdentityVerifier
	DB       handler.Pinger

	Auth      *handler.AuthHandler
	Contacts  *handler.ContactHandler
	Inventory *handler.InventoryHandler
	Invoices  *handler.InvoiceHandler
	Reports   *handler.ReportHandler
}

// New builds the Echo instance with the global middleware chain and every
// route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(middleware.RequestLogger(d.Log))
	e.Use(Secure(d.Cfg.App.IsProduction()))

	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d)
	RegisterLedger(e, d)
	return e
}

// Secure adapts unrolled/secure's header policy to Echo.
func Secure(production bool) echo.MiddlewareFunc {
	s := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := s.Process(c.Response().Writer, c.Request()); err != nil {
				// secure has already written the redirect or rejection
				return nil
			}
			return next(c)
		}
	}
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the session endpoints under /api/auth. Login,
// refresh and logout need no access token; user management requires
// CapManageUsers.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := d.Auth
	g := e.Group("/api/auth", middleware.NewTokenBucket(d.Cfg.RateLimit, d.Redis, d.Log))
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// with a bearer token and no refresh_token in the body, every session of the caller ends
	g.POST("/logout", a.Logout, middleware.OptionalJWT(d.Verifier))

	auth := middleware.JWTAuth(d.Verifier)
	g.GET("/me", a.Me, auth)
	g.POST("/register", a.Register, auth, middleware.Require(middleware.CapManageUsers))
	g.GET("/users", a.Users, auth, middleware.Require(middleware.CapManageUsers))
}
