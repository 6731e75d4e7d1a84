package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/backoffice-ledger/internal/model"
)

// IdentityVerifier turns a raw access token into the caller's identity.
// The credential service implements it.
type IdentityVerifier interface {
	Verify(raw string) (model.Identity, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the resolved identity in the request context. Handlers read it
// back with IdentityFrom.
func JWTAuth(v IdentityVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			id, err := v.Verify(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			SetIdentity(c, id)
			return next(c)
		}
	}
}

// OptionalJWT stores the identity when a valid Bearer token is present and
// lets the request through either way.
func OptionalJWT(v IdentityVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if strings.HasPrefix(auth, "Bearer ") {
				if id, err := v.Verify(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))); err == nil {
					SetIdentity(c, id)
				}
			}
			return next(c)
		}
	}
}
