package middleware

// identity.go holds the context helpers shared by the middleware and the
// handlers. JWTAuth stores the verified caller under identityKey and also
// mirrors user_id/username/role as plain values for the rate limiter and
// request logger.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/backoffice-ledger/internal/model"
)

const identityKey = "identity"

// SetIdentity stores the caller identity on the Echo context.
func SetIdentity(c echo.Context, id model.Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", strconv.FormatUint(id.UserID, 10))
	c.Set("username", id.Username)
	c.Set("role", id.Role)
}

// IdentityFrom returns the identity stored by JWTAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}

// userID returns the caller's user id, or "guest" when the request is
// unauthenticated.
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "guest"
}
