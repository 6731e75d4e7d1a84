package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/backoffice-ledger/internal/model"
)

// Capability names one thing a caller may do. Every protected route
// requires exactly one.
type Capability string

const (
	CapReadLedger  Capability = "ledger:read"
	CapWriteLedger Capability = "ledger:write"
	CapReadReports Capability = "reports:read"
	CapManageUsers Capability = "users:manage"
)

// policy maps each role to the capabilities it holds.
var policy = map[string][]Capability{
	model.RoleStaff:      {CapReadLedger, CapWriteLedger, CapReadReports},
	model.RoleSuperAdmin: {CapReadLedger, CapWriteLedger, CapReadReports, CapManageUsers},
}

// Allows reports whether role holds capability c.
func Allows(role string, c Capability) bool {
	for _, have := range policy[role] {
		if have == c {
			return true
		}
	}
	return false
}

// Require returns a middleware that lets the request through only when the
// authenticated caller's role holds capability c. It must run after JWTAuth.
func Require(c Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, ok := IdentityFrom(ctx)
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "authentication required"})
			}
			if !Allows(id.Role, c) {
				return ctx.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "missing capability " + string(c)})
			}
			return next(ctx)
		}
	}
}
