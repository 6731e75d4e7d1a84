package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/backoffice-ledger/internal/middleware"
)

// RegisterLedger registers contacts, inventory, invoices and reports under
// /api. Every route requires a valid access token. Record reads go through
// the Redis response cache after their capability check, and successful
// writes invalidate it. Reports are computed on every call.
func RegisterLedger(e *echo.Echo, d Deps) {
	g := e.Group("/api",
		middleware.JWTAuth(d.Verifier),
		middleware.NewTokenBucket(d.Cfg.RateLimit, d.Redis, d.Log),
		middleware.InvalidateOnWrite(d.Cfg.Cache, d.Redis, d.Log),
	)
	cache := middleware.NewRedisCache(d.Cfg.Cache, d.Redis)
	read := []echo.MiddlewareFunc{middleware.Require(middleware.CapReadLedger), cache}
	write := middleware.Require(middleware.CapWriteLedger)
	reports := middleware.Require(middleware.CapReadReports)

	// ---- Contacts ----
	c := d.Contacts
	g.GET("/contacts", c.List, read...)
	g.POST("/contacts", c.Create, write)
	g.GET("/contacts/:id", c.Get, read...)
	g.PUT("/contacts/:id", c.Update, write)
	g.DELETE("/contacts/:id", c.Delete, write)

	// ---- Inventory ----
	i := d.Inventory
	g.GET("/inventory", i.List, read...)
	g.POST("/inventory", i.Create, write)
	g.GET("/inventory/:id", i.Get, read...)
	g.PUT("/inventory/:id", i.Update, write)
	g.DELETE("/inventory/:id", i.Delete, write)

	// ---- Invoices ----
	v := d.Invoices
	g.GET("/invoices", v.List, read...)
	g.POST("/invoices", v.Create, write)
	g.GET("/invoices/:id", v.Get, read...)
	g.PUT("/invoices/:id", v.UpdatePayment, write)

	// ---- Reports ----
	r := d.Reports
	g.GET("/reports/sales", r.Sales, reports)
	g.GET("/reports/inventory", r.Inventory, reports)
	g.GET("/reports/customers", r.Customers, reports)
}
