package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/backoffice-ledger/internal/config"
	"github.com/iliyamo/backoffice-ledger/internal/model"
)

type stubVerifier map[string]model.Identity

func (s stubVerifier) Verify(raw string) (model.Identity, error) {
	id, ok := s[raw]
	if !ok {
		return model.Identity{}, errors.New("bad token")
	}
	return id, nil
}

var verifier = stubVerifier{
	"staff-token": {UserID: 2, Username: "clerk", Role: model.RoleStaff},
	"admin-token": {UserID: 1, Username: "admin", Role: model.RoleSuperAdmin},
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func do(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndPolicy(t *testing.T) {
	e := echo.New()
	auth := JWTAuth(verifier)
	e.GET("/ledger", func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		require.True(t, ok)
		return c.String(http.StatusOK, id.Username)
	}, auth, Require(CapReadLedger))
	e.GET("/users", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, auth, Require(CapManageUsers))

	tests := []struct {
		name, path, token string
		want              int
	}{
		{"no token", "/ledger", "", http.StatusUnauthorized},
		{"bad token", "/ledger", "nope", http.StatusUnauthorized},
		{"staff reads ledger", "/ledger", "staff-token", http.StatusOK},
		{"staff cannot manage users", "/users", "staff-token", http.StatusForbidden},
		{"admin manages users", "/users", "admin-token", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.path, tt.token)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireWithoutIdentity(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, Require(CapReadLedger))
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/x", "").Code)
}

func TestPolicyTable(t *testing.T) {
	for _, c := range []Capability{CapReadLedger, CapWriteLedger, CapReadReports} {
		assert.True(t, Allows(model.RoleStaff, c), c)
		assert.True(t, Allows(model.RoleSuperAdmin, c), c)
	}
	assert.False(t, Allows(model.RoleStaff, CapManageUsers))
	assert.True(t, Allows(model.RoleSuperAdmin, CapManageUsers))
	assert.False(t, Allows("guest", CapReadLedger))
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: time.Hour, KeyStrategy: "ip", Prefix: "rl",
	}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb, nil))

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/x", "").Code)
	rec := do(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketDisabledWithoutRedis(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, nil, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/x", "").Code)
	}
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/invoices", nil)
	req.RemoteAddr = "10.0.0.7:5000"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/invoices")
	SetIdentity(c, model.Identity{UserID: 4, Username: "clerk", Role: model.RoleStaff})

	cases := map[string]string{
		"ip":            "rl:ip:10.0.0.7",
		"user_route":    "rl:user:4:route:GET /api/invoices",
		"ip_user_route": "rl:ip:10.0.0.7:user:4:route:GET /api/invoices",
		"bogus":         "rl:ip:10.0.0.7:user:4:route:GET /api/invoices",
	}
	for strategy, want := range cases {
		key := rateKeyFunc(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy})(c)
		assert.Equal(t, want, key, strategy)
	}
}

func TestRedisCacheHitAndInvalidate(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: []string{"GET"}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20,
	}
	calls := 0
	e := echo.New()
	g := e.Group("", InvalidateOnWrite(cfg, rdb, nil), NewRedisCache(cfg, rdb))
	g.GET("/items", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	})
	g.POST("/items", func(c echo.Context) error { return c.NoContent(http.StatusCreated) })

	first := do(e, http.MethodGet, "/items?b=2&a=1", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(e, http.MethodGet, "/items?a=1&b=2", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/items", "").Code)
	third := do(e, http.MethodGet, "/items?a=1&b=2", "")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestRedisCacheDropsReadOverlappingWrite(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: []string{"GET"}, TTL: time.Minute, Prefix: "cache"}
	stock := 10
	calls := 0
	e := echo.New()
	g := e.Group("", InvalidateOnWrite(cfg, rdb, nil), NewRedisCache(cfg, rdb))
	g.POST("/items", func(c echo.Context) error {
		stock--
		return c.NoContent(http.StatusCreated)
	})
	g.GET("/items", func(c echo.Context) error {
		calls++
		seen := stock
		if calls == 1 {
			// a write commits between this read and its response
			require.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/items", "").Code)
		}
		return c.JSON(http.StatusOK, echo.Map{"stock": seen})
	})

	first := do(e, http.MethodGet, "/items", "")
	assert.JSONEq(t, `{"stock":10}`, first.Body.String())

	second := do(e, http.MethodGet, "/items", "")
	assert.Equal(t, "MISS", second.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"stock":9}`, second.Body.String())

	third := do(e, http.MethodGet, "/items", "")
	assert.Equal(t, "HIT", third.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"stock":9}`, third.Body.String())
}

func TestRedisCacheSkipsErrors(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: []string{"GET"}, TTL: time.Minute, Prefix: "cache"}
	calls := 0
	e := echo.New()
	e.GET("/missing", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}, NewRedisCache(cfg, rdb))

	do(e, http.MethodGet, "/missing", "")
	do(e, http.MethodGet, "/missing", "")
	assert.Equal(t, 2, calls)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "short and stout") })

	rec := do(e, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "path=/boom")

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	const rid = "6f1c1d3e-3f8a-4b7e-9c55-0d9b1a2e4c10"
	req.Header.Set(RequestIDHeader, rid)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, rid, rec.Header().Get(RequestIDHeader))
}
