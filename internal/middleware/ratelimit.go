package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/backoffice-ledger/internal/config"
)

// bucketScript refills and takes one token atomically. It returns
// {allowed, remaining, retry_after_ms}.
var bucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'ts')
	local tokens = tonumber(state[1])
	local ts = tonumber(state[2])
	if tokens == nil or ts == nil then
		tokens = capacity
		ts = now_ms
	end

	local steps = 0
	if interval_ms > 0 then
		steps = math.floor(math.max(0, now_ms - ts) / interval_ms)
	end
	if steps > 0 then
		tokens = math.min(capacity, tokens + steps * refill)
		ts = ts + steps * interval_ms
	end

	local allowed = 0
	local wait_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		wait_ms = math.max(0, interval_ms - (now_ms - ts))
	end

	redis.call('HSET', key, 'tokens', tokens, 'ts', ts)
	redis.call('EXPIRE', key, ttl)
	return { allowed, tokens, wait_ms }
`)

type bucketResult struct {
	Allowed   bool
	Remaining int64
	Wait      time.Duration
}

// retryAfter rounds the wait up to whole seconds for the Retry-After header.
func (r bucketResult) retryAfter() int {
	return int((r.Wait + time.Second - 1) / time.Second)
}

// NewTokenBucket limits requests with a token bucket kept in Redis, one
// bucket per rate key. Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	if log == nil {
		log = slog.Default()
	}
	keyOf := rateKeyFunc(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := keyOf(c)
			res, err := takeToken(c.Request().Context(), rdb, cfg, key)
			if err != nil {
				log.Warn("ratelimit: bucket unavailable", slog.String("key", key), slog.Any("error", err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res.Allowed {
				return next(c)
			}

			secs := res.retryAfter()
			h.Set("Retry-After", strconv.Itoa(secs))
			log.Debug("ratelimit: blocked", slog.String("key", key), slog.Duration("wait", res.Wait))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate_limited",
				"message":     fmt.Sprintf("too many requests, retry in %ds", secs),
				"retry_after": secs,
			})
		}
	}
}

func takeToken(ctx context.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string) (bucketResult, error) {
	vals, err := bucketScript.Run(ctx, rdb, []string{key},
		time.Now().UnixMilli(),
		cfg.Capacity,
		cfg.RefillTokens,
		cfg.RefillInterval.Milliseconds(),
		int64(cfg.TTL/time.Second),
	).Int64Slice()
	if err != nil {
		return bucketResult{}, err
	}
	if len(vals) != 3 {
		return bucketResult{}, fmt.Errorf("unexpected script result %v", vals)
	}
	return bucketResult{
		Allowed:   vals[0] == 1,
		Remaining: vals[1],
		Wait:      time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// rateKeyFunc builds the bucket key from the configured strategy, an
// underscore-joined list of ip, user and route. Unknown strategies use all
// three.
func rateKeyFunc(cfg config.RateLimitConfig) func(echo.Context) string {
	parts := map[string]func(echo.Context) string{
		"ip": func(c echo.Context) string {
			if ip := c.RealIP(); ip != "" {
				return ip
			}
			return "unknown"
		},
		"user":  currentUserID,
		"route": func(c echo.Context) string { return c.Request().Method + " " + c.Path() },
	}

	var names []string
	for _, n := range strings.Split(strings.ToLower(cfg.KeyStrategy), "_") {
		if _, ok := parts[n]; !ok {
			names = []string{"ip", "user", "route"}
			break
		}
		names = append(names, n)
	}
	if len(names) == 0 {
		names = []string{"ip", "user", "route"}
	}

	return func(c echo.Context) string {
		key := []string{cfg.Prefix}
		for _, n := range names {
			key = append(key, n, parts[n](c))
		}
		return strings.Join(key, ":")
	}
}

func currentUserID(c echo.Context) string {
	if uid := userID(c); uid != "guest" {
		return uid
	}
	return "anon"
}
