package middleware

import (
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
    "golang.org/x/time/rate"

    "github.com/iliyamo/dining-table-reservation/internal/config"
)

var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

// NewTokenBucket limits requests per caller with a token bucket of
// cfg.Capacity tokens refilled by cfg.RefillTokens every cfg.RefillInterval.
// Buckets live in Redis when rdb is set.  Without Redis, or when a Redis call
// fails, an in-process golang.org/x/time/rate limiter with the same shape is
// used so limits still hold on a single instance.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, logger *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if logger == nil {
        logger = zap.NewNop()
    }
    local := newLocalBuckets(cfg)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            now := time.Now()

            var (
                allowed   bool
                remaining int64
                retry     time.Duration
            )
            if rdb != nil {
                var err error
                allowed, remaining, retry, err = redisTake(c, rdb, cfg, key, now)
                if err != nil {
                    if cfg.Debug {
                        logger.Warn("ratelimit redis error, using local bucket", zap.String("key", key), zap.Error(err))
                    }
                    allowed, remaining, retry = local.take(key, now)
                }
            } else {
                allowed, remaining, retry = local.take(key, now)
            }

            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

            if !allowed {
                secs := int(math.Ceil(retry.Seconds()))
                if secs < 1 {
                    secs = 1
                }
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug {
                    logger.Info("ratelimit block", zap.String("key", key), zap.Duration("retry", retry))
                }
                return c.JSON(http.StatusTooManyRequests, map[string]any{
                    "error":       "rate limit exceeded",
                    "code":        "too_many_requests",
                    "retry_after": secs,
                })
            }
            if cfg.Debug {
                c.Response().Header().Set("X-RateLimit-Key", key)
            }
            return next(c)
        }
    }
}

func redisTake(c echo.Context, rdb *redis.Client, cfg config.RateLimitConfig, key string, now time.Time) (bool, int64, time.Duration, error) {
    ttl := int64(cfg.TTL / time.Second)
    if ttl < 1 {
        ttl = 1
    }
    vals, err := limiterScript.Run(c.Request().Context(), rdb, []string{key},
        now.UnixMilli(), cfg.Capacity, cfg.RefillTokens, cfg.RefillInterval.Milliseconds(), ttl).Result()
    if err != nil {
        return false, 0, 0, err
    }
    arr, ok := vals.([]interface{})
    if !ok || len(arr) != 3 {
        return false, 0, 0, fmt.Errorf("unexpected limiter result %#v", vals)
    }
    return asInt64(arr[0]) == 1, asInt64(arr[1]), time.Duration(asInt64(arr[2])) * time.Millisecond, nil
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case int:
        return int64(t)
    case float64:
        return int64(t)
    case string:
        if n, err := strconv.ParseInt(t, 10, 64); err == nil {
            return n
        }
    }
    return 0
}

type localEntry struct {
    lim  *rate.Limiter
    seen time.Time
}

// localBuckets is the in-process fallback: one rate.Limiter per key, idle
// keys dropped after cfg.TTL.
type localBuckets struct {
    mu        sync.Mutex
    every     rate.Limit
    burst     int
    ttl       time.Duration
    lastSweep time.Time
    m         map[string]*localEntry
}

func newLocalBuckets(cfg config.RateLimitConfig) *localBuckets {
    perSec := float64(cfg.RefillTokens) / cfg.RefillInterval.Seconds()
    return &localBuckets{
        every: rate.Limit(perSec),
        burst: cfg.Capacity,
        ttl:   cfg.TTL,
        m:     make(map[string]*localEntry),
    }
}

func (b *localBuckets) take(key string, now time.Time) (bool, int64, time.Duration) {
    b.mu.Lock()
    defer b.mu.Unlock()

    if now.Sub(b.lastSweep) > b.ttl {
        for k, e := range b.m {
            if now.Sub(e.seen) > b.ttl {
                delete(b.m, k)
            }
        }
        b.lastSweep = now
    }

    e, ok := b.m[key]
    if !ok {
        e = &localEntry{lim: rate.NewLimiter(b.every, b.burst)}
        b.m[key] = e
    }
    e.seen = now

    r := e.lim.ReserveN(now, 1)
    if d := r.DelayFrom(now); d > 0 {
        r.CancelAt(now)
        return false, 0, d
    }
    remaining := int64(e.lim.TokensAt(now))
    if remaining < 0 {
        remaining = 0
    }
    return true, remaining, 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    parts := []string{cfg.Prefix}
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    uid := rateIdentity(c)
    route := c.Request().Method + " " + c.Path()

    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}
