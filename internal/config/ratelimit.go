package config

import "time"

// RateLimitConfig sizes the per-client token buckets.  Reads of the slot
// catalog and the caller's own reservations use Capacity.  Booking and
// cancellation draw from a smaller bucket of WriteCapacity so a client
// hammering POST /v1/reservations cannot starve its own reads.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    WriteCapacity  int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration // idle bucket lifetime
    KeyStrategy    string        // ip | user | ip_user | ip_user_route
    Prefix         string
    Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_*.  RATE_LIMIT_BURST and
// RATE_LIMIT_REFILL_EVERY are accepted as aliases.
func LoadRateLimitConfig() RateLimitConfig {
    c := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
        WriteCapacity:  envInt("RATE_LIMIT_WRITE_CAPACITY", 10),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if burst := envInt("RATE_LIMIT_BURST", 0); burst > 0 {
        c.Capacity = burst
    }
    if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
        c.RefillTokens, c.RefillInterval = 1, every
    }
    return c.normalized()
}

// ForWrites returns the bucket used on booking and cancellation routes.  It
// is keyed under its own prefix so it never shares tokens with reads.
func (c RateLimitConfig) ForWrites() RateLimitConfig {
    w := c
    w.Capacity = c.WriteCapacity
    w.Prefix = c.Prefix + ":write"
    return w
}

// normalized floors every size at 1 and keeps idle buckets alive for at
// least five refill periods, so a bucket is never dropped while refilling.
func (c RateLimitConfig) normalized() RateLimitConfig {
    c.Capacity = max(c.Capacity, 1)
    c.WriteCapacity = max(c.WriteCapacity, 1)
    c.RefillTokens = max(c.RefillTokens, 1)
    if c.RefillInterval <= 0 {
        c.RefillInterval = time.Second
    }
    c.TTL = max(c.TTL, 5*c.RefillInterval)
    return c
}
