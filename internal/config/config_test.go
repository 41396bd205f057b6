package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func setBase(t *testing.T) {
    t.Setenv("APP_ENV", "test")
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "secret")
    t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
    t.Setenv("REFRESH_TOKEN_TTL_DAYS", "7")
    t.Setenv("BCRYPT_COST", "4")
}

func TestLoadMemoryDriverSkipsDatabase(t *testing.T) {
    setBase(t)
    t.Setenv("STORE_DRIVER", "Memory")
    t.Setenv("DB_USER", "")

    cfg := Load()
    assert.Equal(t, StoreMemory, cfg.StoreDriver)
    assert.Empty(t, cfg.DBUser)
    assert.Equal(t, 15, cfg.AccessTTLMin)
    assert.Equal(t, "Administrator", cfg.AdminName)
    assert.True(t, cfg.MigrationsAuto)
}

func TestLoadMySQLDriver(t *testing.T) {
    setBase(t)
    t.Setenv("STORE_DRIVER", "")
    t.Setenv("DB_USER", "app")
    t.Setenv("DB_PASS", "")
    t.Setenv("DB_HOST", "db")
    t.Setenv("DB_PORT", "3306")
    t.Setenv("DB_NAME", "dining")
    t.Setenv("MIGRATIONS_AUTO", "false")

    cfg := Load()
    assert.Equal(t, StoreMySQL, cfg.StoreDriver)
    assert.Equal(t, "db", cfg.DBHost)
    assert.False(t, cfg.MigrationsAuto)
}

func TestLoadBookingConfig(t *testing.T) {
    t.Run("defaults", func(t *testing.T) {
        for _, k := range []string{"BOOKING_DAILY_LIMIT", "BOOKING_MAX_ATTEMPTS", "BOOKING_RETRY_BACKOFF",
            "BOOKING_LOCK_TTL", "BOOKING_LOCK_WAIT", "BOOKING_LOCK_PREFIX"} {
            t.Setenv(k, "")
        }
        c := LoadBookingConfig()
        assert.Equal(t, BookingConfig{
            DailyLimit:   2,
            MaxAttempts:  3,
            RetryBackoff: 25 * time.Millisecond,
            LockTTL:      5 * time.Second,
            LockWait:     3 * time.Second,
            LockPrefix:   "lock:booking",
        }, c)
    })
    t.Run("overrides and floors", func(t *testing.T) {
        t.Setenv("BOOKING_DAILY_LIMIT", "4")
        t.Setenv("BOOKING_MAX_ATTEMPTS", "0")
        t.Setenv("BOOKING_RETRY_BACKOFF", "100ms")
        t.Setenv("BOOKING_LOCK_TTL", "-1s")
        t.Setenv("BOOKING_LOCK_WAIT", "garbage")
        c := LoadBookingConfig()
        assert.Equal(t, 2, c.DailyLimit)
        assert.Equal(t, 3, c.MaxAttempts)
        assert.Equal(t, 100*time.Millisecond, c.RetryBackoff)
        assert.Equal(t, 5*time.Second, c.LockTTL)
        assert.Equal(t, 3*time.Second, c.LockWait)
    })
    t.Run("daily limit can be lowered", func(t *testing.T) {
        t.Setenv("BOOKING_DAILY_LIMIT", "1")
        assert.Equal(t, 1, LoadBookingConfig().DailyLimit)
    })
}

func TestLoadQueueConfig(t *testing.T) {
    t.Setenv("RABBITMQ_URL", "")
    t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
    t.Setenv("QUEUE_ENABLED", "off")
    t.Setenv("RESERVATION_QUEUE", "")
    t.Setenv("RESERVATION_LOG_PATH", "")

    q := LoadQueueConfig()
    assert.False(t, q.Enabled)
    assert.Equal(t, "amqp://u:p@mq:5672/", q.URL)
    assert.Equal(t, "reservation.events", q.Name)
    assert.Equal(t, "logs/reservations.log", q.LogPath)

    t.Setenv("RABBITMQ_URL", "amqp://primary/")
    assert.Equal(t, "amqp://primary/", LoadQueueConfig().URL)
}

func TestLoadRedisConfig(t *testing.T) {
    t.Setenv("REDIS_ADDR", "cache:6380")
    t.Setenv("REDIS_HOST", "")
    t.Setenv("REDIS_PORT", "")
    t.Setenv("REDIS_DB", "2")
    t.Setenv("REDIS_TLS", "1")
    c := LoadRedisConfig()
    assert.Equal(t, "cache:6380", c.Addr)
    assert.Equal(t, 2, c.DB)
    assert.True(t, c.TLS)

    t.Setenv("REDIS_HOST", "redis")
    t.Setenv("REDIS_PORT", "6379")
    assert.Equal(t, "redis:6379", LoadRedisConfig().Addr)
}

func TestLoadRateLimitConfig(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "")
    t.Setenv("RATE_LIMIT_BURST", "30")
    t.Setenv("RATE_LIMIT_WRITE_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_EVERY", "")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    c := LoadRateLimitConfig()
    assert.Equal(t, 30, c.Capacity)
    assert.Equal(t, 1, c.WriteCapacity)
    assert.Equal(t, 2*time.Second, c.RefillInterval)
    assert.Equal(t, 10*time.Second, c.TTL)

    w := c.ForWrites()
    assert.Equal(t, 1, w.Capacity)
    assert.Equal(t, c.Prefix+":write", w.Prefix)
    assert.Equal(t, 30, c.Capacity)
}

func TestEnvBool(t *testing.T) {
    for v, want := range map[string]bool{"1": true, " Yes ": true, "ON": true, "off": false, "False": false} {
        t.Setenv("SOME_FLAG", v)
        assert.Equal(t, want, envBool("SOME_FLAG", !want), v)
    }
    t.Setenv("SOME_FLAG", "maybe")
    assert.True(t, envBool("SOME_FLAG", true))
}

func TestLoadCacheConfig(t *testing.T) {
    t.Setenv("CACHE_METHODS", " get, head ,,")
    t.Setenv("CACHE_TTL", "")
    c := LoadCacheConfig()
    require.Len(t, c.Methods, 2)
    assert.True(t, c.Methods["GET"])
    assert.True(t, c.Methods["HEAD"])
    assert.Equal(t, 30*time.Second, c.TTL)
}

func TestNewLogger(t *testing.T) {
    assert.NotNil(t, NewLogger("production"))
    assert.NotNil(t, NewLogger("dev"))
}
