package booking

import (
    "context"
    "fmt"
    "time"

    "github.com/google/uuid"
    "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when it still carries our token, so a
// holder whose TTL expired cannot release somebody else's lock.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisLocker is a Locker shared by every instance pointing at the same Redis.
// A lock is a key set with NX and a TTL; the TTL bounds how long a crashed
// holder can block the key.
type RedisLocker struct {
    rdb    *redis.Client
    prefix string
    ttl    time.Duration
    wait   time.Duration
    poll   time.Duration
}

// NewRedisLocker builds a RedisLocker.  ttl is the lock lease, wait the
// longest Lock will block before giving up with ErrStoreConflict.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
    if prefix == "" {
        prefix = "lock:booking"
    }
    if ttl <= 0 {
        ttl = 5 * time.Second
    }
    if wait <= 0 {
        wait = 3 * time.Second
    }
    return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, wait: wait, poll: 15 * time.Millisecond}
}

// Lock polls SET NX until it wins, the wait budget runs out or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
    full := l.prefix + ":" + key
    token := uuid.NewString()
    deadline := time.Now().Add(l.wait)
    delay := l.poll

    for {
        ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
        if err != nil {
            if ctxErr := ctx.Err(); ctxErr != nil {
                return nil, ctxErr
            }
            return nil, fmt.Errorf("%w: acquire %s: %v", ErrStoreUnavailable, key, err)
        }
        if ok {
            break
        }
        if time.Now().After(deadline) {
            return nil, fmt.Errorf("%w: lock %s busy", ErrStoreConflict, key)
        }
        t := time.NewTimer(delay)
        select {
        case <-ctx.Done():
            t.Stop()
            return nil, ctx.Err()
        case <-t.C:
        }
        if delay < 200*time.Millisecond {
            delay *= 2
        }
    }

    return func() {
        // release on a fresh context: the request context may already be done
        rctx, cancel := context.WithTimeout(context.Background(), time.Second)
        defer cancel()
        // on failure the lease still expires after ttl
        _ = releaseScript.Run(rctx, l.rdb, []string{full}, token).Err()
    }, nil
}
