package booking

import (
    "context"
    "fmt"
    "sync"
    "time"

    "golang.org/x/sync/semaphore"

    "github.com/iliyamo/dining-table-reservation/internal/model"
)

// Locker provides a mutual-exclusion scope per key.  Lock blocks until the key
// is free or ctx ends; the returned func releases it and is safe to call once.
type Locker interface {
    Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SlotKey names the lock scope for a (slot, date) pair.
func SlotKey(slotID uint64, date time.Time) string {
    return fmt.Sprintf("slot:%d:%s", slotID, model.FormatDate(date))
}

// UserKey names the lock scope for a (user, date) pair.
func UserKey(userID uint64, date time.Time) string {
    return fmt.Sprintf("user:%d:%s", userID, model.FormatDate(date))
}

// LocalLocker serializes work per key inside one process.  Entries are
// reference counted so idle keys do not accumulate.
type LocalLocker struct {
    mu    sync.Mutex
    locks map[string]*keyLock
}

type keyLock struct {
    sem  *semaphore.Weighted // weight 1
    refs int
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
    return &LocalLocker{locks: make(map[string]*keyLock)}
}

// Lock acquires key, honouring ctx cancellation while waiting.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
    l.mu.Lock()
    kl, ok := l.locks[key]
    if !ok {
        kl = &keyLock{sem: semaphore.NewWeighted(1)}
        l.locks[key] = kl
    }
    kl.refs++
    l.mu.Unlock()

    if err := kl.sem.Acquire(ctx, 1); err != nil {
        l.release(key, kl)
        return nil, err
    }

    var once sync.Once
    return func() {
        once.Do(func() {
            kl.sem.Release(1)
            l.release(key, kl)
        })
    }, nil
}

func (l *LocalLocker) release(key string, kl *keyLock) {
    l.mu.Lock()
    defer l.mu.Unlock()
    kl.refs--
    if kl.refs == 0 {
        delete(l.locks, key)
    }
}

// size is used by tests to check that idle keys are dropped.
func (l *LocalLocker) size() int {
    l.mu.Lock()
    defer l.mu.Unlock()
    return len(l.locks)
}
