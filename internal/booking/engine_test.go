package booking_test

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/dining-table-reservation/internal/booking"
    "github.com/iliyamo/dining-table-reservation/internal/booking/memstore"
    "github.com/iliyamo/dining-table-reservation/internal/model"
)

var day = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

// nopLocker leaves all serialization to the store.
type nopLocker struct{}

func (nopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// failingLocker reports every lock attempt as failed with err.
type failingLocker struct{ err error }

func (l failingLocker) Lock(context.Context, string) (func(), error) { return nil, l.err }

func newStore(t *testing.T, slots ...model.TimeSlot) *memstore.Store {
    t.Helper()
    s := memstore.New()
    for i := range slots {
        require.NoError(t, s.CreateSlot(context.Background(), &slots[i]))
    }
    return s
}

func slot(maxTables int) model.TimeSlot {
    return model.TimeSlot{StartTime: "19:00:00", EndTime: "20:30:00", Label: "Dinner", MaxTables: maxTables, IsActive: true}
}

func newEngine(s booking.Store, locker booking.Locker) *booking.Engine {
    return booking.NewEngine(s, locker, booking.Options{RetryBackoff: time.Millisecond}, nil)
}

func activeTables(s *memstore.Store, slotID uint64) []int {
    var out []int
    for _, r := range s.Reservations() {
        if r.TimeSlotID == slotID && r.IsActive() {
            out = append(out, r.TableNumber)
        }
    }
    return out
}

func TestBookAssignsLowestFreeTable(t *testing.T) {
    s := newStore(t, slot(3))
    e := newEngine(s, nil)
    ctx := context.Background()

    r1, err := e.Book(ctx, 1, 1, day)
    require.NoError(t, err)
    assert.Equal(t, 1, r1.TableNumber)
    assert.Equal(t, model.ReservationActive, r1.Status)
    assert.NotEmpty(t, r1.ID)

    r2, err := e.Book(ctx, 2, 1, day)
    require.NoError(t, err)
    r3, err := e.Book(ctx, 3, 1, day)
    require.NoError(t, err)
    assert.Equal(t, 2, r2.TableNumber)
    assert.Equal(t, 3, r3.TableNumber)

    // tables {1,3} active: the next booking fills the gap
    _, err = e.Cancel(ctx, 2, r2.ID)
    require.NoError(t, err)
    r4, err := e.Book(ctx, 4, 1, day)
    require.NoError(t, err)
    assert.Equal(t, 2, r4.TableNumber)
}

func TestBookNormalizesDate(t *testing.T) {
    s := newStore(t, slot(2))
    e := newEngine(s, nil)

    r, err := e.Book(context.Background(), 1, 1, day.Add(15*time.Hour+3*time.Minute))
    require.NoError(t, err)
    assert.Equal(t, day, r.Date)
}

func TestBookSlotFullAndCancellationFreesTable(t *testing.T) {
    s := newStore(t, slot(3))
    e := newEngine(s, nil)
    ctx := context.Background()

    var ids []string
    for u := uint64(1); u <= 3; u++ {
        r, err := e.Book(ctx, u, 1, day)
        require.NoError(t, err)
        ids = append(ids, r.ID)
    }

    _, err := e.Book(ctx, 4, 1, day)
    require.ErrorIs(t, err, booking.ErrSlotFull)

    cancelled, err := e.Cancel(ctx, 2, ids[1])
    require.NoError(t, err)
    assert.Equal(t, model.ReservationCancelled, cancelled.Status)

    r, err := e.Book(ctx, 4, 1, day)
    require.NoError(t, err)
    assert.Equal(t, 2, r.TableNumber)
    assert.ElementsMatch(t, []int{1, 2, 3}, activeTables(s, 1))
}

func TestBookDuplicate(t *testing.T) {
    s := newStore(t, slot(5))
    e := newEngine(s, nil)
    ctx := context.Background()

    _, err := e.Book(ctx, 1, 1, day)
    require.NoError(t, err)
    _, err = e.Book(ctx, 1, 1, day)
    require.ErrorIs(t, err, booking.ErrDuplicateBooking)
    assert.True(t, booking.IsBusinessRule(err))

    // another date is a different booking
    _, err = e.Book(ctx, 1, 1, day.AddDate(0, 0, 1))
    require.NoError(t, err)
}

func TestBookDailyLimit(t *testing.T) {
    s := newStore(t, slot(5), slot(5), slot(5))
    e := newEngine(s, nil)
    ctx := context.Background()

    first, err := e.Book(ctx, 1, 1, day)
    require.NoError(t, err)
    _, err = e.Book(ctx, 1, 2, day)
    require.NoError(t, err)

    _, err = e.Book(ctx, 1, 3, day)
    require.ErrorIs(t, err, booking.ErrDailyLimitExceeded)

    // the duplicate check runs before the daily cap
    _, err = e.Book(ctx, 1, 1, day)
    require.ErrorIs(t, err, booking.ErrDuplicateBooking)

    _, err = e.Cancel(ctx, 1, first.ID)
    require.NoError(t, err)
    _, err = e.Book(ctx, 1, 3, day)
    require.NoError(t, err)
}

func TestBookCustomDailyLimit(t *testing.T) {
    s := newStore(t, slot(5), slot(5))
    e := booking.NewEngine(s, nil, booking.Options{DailyLimit: 1}, nil)

    _, err := e.Book(context.Background(), 1, 1, day)
    require.NoError(t, err)
    _, err = e.Book(context.Background(), 1, 2, day)
    require.ErrorIs(t, err, booking.ErrDailyLimitExceeded)
    assert.Equal(t, 1, e.DailyLimit())
}

func TestBookDailyLimitCannotBeRaised(t *testing.T) {
    s := newStore(t, slot(5), slot(5), slot(5))
    e := booking.NewEngine(s, nil, booking.Options{DailyLimit: 5}, nil)
    ctx := context.Background()
    assert.Equal(t, booking.DefaultDailyLimit, e.DailyLimit())

    _, err := e.Book(ctx, 1, 1, day)
    require.NoError(t, err)
    _, err = e.Book(ctx, 1, 2, day)
    require.NoError(t, err)
    _, err = e.Book(ctx, 1, 3, day)
    require.ErrorIs(t, err, booking.ErrDailyLimitExceeded)
}

func TestBookValidation(t *testing.T) {
    inactive := slot(4)
    inactive.IsActive = false
    s := newStore(t, slot(4), inactive)
    e := newEngine(s, nil)
    ctx := context.Background()

    tests := []struct {
        name   string
        user   uint64
        slotID uint64
        date   time.Time
    }{
        {"missing user", 0, 1, day},
        {"zero slot", 1, 0, day},
        {"zero date", 1, 1, time.Time{}},
        {"unknown slot", 1, 99, day},
        {"inactive slot", 1, 2, day},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            _, err := e.Book(ctx, tt.user, tt.slotID, tt.date)
            require.ErrorIs(t, err, booking.ErrValidation)
        })
    }
    assert.Empty(t, s.Reservations())
}

func TestCancel(t *testing.T) {
    s := newStore(t, slot(2))
    e := newEngine(s, nil)
    ctx := context.Background()

    r, err := e.Book(ctx, 1, 1, day)
    require.NoError(t, err)

    t.Run("not owner", func(t *testing.T) {
        _, err := e.Cancel(ctx, 2, r.ID)
        require.ErrorIs(t, err, booking.ErrNotFound)
    })
    t.Run("unknown id", func(t *testing.T) {
        _, err := e.Cancel(ctx, 1, "does-not-exist")
        require.ErrorIs(t, err, booking.ErrNotFound)
    })
    t.Run("empty id", func(t *testing.T) {
        _, err := e.Cancel(ctx, 1, "")
        require.ErrorIs(t, err, booking.ErrValidation)
    })
    t.Run("owner then again", func(t *testing.T) {
        got, err := e.Cancel(ctx, 1, r.ID)
        require.NoError(t, err)
        assert.Equal(t, r.ID, got.ID)
        assert.Equal(t, r.TableNumber, got.TableNumber)

        _, err = e.Cancel(ctx, 1, r.ID)
        require.ErrorIs(t, err, booking.ErrNotFound)
    })

    stored, err := e.Reservation(ctx, 1, r.ID)
    require.NoError(t, err)
    assert.Equal(t, model.ReservationCancelled, stored.Status)
}

func TestConcurrentCancelSucceedsOnce(t *testing.T) {
    s := newStore(t, slot(2))
    e := newEngine(s, nil)
    r, err := e.Book(context.Background(), 1, 1, day)
    require.NoError(t, err)

    const n = 8
    errs := make([]error, n)
    var wg sync.WaitGroup
    for i := 0; i < n; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _, errs[i] = e.Cancel(context.Background(), 1, r.ID)
        }(i)
    }
    wg.Wait()

    ok := 0
    for _, err := range errs {
        if err == nil {
            ok++
            continue
        }
        assert.ErrorIs(t, err, booking.ErrNotFound)
    }
    assert.Equal(t, 1, ok)
}

func TestConcurrentLastTable(t *testing.T) {
    lockers := map[string]booking.Locker{
        "local locks": booking.NewLocalLocker(),
        "store only":  nopLocker{},
    }
    for name, locker := range lockers {
        t.Run(name, func(t *testing.T) {
            s := newStore(t, slot(3))
            e := newEngine(s, locker)
            ctx := context.Background()
            for u := uint64(1); u <= 2; u++ {
                _, err := e.Book(ctx, u, 1, day)
                require.NoError(t, err)
            }

            start := make(chan struct{})
            errs := make([]error, 2)
            var wg sync.WaitGroup
            for i := 0; i < 2; i++ {
                wg.Add(1)
                go func(i int) {
                    defer wg.Done()
                    <-start
                    _, errs[i] = e.Book(ctx, uint64(10+i), 1, day)
                }(i)
            }
            close(start)
            wg.Wait()

            var ok, full int
            for _, err := range errs {
                switch {
                case err == nil:
                    ok++
                case errors.Is(err, booking.ErrSlotFull):
                    full++
                default:
                    t.Fatalf("unexpected error: %v", err)
                }
            }
            assert.Equal(t, 1, ok)
            assert.Equal(t, 1, full)
            assert.ElementsMatch(t, []int{1, 2, 3}, activeTables(s, 1))
        })
    }
}

func TestConcurrentBookingsKeepInvariants(t *testing.T) {
    const maxTables = 5
    s := newStore(t, slot(maxTables), slot(maxTables))
    e := newEngine(s, nil)

    var wg sync.WaitGroup
    for u := uint64(1); u <= 20; u++ {
        for sl := uint64(1); sl <= 2; sl++ {
            for attempt := 0; attempt < 2; attempt++ {
                wg.Add(1)
                go func(u, sl uint64) {
                    defer wg.Done()
                    _, _ = e.Book(context.Background(), u, sl, day)
                }(u, sl)
            }
        }
    }
    wg.Wait()

    perSlot := map[uint64]map[int]bool{}
    perUserSlot := map[string]int{}
    perUser := map[uint64]int{}
    for _, r := range s.Reservations() {
        if !r.IsActive() {
            continue
        }
        if perSlot[r.TimeSlotID] == nil {
            perSlot[r.TimeSlotID] = map[int]bool{}
        }
        assert.False(t, perSlot[r.TimeSlotID][r.TableNumber], "table %d reused", r.TableNumber)
        perSlot[r.TimeSlotID][r.TableNumber] = true
        assert.GreaterOrEqual(t, r.TableNumber, 1)
        assert.LessOrEqual(t, r.TableNumber, maxTables)
        perUserSlot[fmt.Sprintf("%d/%d", r.UserID, r.TimeSlotID)]++
        perUser[r.UserID]++
    }
    for sl, tables := range perSlot {
        assert.Len(t, tables, maxTables, "slot %d", sl)
    }
    for k, n := range perUserSlot {
        assert.Equal(t, 1, n, k)
    }
    for u, n := range perUser {
        assert.LessOrEqual(t, n, 2, "user %d", u)
    }
}

func TestBookRetriesTransientConflicts(t *testing.T) {
    s := newStore(t, slot(3))
    e := newEngine(s, nil)
    s.InjectTxConflicts(2)

    r, err := e.Book(context.Background(), 1, 1, day)
    require.NoError(t, err)
    assert.Equal(t, 1, r.TableNumber)
}

func TestBookRetriesTableTakenRace(t *testing.T) {
    s := newStore(t, slot(3))
    e := newEngine(s, nil)
    s.InjectTableTaken(1)

    r, err := e.Book(context.Background(), 1, 1, day)
    require.NoError(t, err)
    assert.Equal(t, 1, r.TableNumber)
    assert.Len(t, s.Reservations(), 1)
}

func TestBookGivesUpAfterMaxAttempts(t *testing.T) {
    s := newStore(t, slot(3))
    e := booking.NewEngine(s, nil, booking.Options{MaxAttempts: 3, RetryBackoff: time.Millisecond}, nil)
    s.InjectTxConflicts(3)

    _, err := e.Book(context.Background(), 1, 1, day)
    require.ErrorIs(t, err, booking.ErrStoreConflict)
    assert.False(t, booking.IsBusinessRule(err))
    assert.Empty(t, s.Reservations())

    // budget consumed by the failed request; the next one goes through
    _, err = e.Book(context.Background(), 1, 1, day)
    require.NoError(t, err)
}

func TestCancelRetriesTransientConflicts(t *testing.T) {
    s := newStore(t, slot(3))
    e := newEngine(s, nil)
    r, err := e.Book(context.Background(), 1, 1, day)
    require.NoError(t, err)

    s.InjectTxConflicts(1)
    _, err = e.Cancel(context.Background(), 1, r.ID)
    require.NoError(t, err)
}

func TestBookCommitOutcomeUnknown(t *testing.T) {
    s := newStore(t, slot(3))
    e := newEngine(s, nil)
    s.InjectCommitError(fmt.Errorf("%w: i/o timeout", booking.ErrOutcomeUnknown))

    _, err := e.Book(context.Background(), 1, 1, day)
    require.ErrorIs(t, err, booking.ErrOutcomeUnknown)
    require.ErrorIs(t, err, booking.ErrStoreUnavailable)
    assert.False(t, booking.IsBusinessRule(err))
}

func TestBookStoreFailureIsUnavailable(t *testing.T) {
    s := newStore(t, slot(3))
    e := newEngine(s, nil)
    s.InjectCommitError(errors.New("connection reset"))

    _, err := e.Book(context.Background(), 1, 1, day)
    require.ErrorIs(t, err, booking.ErrStoreUnavailable)
    assert.NotErrorIs(t, err, booking.ErrOutcomeUnknown)
}

func TestBookLockFailures(t *testing.T) {
    s := newStore(t, slot(3))

    e := newEngine(s, failingLocker{err: booking.ErrStoreUnavailable})
    _, err := e.Book(context.Background(), 1, 1, day)
    require.ErrorIs(t, err, booking.ErrStoreUnavailable)

    e = newEngine(s, failingLocker{err: context.DeadlineExceeded})
    _, err = e.Book(context.Background(), 1, 1, day)
    require.ErrorIs(t, err, booking.ErrStoreConflict)
    assert.Empty(t, s.Reservations())
}

func TestFirstFreeTable(t *testing.T) {
    set := func(ns ...int) map[int]struct{} {
        m := map[int]struct{}{}
        for _, n := range ns {
            m[n] = struct{}{}
        }
        return m
    }
    assert.Equal(t, 1, booking.FirstFreeTable(set(), 3))
    assert.Equal(t, 2, booking.FirstFreeTable(set(1, 3), 3))
    assert.Equal(t, 0, booking.FirstFreeTable(set(1, 2, 3), 3))
    // numbers above max_tables do not count as free capacity
    assert.Equal(t, 0, booking.FirstFreeTable(set(1, 2), 2))
    assert.Equal(t, 3, booking.FirstFreeTable(set(1, 2, 7), 4))
}
