// Package booking implements the reservation allocation engine: it decides
// whether a booking or cancellation is admissible and which table a new
// reservation gets, under concurrent requests for the same slot and date.
// The persistent Store stays the single source of truth; every decision reads
// it fresh inside one unit of work.
package booking

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "github.com/iliyamo/dining-table-reservation/internal/model"
)

// Options tunes the engine.  Zero values fall back to the defaults below.
type Options struct {
    DailyLimit   int           // active reservations one user may hold per date, at most DefaultDailyLimit
    MaxAttempts  int           // attempts per request when the store reports contention
    RetryBackoff time.Duration // base pause between attempts, grows linearly
}

const (
    DefaultDailyLimit   = 2
    DefaultMaxAttempts  = 3
    DefaultRetryBackoff = 25 * time.Millisecond
)

func (o Options) withDefaults() Options {
    // the cap may be tightened but never raised above two per user per date
    if o.DailyLimit <= 0 || o.DailyLimit > DefaultDailyLimit {
        o.DailyLimit = DefaultDailyLimit
    }
    if o.MaxAttempts <= 0 {
        o.MaxAttempts = DefaultMaxAttempts
    }
    if o.RetryBackoff < 0 {
        o.RetryBackoff = 0
    } else if o.RetryBackoff == 0 {
        o.RetryBackoff = DefaultRetryBackoff
    }
    return o
}

// Engine serves book, cancel and the read-side projections.
type Engine struct {
    store  Store
    locker Locker
    opts   Options
    logger *zap.Logger
    now    func() time.Time
    newID  func() string
}

// NewEngine wires an Engine.  A nil locker falls back to an in-process
// LocalLocker; a nil logger to zap.NewNop.
func NewEngine(store Store, locker Locker, opts Options, logger *zap.Logger) *Engine {
    if store == nil {
        panic("nil store passed to NewEngine")
    }
    if locker == nil {
        locker = NewLocalLocker()
    }
    if logger == nil {
        logger = zap.NewNop()
    }
    return &Engine{
        store:  store,
        locker: locker,
        opts:   opts.withDefaults(),
        logger: logger,
        now:    func() time.Time { return time.Now().UTC() },
        newID:  uuid.NewString,
    }
}

// DailyLimit returns the per-user daily cap in effect.
func (e *Engine) DailyLimit() int { return e.opts.DailyLimit }

// Book reserves one table of slotID on date for userID.  Checks run in a
// fixed order (duplicate, daily cap, capacity, first free table) against the
// committed state, inside one unit of work that holds the (user, date) and
// (slot, date) scopes.
func (e *Engine) Book(ctx context.Context, userID, slotID uint64, date time.Time) (*model.Reservation, error) {
    if userID == 0 {
        return nil, fmt.Errorf("%w: user id is required", ErrValidation)
    }
    if slotID == 0 {
        return nil, fmt.Errorf("%w: time_slot_id must be positive", ErrValidation)
    }
    if date.IsZero() {
        return nil, fmt.Errorf("%w: date is required", ErrValidation)
    }
    date = model.NormalizeDate(date)

    // user scope first, then slot scope: every booking takes them in this order
    unlockUser, err := e.acquire(ctx, UserKey(userID, date))
    if err != nil {
        return nil, err
    }
    defer unlockUser()
    unlockSlot, err := e.acquire(ctx, SlotKey(slotID, date))
    if err != nil {
        return nil, err
    }
    defer unlockSlot()

    var created *model.Reservation
    err = e.withRetry(ctx, "book", func() error {
        r, err := e.tryBook(ctx, userID, slotID, date)
        if err != nil {
            return err
        }
        created = r
        return nil
    })
    if err != nil {
        return nil, err
    }
    e.logger.Info("reservation created",
        zap.String("reservation_id", created.ID),
        zap.Uint64("user_id", userID),
        zap.Uint64("time_slot_id", slotID),
        zap.String("date", model.FormatDate(date)),
        zap.Int("table_number", created.TableNumber),
    )
    return created, nil
}

func (e *Engine) tryBook(ctx context.Context, userID, slotID uint64, date time.Time) (*model.Reservation, error) {
    var created *model.Reservation
    err := e.store.InTx(ctx, func(tx TxStore) error {
        slot, err := tx.GetSlot(ctx, slotID)
        if err != nil {
            return err
        }
        if slot == nil || !slot.IsActive {
            return fmt.Errorf("%w: time slot %d not found or inactive", ErrValidation, slotID)
        }
        if slot.MaxTables <= 0 {
            return fmt.Errorf("%w: time slot %d has no tables", ErrValidation, slotID)
        }

        existing, err := tx.FindActiveReservation(ctx, userID, slotID, date)
        if err != nil {
            return err
        }
        if existing != nil {
            return fmt.Errorf("%w: reservation %s already holds this slot", ErrDuplicateBooking, existing.ID)
        }

        perDay, err := tx.CountActiveByUser(ctx, userID, date)
        if err != nil {
            return err
        }
        if perDay >= e.opts.DailyLimit {
            return fmt.Errorf("%w: %d of %d used", ErrDailyLimitExceeded, perDay, e.opts.DailyLimit)
        }

        taken, err := tx.CountActiveForSlot(ctx, slotID, date)
        if err != nil {
            return err
        }
        if taken >= slot.MaxTables {
            return fmt.Errorf("%w: %d of %d tables taken", ErrSlotFull, taken, slot.MaxTables)
        }

        used, err := tx.ListActiveTableNumbers(ctx, slotID, date)
        if err != nil {
            return err
        }
        table := FirstFreeTable(used, slot.MaxTables)
        if table == 0 {
            return fmt.Errorf("%w: no free table number", ErrSlotFull)
        }

        now := e.now()
        r := &model.Reservation{
            ID:          e.newID(),
            UserID:      userID,
            TimeSlotID:  slotID,
            Date:        date,
            TableNumber: table,
            Status:      model.ReservationActive,
            CreatedAt:   now,
            UpdatedAt:   now,
        }
        if err := tx.InsertReservation(ctx, r); err != nil {
            return err
        }
        created = r
        return nil
    })
    if err != nil {
        return nil, err
    }
    return created, nil
}

// FirstFreeTable returns the lowest table number in [1, maxTables] missing
// from used, or 0 when every number is taken.
func FirstFreeTable(used map[int]struct{}, maxTables int) int {
    for n := 1; n <= maxTables; n++ {
        if _, ok := used[n]; !ok {
            return n
        }
    }
    return 0
}

// Cancel moves the caller's active reservation to cancelled and returns it in
// its new state.  A reservation that is missing, owned by someone else or
// already cancelled yields ErrNotFound.  Table numbers of other reservations
// are left untouched.
func (e *Engine) Cancel(ctx context.Context, userID uint64, reservationID string) (*model.Reservation, error) {
    if reservationID == "" {
        return nil, fmt.Errorf("%w: reservation id is required", ErrValidation)
    }
    var cancelled *model.Reservation
    err := e.withRetry(ctx, "cancel", func() error {
        r, err := e.store.GetReservation(ctx, reservationID)
        if err != nil {
            return err
        }
        if r == nil || r.UserID != userID || !r.IsActive() {
            return ErrNotFound
        }
        at := e.now()
        ok, err := e.store.UpdateStatus(ctx, reservationID, model.ReservationCancelled, model.ReservationActive, at)
        if err != nil {
            return err
        }
        if !ok {
            // someone cancelled it between our read and the conditional update
            return ErrNotFound
        }
        r.Status = model.ReservationCancelled
        r.UpdatedAt = at
        cancelled = r
        return nil
    })
    if err != nil {
        return nil, err
    }
    e.logger.Info("reservation cancelled",
        zap.String("reservation_id", reservationID),
        zap.Uint64("user_id", userID),
        zap.Uint64("time_slot_id", cancelled.TimeSlotID),
        zap.String("date", model.FormatDate(cancelled.Date)),
    )
    return cancelled, nil
}

// Reservation returns a single reservation owned by userID, or ErrNotFound.
func (e *Engine) Reservation(ctx context.Context, userID uint64, reservationID string) (*model.Reservation, error) {
    r, err := e.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, storeFailure(err)
    }
    if r == nil || r.UserID != userID {
        return nil, ErrNotFound
    }
    return r, nil
}

func (e *Engine) acquire(ctx context.Context, key string) (func(), error) {
    unlock, err := e.locker.Lock(ctx, key)
    if err == nil {
        return unlock, nil
    }
    if errors.Is(err, ErrStoreConflict) || errors.Is(err, ErrStoreUnavailable) {
        return nil, err
    }
    // ctx ended while waiting; nothing was written
    return nil, fmt.Errorf("%w: waiting for %s: %v", ErrStoreConflict, key, err)
}

// withRetry runs fn until it succeeds, fails terminally or the attempt budget
// is spent.  Only store contention (ErrTxConflict, ErrActiveTableTaken) is
// retried; each retry re-runs every check against fresh state.
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) error {
    var last error
    for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
        err := fn()
        if err == nil {
            return nil
        }
        if !retryable(err) {
            return classify(err)
        }
        last = err
        e.logger.Debug("store contention, retrying",
            zap.String("op", op),
            zap.Int("attempt", attempt),
            zap.Error(err),
        )
        if attempt == e.opts.MaxAttempts {
            break
        }
        t := time.NewTimer(time.Duration(attempt) * e.opts.RetryBackoff)
        select {
        case <-ctx.Done():
            t.Stop()
            return fmt.Errorf("%w: %s interrupted: %v", ErrStoreConflict, op, ctx.Err())
        case <-t.C:
        }
    }
    e.logger.Warn("store contention persisted",
        zap.String("op", op),
        zap.Int("attempts", e.opts.MaxAttempts),
        zap.Error(last),
    )
    return fmt.Errorf("%w: %s gave up after %d attempts: %v", ErrStoreConflict, op, e.opts.MaxAttempts, last)
}

func retryable(err error) bool {
    return errors.Is(err, ErrTxConflict) || errors.Is(err, ErrActiveTableTaken)
}

// classify maps a non-retryable error onto the engine taxonomy.
func classify(err error) error {
    switch {
    case IsBusinessRule(err), errors.Is(err, ErrStoreConflict), errors.Is(err, ErrStoreUnavailable):
        return err
    case errors.Is(err, ErrActiveBookingExists):
        return fmt.Errorf("%w: %v", ErrDuplicateBooking, err)
    default:
        return storeFailure(err)
    }
}

func storeFailure(err error) error {
    if errors.Is(err, ErrStoreUnavailable) {
        return err
    }
    return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
