package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/iliyamo/dining-table-reservation/internal/booking"
    "github.com/iliyamo/dining-table-reservation/internal/model"
)

// ReservationRepo is the MySQL reservation store.  Rows are never deleted;
// cancellation flips status to 'cancelled', which also nulls the generated
// active_marker column so the unique keys on active rows stop applying.
// Dates are bound as YYYY-MM-DD strings to keep the session time zone out of
// the DATE column.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Store combines the slot and reservation repositories into a booking.Store.
type Store struct {
    *TimeSlotRepo
    *ReservationRepo
}

// NewStore returns the MySQL booking store.
func NewStore(db *sql.DB) *Store {
    return &Store{TimeSlotRepo: NewTimeSlotRepo(db), ReservationRepo: NewReservationRepo(db)}
}

var _ booking.Store = (*Store)(nil)

const reservationColumns = `id, user_id, time_slot_id, date, table_number, status, created_at, updated_at`

func scanReservation(row rowScanner) (*model.Reservation, error) {
    var res model.Reservation
    var status string
    if err := row.Scan(&res.ID, &res.UserID, &res.TimeSlotID, &res.Date, &res.TableNumber,
        &status, &res.CreatedAt, &res.UpdatedAt); err != nil {
        return nil, err
    }
    res.Status = model.ReservationStatus(status)
    res.Date = model.NormalizeDate(res.Date)
    return &res, nil
}

// GetReservation returns a reservation by id or nil when it does not exist.
func (r *ReservationRepo) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
    res, err := scanReservation(r.db.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return res, classify(err)
}

// UpdateStatus is a conditional update: the row changes only while it is
// still in the expected status.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id string, newStatus, expected model.ReservationStatus, at time.Time) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
        string(newStatus), at.UTC(), id, string(expected))
    if err != nil {
        return false, classify(err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// CountActiveBySlot returns active reservation counts per slot for date.
func (r *ReservationRepo) CountActiveBySlot(ctx context.Context, date time.Time) (map[uint64]int, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT time_slot_id, COUNT(*) FROM reservations WHERE date = ? AND status = 'active' GROUP BY time_slot_id`,
        model.FormatDate(date))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make(map[uint64]int)
    for rows.Next() {
        var id uint64
        var n int
        if err := rows.Scan(&id, &n); err != nil {
            return nil, err
        }
        out[id] = n
    }
    return out, rows.Err()
}

// CountByStatus returns active and cancelled totals for date.
func (r *ReservationRepo) CountByStatus(ctx context.Context, date time.Time) (int, int, error) {
    var active, cancelled int
    err := r.db.QueryRowContext(ctx, `
        SELECT COALESCE(SUM(status = 'active'), 0), COALESCE(SUM(status = 'cancelled'), 0)
          FROM reservations WHERE date = ?`, model.FormatDate(date)).Scan(&active, &cancelled)
    return active, cancelled, err
}

const detailSelect = `
    SELECT r.id, r.user_id, r.time_slot_id, r.date, r.table_number, r.status, r.created_at, r.updated_at,
           ts.label, ts.start_time, ts.end_time, u.name, u.email
      FROM reservations r
      JOIN time_slots ts ON ts.id = r.time_slot_id
      LEFT JOIN users u ON u.id = r.user_id`

func (r *ReservationRepo) queryDetails(ctx context.Context, q string, withUser bool, args ...any) ([]model.ReservationDetail, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.ReservationDetail, 0)
    for rows.Next() {
        var d model.ReservationDetail
        var status string
        var name, email sql.NullString
        if err := rows.Scan(&d.ID, &d.UserID, &d.TimeSlotID, &d.Date, &d.TableNumber, &status,
            &d.CreatedAt, &d.UpdatedAt, &d.SlotLabel, &d.StartTime, &d.EndTime, &name, &email); err != nil {
            return nil, err
        }
        d.Status = model.ReservationStatus(status)
        d.Date = model.NormalizeDate(d.Date)
        d.DateStr = model.FormatDate(d.Date)
        if withUser {
            if name.Valid {
                n := name.String
                d.UserName = &n
            }
            if email.Valid {
                e := email.String
                d.UserEmail = &e
            }
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

// ListByUser returns the user's reservations ordered by date then slot.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64, activeOnly bool) ([]model.ReservationDetail, error) {
    q := detailSelect + ` WHERE r.user_id = ?`
    if activeOnly {
        q += ` AND r.status = 'active'`
    }
    q += ` ORDER BY r.date, r.time_slot_id`
    return r.queryDetails(ctx, q, false, userID)
}

// ListAll returns reservations of every user, ordered by date, slot, table.
func (r *ReservationRepo) ListAll(ctx context.Context, f booking.ReservationFilter) ([]model.ReservationDetail, error) {
    var where []string
    var args []any
    if f.Date != nil {
        where = append(where, "r.date = ?")
        args = append(args, model.FormatDate(*f.Date))
    }
    if f.ActiveOnly {
        where = append(where, "r.status = 'active'")
    }
    q := detailSelect
    if len(where) > 0 {
        q += " WHERE " + strings.Join(where, " AND ")
    }
    q += ` ORDER BY r.date, r.time_slot_id, r.table_number, r.created_at`
    return r.queryDetails(ctx, q, true, args...)
}

// InTx runs fn inside a database transaction.  Driver errors are mapped onto
// the booking sentinels.  A failed COMMIT that is not a deadlock or lock wait
// timeout leaves the outcome unknown, since the server may have applied it.
func (r *ReservationRepo) InTx(ctx context.Context, fn func(tx booking.TxStore) error) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return classify(err)
    }
    done := false
    defer func() {
        if !done {
            _ = tx.Rollback()
        }
    }()

    if err := fn(&reservationTx{tx: tx}); err != nil {
        return classify(err)
    }
    done = true
    if err := tx.Commit(); err != nil {
        if c := classify(err); errors.Is(c, booking.ErrTxConflict) {
            return c
        }
        return fmt.Errorf("%w: %v", booking.ErrOutcomeUnknown, err)
    }
    return nil
}

// reservationTx implements booking.TxStore with locking reads.  FOR UPDATE on
// the (user, date) and (slot, date) index ranges takes next-key locks, so a
// concurrent transaction inserting into the same range waits or deadlocks
// instead of observing a stale count.
type reservationTx struct {
    tx *sql.Tx
}

func (t *reservationTx) GetSlot(ctx context.Context, id uint64) (*model.TimeSlot, error) {
    s, err := scanSlot(t.tx.QueryRowContext(ctx,
        `SELECT `+slotColumns+` FROM time_slots WHERE id = ? FOR SHARE`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return s, classify(err)
}

func (t *reservationTx) FindActiveReservation(ctx context.Context, userID, slotID uint64, date time.Time) (*model.Reservation, error) {
    res, err := scanReservation(t.tx.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations
          WHERE user_id = ? AND time_slot_id = ? AND date = ? AND status = 'active' LIMIT 1 FOR UPDATE`,
        userID, slotID, model.FormatDate(date)))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return res, classify(err)
}

func (t *reservationTx) count(ctx context.Context, q string, args ...any) (int, error) {
    var n int
    if err := t.tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
        return 0, classify(err)
    }
    return n, nil
}

func (t *reservationTx) CountActiveByUser(ctx context.Context, userID uint64, date time.Time) (int, error) {
    return t.count(ctx,
        `SELECT COUNT(*) FROM reservations WHERE user_id = ? AND date = ? AND status = 'active' FOR UPDATE`,
        userID, model.FormatDate(date))
}

func (t *reservationTx) CountActiveForSlot(ctx context.Context, slotID uint64, date time.Time) (int, error) {
    return t.count(ctx,
        `SELECT COUNT(*) FROM reservations WHERE time_slot_id = ? AND date = ? AND status = 'active' FOR UPDATE`,
        slotID, model.FormatDate(date))
}

func (t *reservationTx) ListActiveTableNumbers(ctx context.Context, slotID uint64, date time.Time) (map[int]struct{}, error) {
    rows, err := t.tx.QueryContext(ctx,
        `SELECT table_number FROM reservations WHERE time_slot_id = ? AND date = ? AND status = 'active' FOR UPDATE`,
        slotID, model.FormatDate(date))
    if err != nil {
        return nil, classify(err)
    }
    defer rows.Close()
    used := make(map[int]struct{})
    for rows.Next() {
        var n int
        if err := rows.Scan(&n); err != nil {
            return nil, err
        }
        used[n] = struct{}{}
    }
    return used, classify(rows.Err())
}

func (t *reservationTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
    _, err := t.tx.ExecContext(ctx,
        `INSERT INTO reservations (id, user_id, time_slot_id, date, table_number, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
        res.ID, res.UserID, res.TimeSlotID, model.FormatDate(res.Date), res.TableNumber,
        string(res.Status), res.CreatedAt.UTC(), res.UpdatedAt.UTC())
    return classify(err)
}
