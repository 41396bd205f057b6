package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/iliyamo/dining-table-reservation/internal/model"
)

// TimeSlotRepo manages persistence for the slot catalog.  The booking path
// only reads it; writes come from slot administration.
type TimeSlotRepo struct {
    db *sql.DB
}

// NewTimeSlotRepo returns a new TimeSlotRepo bound to the given database.
func NewTimeSlotRepo(db *sql.DB) *TimeSlotRepo { return &TimeSlotRepo{db: db} }

const slotColumns = `id, start_time, end_time, label, max_tables, is_active`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*model.TimeSlot, error) {
    var s model.TimeSlot
    if err := row.Scan(&s.ID, &s.StartTime, &s.EndTime, &s.Label, &s.MaxTables, &s.IsActive); err != nil {
        return nil, err
    }
    return &s, nil
}

// ListActiveSlots returns active slots ordered by id.
func (r *TimeSlotRepo) ListActiveSlots(ctx context.Context) ([]model.TimeSlot, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT `+slotColumns+` FROM time_slots WHERE is_active = 1 ORDER BY id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.TimeSlot, 0)
    for rows.Next() {
        s, err := scanSlot(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *s)
    }
    return out, rows.Err()
}

// GetSlot returns the slot with the given id, or nil when it does not exist.
func (r *TimeSlotRepo) GetSlot(ctx context.Context, id uint64) (*model.TimeSlot, error) {
    s, err := scanSlot(r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM time_slots WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    return s, err
}

// CreateSlot inserts a slot and populates its generated id.
func (r *TimeSlotRepo) CreateSlot(ctx context.Context, s *model.TimeSlot) error {
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO time_slots (start_time, end_time, label, max_tables, is_active) VALUES (?, ?, ?, ?, ?)`,
        s.StartTime, s.EndTime, s.Label, s.MaxTables, s.IsActive)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    s.ID = uint64(id)
    return nil
}

// UpdateSlot overwrites a slot.  Lowering max_tables below a table number an
// active reservation still holds returns ErrConflict.  The reservations range
// is read with FOR UPDATE so a concurrent booking cannot slip a higher table
// number in between.
func (r *TimeSlotRepo) UpdateSlot(ctx context.Context, s *model.TimeSlot) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    var id uint64
    if err := tx.QueryRowContext(ctx, `SELECT id FROM time_slots WHERE id = ? FOR UPDATE`, s.ID).Scan(&id); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return ErrSlotNotFound
        }
        return err
    }
    var highest int
    if err := tx.QueryRowContext(ctx,
        `SELECT COALESCE(MAX(table_number), 0) FROM reservations WHERE time_slot_id = ? AND status = 'active' FOR UPDATE`,
        s.ID).Scan(&highest); err != nil {
        return err
    }
    if highest > s.MaxTables {
        return ErrConflict
    }
    if _, err := tx.ExecContext(ctx,
        `UPDATE time_slots SET start_time = ?, end_time = ?, label = ?, max_tables = ?, is_active = ? WHERE id = ?`,
        s.StartTime, s.EndTime, s.Label, s.MaxTables, s.IsActive, s.ID); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
