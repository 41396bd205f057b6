package booking

import (
    "context"
    "time"

    "github.com/iliyamo/dining-table-reservation/internal/model"
)

// ReservationFilter narrows administrative listings.  A nil Date lists every date.
type ReservationFilter struct {
    Date       *time.Time
    ActiveOnly bool
}

// Store is the persistent reservation store the engine works against.  It is
// the single source of truth; the engine keeps no copy of reservation state.
// Lookups return (nil, nil) when the row does not exist.
type Store interface {
    ListActiveSlots(ctx context.Context) ([]model.TimeSlot, error)
    GetSlot(ctx context.Context, id uint64) (*model.TimeSlot, error)
    GetReservation(ctx context.Context, id string) (*model.Reservation, error)
    // UpdateStatus sets newStatus only while the row is still in expected.
    // It returns false when the row is missing or was already moved.
    UpdateStatus(ctx context.Context, id string, newStatus, expected model.ReservationStatus, at time.Time) (bool, error)
    // CountActiveBySlot returns active reservation counts keyed by slot id.
    CountActiveBySlot(ctx context.Context, date time.Time) (map[uint64]int, error)
    CountByStatus(ctx context.Context, date time.Time) (active, cancelled int, err error)
    ListByUser(ctx context.Context, userID uint64, activeOnly bool) ([]model.ReservationDetail, error)
    ListAll(ctx context.Context, f ReservationFilter) ([]model.ReservationDetail, error)
    // InTx runs fn as one atomic unit of work.  Returning an error rolls back.
    InTx(ctx context.Context, fn func(tx TxStore) error) error
}

// TxStore is the view of the store available inside InTx.  Reads observe the
// committed state and, where the implementation supports it, lock the rows
// or ranges they touch until the unit of work ends.
type TxStore interface {
    GetSlot(ctx context.Context, id uint64) (*model.TimeSlot, error)
    FindActiveReservation(ctx context.Context, userID, slotID uint64, date time.Time) (*model.Reservation, error)
    CountActiveByUser(ctx context.Context, userID uint64, date time.Time) (int, error)
    CountActiveForSlot(ctx context.Context, slotID uint64, date time.Time) (int, error)
    ListActiveTableNumbers(ctx context.Context, slotID uint64, date time.Time) (map[int]struct{}, error)
    // InsertReservation fails with ErrActiveTableTaken or ErrActiveBookingExists
    // when an active row with the same key already exists.
    InsertReservation(ctx context.Context, r *model.Reservation) error
}
