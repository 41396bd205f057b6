// Package memstore is an in-memory booking.Store.  Units of work run under a
// single mutex, which gives them the same all-or-nothing behaviour the MySQL
// store gets from transactions and unique keys.  It backs the tests and the
// STORE_DRIVER=memory mode for local runs; data does not survive a restart.
package memstore

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/dining-table-reservation/internal/booking"
    "github.com/iliyamo/dining-table-reservation/internal/model"
    "github.com/iliyamo/dining-table-reservation/internal/repository"
)

// Store holds slots, reservations and users in maps.
type Store struct {
    mu           sync.Mutex
    slots        map[uint64]model.TimeSlot
    nextSlotID   uint64
    reservations map[string]*model.Reservation
    users        map[uint64]*model.User
    nextUserID   uint64

    // fault injection, consumed one per call
    txConflicts  int
    tableTaken   int
    commitErrors []error
}

// New returns an empty Store.
func New() *Store {
    return &Store{
        slots:        make(map[uint64]model.TimeSlot),
        reservations: make(map[string]*model.Reservation),
        users:        make(map[uint64]*model.User),
    }
}

var _ booking.Store = (*Store)(nil)

// InjectTxConflicts makes the next n units of work fail with booking.ErrTxConflict.
func (s *Store) InjectTxConflicts(n int) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.txConflicts = n
}

// InjectTableTaken makes the next n inserts fail with booking.ErrActiveTableTaken,
// as if a concurrent writer had claimed the table first.
func (s *Store) InjectTableTaken(n int) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.tableTaken = n
}

// InjectCommitError makes the next commit fail with err and discard the writes.
func (s *Store) InjectCommitError(err error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.commitErrors = append(s.commitErrors, err)
}

// ----- time slots -----

// ListActiveSlots returns active slots ordered by id.
func (s *Store) ListActiveSlots(ctx context.Context) ([]model.TimeSlot, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.TimeSlot, 0, len(s.slots))
    for _, sl := range s.slots {
        if sl.IsActive {
            out = append(out, sl)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

// GetSlot returns the slot or nil.
func (s *Store) GetSlot(ctx context.Context, id uint64) (*model.TimeSlot, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.slotLocked(id), nil
}

func (s *Store) slotLocked(id uint64) *model.TimeSlot {
    sl, ok := s.slots[id]
    if !ok {
        return nil
    }
    return &sl
}

// CreateSlot stores a new slot and assigns its id.
func (s *Store) CreateSlot(ctx context.Context, sl *model.TimeSlot) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    s.nextSlotID++
    sl.ID = s.nextSlotID
    s.slots[sl.ID] = *sl
    return nil
}

// UpdateSlot replaces an existing slot.  It fails with repository.ErrSlotNotFound
// when missing and repository.ErrConflict when MaxTables would drop below a
// table number held by an active reservation.
func (s *Store) UpdateSlot(ctx context.Context, sl *model.TimeSlot) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.slots[sl.ID]; !ok {
        return repository.ErrSlotNotFound
    }
    for _, r := range s.reservations {
        if r.TimeSlotID == sl.ID && r.IsActive() && r.TableNumber > sl.MaxTables {
            return repository.ErrConflict
        }
    }
    s.slots[sl.ID] = *sl
    return nil
}

// ----- reservations -----

// GetReservation returns a copy of the reservation or nil.
func (s *Store) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    r, ok := s.reservations[id]
    if !ok {
        return nil, nil
    }
    cp := *r
    return &cp, nil
}

// UpdateStatus moves a reservation from expected to newStatus.
func (s *Store) UpdateStatus(ctx context.Context, id string, newStatus, expected model.ReservationStatus, at time.Time) (bool, error) {
    if err := ctx.Err(); err != nil {
        return false, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.txConflicts > 0 {
        s.txConflicts--
        return false, booking.ErrTxConflict
    }
    r, ok := s.reservations[id]
    if !ok || r.Status != expected {
        return false, nil
    }
    r.Status = newStatus
    r.UpdatedAt = at
    return true, nil
}

// CountActiveBySlot counts active reservations on date per slot.
func (s *Store) CountActiveBySlot(ctx context.Context, date time.Time) (map[uint64]int, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make(map[uint64]int)
    for _, r := range s.reservations {
        if r.IsActive() && r.Date.Equal(date) {
            out[r.TimeSlotID]++
        }
    }
    return out, nil
}

// CountByStatus counts active and cancelled reservations on date.
func (s *Store) CountByStatus(ctx context.Context, date time.Time) (int, int, error) {
    if err := ctx.Err(); err != nil {
        return 0, 0, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    var active, cancelled int
    for _, r := range s.reservations {
        if !r.Date.Equal(date) {
            continue
        }
        switch r.Status {
        case model.ReservationActive:
            active++
        case model.ReservationCancelled:
            cancelled++
        }
    }
    return active, cancelled, nil
}

// ListByUser lists a user's reservations ordered by date then slot.
func (s *Store) ListByUser(ctx context.Context, userID uint64, activeOnly bool) ([]model.ReservationDetail, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.ReservationDetail, 0)
    for _, r := range s.reservations {
        if r.UserID != userID || (activeOnly && !r.IsActive()) {
            continue
        }
        out = append(out, s.detailLocked(r, false))
    }
    sortDetails(out)
    return out, nil
}

// ListAll lists reservations with user name and email attached.
func (s *Store) ListAll(ctx context.Context, f booking.ReservationFilter) ([]model.ReservationDetail, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.ReservationDetail, 0)
    for _, r := range s.reservations {
        if f.Date != nil && !r.Date.Equal(*f.Date) {
            continue
        }
        if f.ActiveOnly && !r.IsActive() {
            continue
        }
        out = append(out, s.detailLocked(r, true))
    }
    sortDetails(out)
    return out, nil
}

func (s *Store) detailLocked(r *model.Reservation, withUser bool) model.ReservationDetail {
    d := model.ReservationDetail{Reservation: *r, DateStr: model.FormatDate(r.Date)}
    if sl, ok := s.slots[r.TimeSlotID]; ok {
        d.SlotLabel = sl.Label
        d.StartTime = sl.StartTime
        d.EndTime = sl.EndTime
    }
    if withUser {
        if u, ok := s.users[r.UserID]; ok {
            name, email := u.Name, u.Email
            d.UserName = &name
            d.UserEmail = &email
        }
    }
    return d
}

func sortDetails(ds []model.ReservationDetail) {
    sort.Slice(ds, func(i, j int) bool {
        a, b := ds[i], ds[j]
        if !a.Date.Equal(b.Date) {
            return a.Date.Before(b.Date)
        }
        if a.TimeSlotID != b.TimeSlotID {
            return a.TimeSlotID < b.TimeSlotID
        }
        if a.TableNumber != b.TableNumber {
            return a.TableNumber < b.TableNumber
        }
        return a.CreatedAt.Before(b.CreatedAt)
    })
}

// Reservations returns a snapshot of every stored reservation.  Test helper.
func (s *Store) Reservations() []model.Reservation {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Reservation, 0, len(s.reservations))
    for _, r := range s.reservations {
        out = append(out, *r)
    }
    return out
}

// ----- unit of work -----

// InTx runs fn while holding the store mutex.  Inserts are staged and only
// become visible when fn returns nil and the commit succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx booking.TxStore) error) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.txConflicts > 0 {
        s.txConflicts--
        return booking.ErrTxConflict
    }
    tx := &memTx{s: s}
    if err := fn(tx); err != nil {
        return err
    }
    if len(s.commitErrors) > 0 {
        err := s.commitErrors[0]
        s.commitErrors = s.commitErrors[1:]
        return err
    }
    for _, r := range tx.staged {
        cp := *r
        s.reservations[cp.ID] = &cp
    }
    return nil
}

type memTx struct {
    s      *Store
    staged []*model.Reservation
}

func (t *memTx) active(pred func(r *model.Reservation) bool) []*model.Reservation {
    var out []*model.Reservation
    for _, r := range t.s.reservations {
        if r.IsActive() && pred(r) {
            out = append(out, r)
        }
    }
    for _, r := range t.staged {
        if pred(r) {
            out = append(out, r)
        }
    }
    return out
}

func (t *memTx) GetSlot(ctx context.Context, id uint64) (*model.TimeSlot, error) {
    return t.s.slotLocked(id), ctx.Err()
}

func (t *memTx) FindActiveReservation(ctx context.Context, userID, slotID uint64, date time.Time) (*model.Reservation, error) {
    rs := t.active(func(r *model.Reservation) bool {
        return r.UserID == userID && r.TimeSlotID == slotID && r.Date.Equal(date)
    })
    if len(rs) == 0 {
        return nil, ctx.Err()
    }
    cp := *rs[0]
    return &cp, ctx.Err()
}

func (t *memTx) CountActiveByUser(ctx context.Context, userID uint64, date time.Time) (int, error) {
    return len(t.active(func(r *model.Reservation) bool {
        return r.UserID == userID && r.Date.Equal(date)
    })), ctx.Err()
}

func (t *memTx) CountActiveForSlot(ctx context.Context, slotID uint64, date time.Time) (int, error) {
    return len(t.active(func(r *model.Reservation) bool {
        return r.TimeSlotID == slotID && r.Date.Equal(date)
    })), ctx.Err()
}

func (t *memTx) ListActiveTableNumbers(ctx context.Context, slotID uint64, date time.Time) (map[int]struct{}, error) {
    out := make(map[int]struct{})
    for _, r := range t.active(func(r *model.Reservation) bool {
        return r.TimeSlotID == slotID && r.Date.Equal(date)
    }) {
        out[r.TableNumber] = struct{}{}
    }
    return out, ctx.Err()
}

// InsertReservation enforces the same unique keys as the MySQL schema.
func (t *memTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    if t.s.tableTaken > 0 {
        t.s.tableTaken--
        return booking.ErrActiveTableTaken
    }
    if r.IsActive() {
        if len(t.active(func(o *model.Reservation) bool {
            return o.TimeSlotID == r.TimeSlotID && o.Date.Equal(r.Date) && o.TableNumber == r.TableNumber
        })) > 0 {
            return booking.ErrActiveTableTaken
        }
        if len(t.active(func(o *model.Reservation) bool {
            return o.UserID == r.UserID && o.TimeSlotID == r.TimeSlotID && o.Date.Equal(r.Date)
        })) > 0 {
            return booking.ErrActiveBookingExists
        }
    }
    cp := *r
    t.staged = append(t.staged, &cp)
    return nil
}
