package booking

import (
    "context"
    "sort"
    "time"

    "github.com/iliyamo/dining-table-reservation/internal/model"
)

// SlotAvailability is the remaining capacity of one slot on one date.
type SlotAvailability struct {
    TimeSlotID      uint64 `json:"time_slot_id"`
    Label           string `json:"label"`
    StartTime       string `json:"start_time"`
    EndTime         string `json:"end_time"`
    AvailableTables int    `json:"available_tables"`
    MaxTables       int    `json:"max_tables"`
    IsAvailable     bool   `json:"is_available"`
}

// DashboardSlot is per-slot utilization for the admin dashboard.
type DashboardSlot struct {
    TimeSlotID      uint64 `json:"time_slot_id"`
    Label           string `json:"label"`
    ReservedTables  int    `json:"reserved_tables"`
    AvailableTables int    `json:"available_tables"`
    MaxTables       int    `json:"max_tables"`
}

// DashboardOverview summarises one date.
type DashboardOverview struct {
    Date              string          `json:"date"`
    TotalReservations int             `json:"total_reservations"`
    TotalCancelled    int             `json:"total_cancelled"`
    Slots             []DashboardSlot `json:"slots"`
}

// Availability lists every active slot with max_tables minus its active
// reservations on date, ordered by slot id.  Read-only.
func (e *Engine) Availability(ctx context.Context, date time.Time) ([]SlotAvailability, error) {
    slots, counts, err := e.slotCounts(ctx, model.NormalizeDate(date))
    if err != nil {
        return nil, err
    }
    out := make([]SlotAvailability, 0, len(slots))
    for _, s := range slots {
        avail := remaining(s.MaxTables, counts[s.ID])
        out = append(out, SlotAvailability{
            TimeSlotID:      s.ID,
            Label:           s.Label,
            StartTime:       s.StartTime,
            EndTime:         s.EndTime,
            AvailableTables: avail,
            MaxTables:       s.MaxTables,
            IsAvailable:     avail > 0,
        })
    }
    return out, nil
}

// DashboardOverview reports active and cancelled totals for date plus
// per-slot utilization built from the same counts as Availability.
func (e *Engine) DashboardOverview(ctx context.Context, date time.Time) (*DashboardOverview, error) {
    date = model.NormalizeDate(date)
    slots, counts, err := e.slotCounts(ctx, date)
    if err != nil {
        return nil, err
    }
    active, cancelled, err := e.store.CountByStatus(ctx, date)
    if err != nil {
        return nil, storeFailure(err)
    }
    ov := &DashboardOverview{
        Date:              model.FormatDate(date),
        TotalReservations: active,
        TotalCancelled:    cancelled,
        Slots:             make([]DashboardSlot, 0, len(slots)),
    }
    for _, s := range slots {
        reserved := counts[s.ID]
        ov.Slots = append(ov.Slots, DashboardSlot{
            TimeSlotID:      s.ID,
            Label:           s.Label,
            ReservedTables:  reserved,
            AvailableTables: remaining(s.MaxTables, reserved),
            MaxTables:       s.MaxTables,
        })
    }
    return ov, nil
}

// MyReservations lists the user's active reservations by date, then slot.
func (e *Engine) MyReservations(ctx context.Context, userID uint64) ([]model.ReservationDetail, error) {
    out, err := e.store.ListByUser(ctx, userID, true)
    if err != nil {
        return nil, storeFailure(err)
    }
    return out, nil
}

// AllReservations lists reservations of every user and status, optionally
// restricted to one date, ordered by date, slot and table number.
func (e *Engine) AllReservations(ctx context.Context, date *time.Time) ([]model.ReservationDetail, error) {
    f := ReservationFilter{}
    if date != nil {
        d := model.NormalizeDate(*date)
        f.Date = &d
    }
    out, err := e.store.ListAll(ctx, f)
    if err != nil {
        return nil, storeFailure(err)
    }
    return out, nil
}

// Slots returns the active slot catalog ordered by id.
func (e *Engine) Slots(ctx context.Context) ([]model.TimeSlot, error) {
    slots, err := e.store.ListActiveSlots(ctx)
    if err != nil {
        return nil, storeFailure(err)
    }
    sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
    return slots, nil
}

func (e *Engine) slotCounts(ctx context.Context, date time.Time) ([]model.TimeSlot, map[uint64]int, error) {
    slots, err := e.Slots(ctx)
    if err != nil {
        return nil, nil, err
    }
    counts, err := e.store.CountActiveBySlot(ctx, date)
    if err != nil {
        return nil, nil, storeFailure(err)
    }
    return slots, counts, nil
}

func remaining(maxTables, active int) int {
    if active >= maxTables {
        return 0
    }
    return maxTables - active
}
