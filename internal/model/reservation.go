package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.  A reservation
// moves from active to cancelled exactly once and is never reactivated.
type ReservationStatus string

const (
    ReservationActive    ReservationStatus = "active"
    ReservationCancelled ReservationStatus = "cancelled"
)

// Reservation mirrors a row of the `reservations` table.  Date carries no
// time component (see NormalizeDate).  TableNumber is in [1, max_tables]
// of the referenced slot.
type Reservation struct {
    ID          string            `json:"id"`
    UserID      uint64            `json:"user_id"`
    TimeSlotID  uint64            `json:"time_slot_id"`
    Date        time.Time         `json:"-"`
    TableNumber int               `json:"table_number"`
    Status      ReservationStatus `json:"status"`
    CreatedAt   time.Time         `json:"created_at"`
    UpdatedAt   time.Time         `json:"updated_at"`
}

// IsActive reports whether the reservation still counts against capacity.
func (r *Reservation) IsActive() bool { return r.Status == ReservationActive }

// ReservationDetail is a reservation joined with its slot and, for
// administrative listings, the owning user's name and email.
type ReservationDetail struct {
    Reservation
    DateStr   string  `json:"date"`
    SlotLabel string  `json:"time_slot_label"`
    StartTime string  `json:"start_time"`
    EndTime   string  `json:"end_time"`
    UserName  *string `json:"user_name,omitempty"`
    UserEmail *string `json:"user_email,omitempty"`
}
