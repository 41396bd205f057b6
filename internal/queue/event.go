// Package queue carries reservation events over RabbitMQ: the payload type,
// a publisher used by the HTTP layer after a booking or cancellation
// commits, and a consumer that appends each event to an audit log.
package queue

import (
    "fmt"
    "time"

    "github.com/iliyamo/dining-table-reservation/internal/model"
)

// Event types, also used as the AMQP message type.
const (
    EventReservationCreated   = "reservation.created"
    EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published once per committed state change.  It holds
// enough for consumers to log or notify without reading the database.
type ReservationEvent struct {
    Type          string `json:"type"`
    ReservationID string `json:"reservation_id"`
    UserID        uint64 `json:"user_id"`
    TimeSlotID    uint64 `json:"time_slot_id"`
    Date          string `json:"date"`
    TableNumber   int    `json:"table_number"`
    OccurredAt    string `json:"occurred_at"`
}

// NewReservationEvent builds an event of typ for r at the given instant.
func NewReservationEvent(typ string, r *model.Reservation, at time.Time) ReservationEvent {
    return ReservationEvent{
        Type:          typ,
        ReservationID: r.ID,
        UserID:        r.UserID,
        TimeSlotID:    r.TimeSlotID,
        Date:          model.FormatDate(r.Date),
        TableNumber:   r.TableNumber,
        OccurredAt:    at.UTC().Format(time.RFC3339),
    }
}

// LogLine renders the event as one audit log line, newline terminated.
func (e ReservationEvent) LogLine() string {
    return fmt.Sprintf("[%s] %s | reservation_id=%s | user_id=%d | time_slot_id=%d | date=%s | table=%d\n",
        e.OccurredAt, e.Type, e.ReservationID, e.UserID, e.TimeSlotID, e.Date, e.TableNumber)
}
