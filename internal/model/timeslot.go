package model

// TimeSlot is a fixed daily window that can be booked.  Rows live in the
// `time_slots` table and are only changed through slot administration.
//
// Fields:
//  ID        – primary key identifier.
//  StartTime – wall clock start ("HH:MM:SS").
//  EndTime   – wall clock end ("HH:MM:SS").
//  Label     – display label shown to guests (e.g. "Lunch 12:00").
//  MaxTables – number of physical tables available in the slot; always > 0.
//  IsActive  – inactive slots cannot be booked and are hidden from listings.
type TimeSlot struct {
    ID        uint64 `json:"id"`
    StartTime string `json:"start_time"`
    EndTime   string `json:"end_time"`
    Label     string `json:"label"`
    MaxTables int    `json:"max_tables"`
    IsActive  bool   `json:"is_active"`
}
