package model

import (
    "fmt"
    "strings"
    "time"
)

// DateLayout is the calendar date format used on the wire and in MySQL DATE columns.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date and returns it as midnight UTC.
func ParseDate(s string) (time.Time, error) {
    s = strings.TrimSpace(s)
    if s == "" {
        return time.Time{}, fmt.Errorf("date is required")
    }
    t, err := time.ParseInLocation(DateLayout, s, time.UTC)
    if err != nil {
        return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", s)
    }
    return t, nil
}

// NormalizeDate drops the time of day, keeping the calendar day as seen in t's location.
func NormalizeDate(t time.Time) time.Time {
    y, m, d := t.Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }
