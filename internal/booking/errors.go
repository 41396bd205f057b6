package booking

import "errors"

// Engine error kinds.  Business-rule errors are terminal and never retried;
// ErrStoreConflict and ErrStoreUnavailable describe the store, not the request.
// Details are attached with fmt.Errorf("%w: ...") so callers match with errors.Is.
var (
    // ErrValidation reports malformed input or a reference to an unknown/inactive slot.
    ErrValidation = errors.New("validation failed")
    // ErrDuplicateBooking is returned when the user already holds an active
    // reservation for the same slot and date.
    ErrDuplicateBooking = errors.New("duplicate booking")
    // ErrDailyLimitExceeded is returned when the user reached the per-day cap.
    ErrDailyLimitExceeded = errors.New("daily reservation limit exceeded")
    // ErrSlotFull is returned when every table of the slot is taken for the date.
    ErrSlotFull = errors.New("slot full")
    // ErrNotFound covers both a missing reservation and one owned by someone else.
    ErrNotFound = errors.New("reservation not found")
    // ErrStoreConflict is transient contention that survived the retry budget.
    ErrStoreConflict = errors.New("store conflict")
    // ErrStoreUnavailable means the store (or lock service) is unreachable or failing.
    ErrStoreUnavailable = errors.New("store unavailable")
    // ErrOutcomeUnknown is returned when a commit timed out; the write may or
    // may not have happened and callers must re-query current state.
    // It matches ErrStoreUnavailable as well.
    ErrOutcomeUnknown error = outcomeUnknownError{}
)

type outcomeUnknownError struct{}

func (outcomeUnknownError) Error() string { return "commit outcome unknown" }
func (outcomeUnknownError) Unwrap() error { return ErrStoreUnavailable }

// Store-level sentinels.  Store implementations wrap driver errors with these
// so the engine can tell retryable contention from hard failures.
var (
    // ErrTxConflict is a deadlock, serialization failure or lock wait timeout.
    ErrTxConflict = errors.New("transaction conflict")
    // ErrActiveTableTaken is a uniqueness violation on (slot, date, table) among active rows.
    ErrActiveTableTaken = errors.New("table already taken")
    // ErrActiveBookingExists is a uniqueness violation on (user, slot, date) among active rows.
    ErrActiveBookingExists = errors.New("active booking exists")
)

// IsBusinessRule reports whether err is a terminal business-rule failure.
func IsBusinessRule(err error) bool {
    return errors.Is(err, ErrValidation) ||
        errors.Is(err, ErrDuplicateBooking) ||
        errors.Is(err, ErrDailyLimitExceeded) ||
        errors.Is(err, ErrSlotFull) ||
        errors.Is(err, ErrNotFound)
}
