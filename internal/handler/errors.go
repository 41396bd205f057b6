package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dining-table-reservation/internal/booking"
)

// Machine-readable error codes returned next to the message.
const (
    codeValidation    = "validation_error"
    codeNotFound      = "not_found"
    codeDuplicate     = "duplicate_booking"
    codeDailyLimit    = "daily_limit_exceeded"
    codeSlotFull      = "slot_full"
    codeConflict      = "store_conflict"
    codeOutcome       = "outcome_unknown"
    codeUnavailable   = "store_unavailable"
    codeInternal      = "internal_error"
    codeUnauthorized  = "unauthorized"
    codeSlotInUse     = "slot_in_use"
    codeEmailConflict = "email_exists"
)

type errorBody struct {
    Error string `json:"error"`
    Code  string `json:"code"`
}

func jsonError(c echo.Context, status int, code, msg string) error {
    return c.JSON(status, errorBody{Error: msg, Code: code})
}

// writeEngineError maps the booking error taxonomy onto HTTP.  Store errors
// get fixed messages so driver detail never reaches the client.
func writeEngineError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, booking.ErrValidation):
        return jsonError(c, http.StatusBadRequest, codeValidation, err.Error())
    case errors.Is(err, booking.ErrNotFound):
        return jsonError(c, http.StatusNotFound, codeNotFound, "reservation not found")
    case errors.Is(err, booking.ErrDuplicateBooking):
        return jsonError(c, http.StatusConflict, codeDuplicate, "you already have a reservation in this time slot")
    case errors.Is(err, booking.ErrDailyLimitExceeded):
        return jsonError(c, http.StatusConflict, codeDailyLimit, "daily reservation limit reached")
    case errors.Is(err, booking.ErrSlotFull):
        return jsonError(c, http.StatusConflict, codeSlotFull, "no tables available in this time slot")
    case errors.Is(err, booking.ErrStoreConflict):
        c.Response().Header().Set("Retry-After", "1")
        return jsonError(c, http.StatusServiceUnavailable, codeConflict, "too much contention, please retry")
    case errors.Is(err, booking.ErrOutcomeUnknown):
        return jsonError(c, http.StatusGatewayTimeout, codeOutcome, "request outcome unknown, check your reservations before retrying")
    case errors.Is(err, booking.ErrStoreUnavailable):
        return jsonError(c, http.StatusServiceUnavailable, codeUnavailable, "storage unavailable")
    default:
        return jsonError(c, http.StatusInternalServerError, codeInternal, "internal error")
    }
}
