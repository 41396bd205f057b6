package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/dining-table-reservation/internal/booking"
    "github.com/iliyamo/dining-table-reservation/internal/middleware"
    "github.com/iliyamo/dining-table-reservation/internal/model"
    "github.com/iliyamo/dining-table-reservation/internal/queue"
)

// publishTimeout bounds one background event publish.
const publishTimeout = 5 * time.Second

// ReservationHandler serves the guest reservation endpoints and the
// administrative listing.  JWTAuth runs before every method.
type ReservationHandler struct {
    Engine *booking.Engine
    Events queue.Publisher
    Logger *zap.Logger
}

func NewReservationHandler(engine *booking.Engine, events queue.Publisher, logger *zap.Logger) *ReservationHandler {
    if engine == nil {
        panic("nil engine passed to NewReservationHandler")
    }
    if events == nil {
        events = queue.NopPublisher{}
    }
    if logger == nil {
        logger = zap.NewNop()
    }
    return &ReservationHandler{Engine: engine, Events: events, Logger: logger}
}

type bookReq struct {
    TimeSlotID uint64 `json:"time_slot_id"`
    Date       string `json:"date"`
}

// reservationBody renders a reservation with its calendar date.
type reservationBody struct {
    *model.Reservation
    Date string `json:"date"`
}

func toBody(r *model.Reservation) reservationBody {
    return reservationBody{Reservation: r, Date: model.FormatDate(r.Date)}
}

// Book handles POST /v1/reservations with {"time_slot_id", "date"}.
func (h *ReservationHandler) Book(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return jsonError(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
    }
    var req bookReq
    if err := c.Bind(&req); err != nil {
        return jsonError(c, http.StatusBadRequest, codeValidation, "invalid body")
    }
    if req.TimeSlotID == 0 {
        return jsonError(c, http.StatusBadRequest, codeValidation, "time_slot_id must be a positive integer")
    }
    date, err := model.ParseDate(req.Date)
    if err != nil {
        return jsonError(c, http.StatusBadRequest, codeValidation, err.Error())
    }

    r, err := h.Engine.Book(c.Request().Context(), uid, req.TimeSlotID, date)
    if err != nil {
        return writeEngineError(c, err)
    }
    h.publish(queue.EventReservationCreated, r)
    return c.JSON(http.StatusCreated, echo.Map{
        "message":     "reservation created",
        "reservation": toBody(r),
    })
}

// Cancel handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return jsonError(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
    }
    r, err := h.Engine.Cancel(c.Request().Context(), uid, c.Param("id"))
    if err != nil {
        return writeEngineError(c, err)
    }
    h.publish(queue.EventReservationCancelled, r)
    return c.JSON(http.StatusOK, echo.Map{
        "message":     "reservation cancelled",
        "reservation": toBody(r),
    })
}

// Mine handles GET /v1/reservations: the caller's active reservations.
func (h *ReservationHandler) Mine(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return jsonError(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
    }
    list, err := h.Engine.MyReservations(c.Request().Context(), uid)
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// Availability handles GET /v1/reservations/availability?date=YYYY-MM-DD.
func (h *ReservationHandler) Availability(c echo.Context) error {
    date, err := model.ParseDate(c.QueryParam("date"))
    if err != nil {
        return jsonError(c, http.StatusBadRequest, codeValidation, err.Error())
    }
    list, err := h.Engine.Availability(c.Request().Context(), date)
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"date": model.FormatDate(date), "availability": list})
}

// All handles GET /v1/reservations/all[?date=] for administrators.
func (h *ReservationHandler) All(c echo.Context) error {
    var filter *time.Time
    if q := c.QueryParam("date"); q != "" {
        d, err := model.ParseDate(q)
        if err != nil {
            return jsonError(c, http.StatusBadRequest, codeValidation, err.Error())
        }
        filter = &d
    }
    list, err := h.Engine.AllReservations(c.Request().Context(), filter)
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// publish sends the event in the background; the reservation change is
// already committed, so a broker failure is only logged.
func (h *ReservationHandler) publish(typ string, r *model.Reservation) {
    ev := queue.NewReservationEvent(typ, r, time.Now())
    go func() {
        ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
        defer cancel()
        if err := h.Events.Publish(ctx, ev); err != nil {
            h.Logger.Warn("publish reservation event failed",
                zap.String("type", ev.Type),
                zap.String("reservation_id", ev.ReservationID),
                zap.Error(err),
            )
        }
    }()
}
