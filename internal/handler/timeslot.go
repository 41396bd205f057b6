package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dining-table-reservation/internal/booking"
    "github.com/iliyamo/dining-table-reservation/internal/model"
    "github.com/iliyamo/dining-table-reservation/internal/repository"
)

// SlotAdmin writes the slot catalog.  Both the MySQL and the memory store
// implement it.
type SlotAdmin interface {
    CreateSlot(ctx context.Context, s *model.TimeSlot) error
    UpdateSlot(ctx context.Context, s *model.TimeSlot) error
}

// TimeSlotHandler serves the public slot list and slot administration.
// OnChange, when set, runs after every successful write (the router uses it
// to drop cached slot listings).
type TimeSlotHandler struct {
    Engine   *booking.Engine
    Slots    SlotAdmin
    OnChange func(ctx context.Context)
}

func NewTimeSlotHandler(engine *booking.Engine, slots SlotAdmin, onChange func(ctx context.Context)) *TimeSlotHandler {
    return &TimeSlotHandler{Engine: engine, Slots: slots, OnChange: onChange}
}

// List handles GET /v1/time-slots: active slots ordered by id.
func (h *TimeSlotHandler) List(c echo.Context) error {
    slots, err := h.Engine.Slots(c.Request().Context())
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"time_slots": slots})
}

type slotReq struct {
    StartTime string `json:"start_time"`
    EndTime   string `json:"end_time"`
    Label     string `json:"label"`
    MaxTables int    `json:"max_tables"`
    IsActive  *bool  `json:"is_active"`
}

// toSlot validates the request and normalizes times to HH:MM:SS.
func (r slotReq) toSlot() (*model.TimeSlot, error) {
    start, err := parseClock(r.StartTime)
    if err != nil {
        return nil, errors.New("start_time must be HH:MM or HH:MM:SS")
    }
    end, err := parseClock(r.EndTime)
    if err != nil {
        return nil, errors.New("end_time must be HH:MM or HH:MM:SS")
    }
    if !end.After(start) {
        return nil, errors.New("end_time must be after start_time")
    }
    label := strings.TrimSpace(r.Label)
    if label == "" {
        return nil, errors.New("label is required")
    }
    if r.MaxTables <= 0 {
        return nil, errors.New("max_tables must be positive")
    }
    active := true
    if r.IsActive != nil {
        active = *r.IsActive
    }
    return &model.TimeSlot{
        StartTime: start.Format("15:04:05"),
        EndTime:   end.Format("15:04:05"),
        Label:     label,
        MaxTables: r.MaxTables,
        IsActive:  active,
    }, nil
}

func parseClock(s string) (time.Time, error) {
    s = strings.TrimSpace(s)
    if t, err := time.Parse("15:04:05", s); err == nil {
        return t, nil
    }
    return time.Parse("15:04", s)
}

// Create handles POST /v1/admin/time-slots.
func (h *TimeSlotHandler) Create(c echo.Context) error {
    var req slotReq
    if err := c.Bind(&req); err != nil {
        return jsonError(c, http.StatusBadRequest, codeValidation, "invalid body")
    }
    slot, err := req.toSlot()
    if err != nil {
        return jsonError(c, http.StatusBadRequest, codeValidation, err.Error())
    }
    ctx := c.Request().Context()
    if err := h.Slots.CreateSlot(ctx, slot); err != nil {
        return jsonError(c, http.StatusInternalServerError, codeInternal, "create time slot failed")
    }
    h.changed(ctx)
    return c.JSON(http.StatusCreated, echo.Map{"time_slot": slot})
}

// Update handles PUT /v1/admin/time-slots/:id.  Lowering max_tables below a
// table number held by an active reservation is rejected with 409.
func (h *TimeSlotHandler) Update(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return jsonError(c, http.StatusBadRequest, codeValidation, "invalid time slot id")
    }
    var req slotReq
    if err := c.Bind(&req); err != nil {
        return jsonError(c, http.StatusBadRequest, codeValidation, "invalid body")
    }
    slot, err := req.toSlot()
    if err != nil {
        return jsonError(c, http.StatusBadRequest, codeValidation, err.Error())
    }
    slot.ID = id

    ctx := c.Request().Context()
    if err := h.Slots.UpdateSlot(ctx, slot); err != nil {
        switch {
        case errors.Is(err, repository.ErrSlotNotFound):
            return jsonError(c, http.StatusNotFound, codeNotFound, "time slot not found")
        case errors.Is(err, repository.ErrConflict):
            return jsonError(c, http.StatusConflict, codeSlotInUse, "active reservations hold table numbers above max_tables")
        }
        return jsonError(c, http.StatusInternalServerError, codeInternal, "update time slot failed")
    }
    h.changed(ctx)
    return c.JSON(http.StatusOK, echo.Map{"time_slot": slot})
}

func (h *TimeSlotHandler) changed(ctx context.Context) {
    if h.OnChange != nil {
        h.OnChange(ctx)
    }
}
