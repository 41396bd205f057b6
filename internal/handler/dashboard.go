package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dining-table-reservation/internal/booking"
    "github.com/iliyamo/dining-table-reservation/internal/model"
)

// DashboardHandler serves the admin dashboard.
type DashboardHandler struct {
    Engine *booking.Engine
}

func NewDashboardHandler(engine *booking.Engine) *DashboardHandler {
    return &DashboardHandler{Engine: engine}
}

// Overview handles GET /v1/dashboard/overview?date=.
func (h *DashboardHandler) Overview(c echo.Context) error {
    date, err := model.ParseDate(c.QueryParam("date"))
    if err != nil {
        return jsonError(c, http.StatusBadRequest, codeValidation, err.Error())
    }
    ov, err := h.Engine.DashboardOverview(c.Request().Context(), date)
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusOK, ov)
}

// Reservations handles GET /v1/dashboard/reservations?date=: every
// reservation of the date, any status, with the guest's name and email.
func (h *DashboardHandler) Reservations(c echo.Context) error {
    date, err := model.ParseDate(c.QueryParam("date"))
    if err != nil {
        return jsonError(c, http.StatusBadRequest, codeValidation, err.Error())
    }
    list, err := h.Engine.AllReservations(c.Request().Context(), &date)
    if err != nil {
        return writeEngineError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"date": model.FormatDate(date), "reservations": list})
}
