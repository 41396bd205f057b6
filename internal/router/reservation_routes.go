package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dining-table-reservation/internal/handler"
	"github.com/iliyamo/dining-table-reservation/internal/middleware"
	"github.com/iliyamo/dining-table-reservation/internal/model"
)

// RegisterReservations registers guest reservation endpoints under
// /v1/reservations.  Every route requires a valid JWT; USER and ADMIN may
// both book.  Writes additionally pass through writeLimit.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, writeLimit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/reservations",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	)
	g.GET("", h.Mine)
	g.GET("/availability", h.Availability)
	g.POST("", h.Book, writeLimit)
	g.DELETE("/:id", h.Cancel, writeLimit)
}
