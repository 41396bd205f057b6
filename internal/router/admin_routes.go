package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dining-table-reservation/internal/handler"
	"github.com/iliyamo/dining-table-reservation/internal/middleware"
	"github.com/iliyamo/dining-table-reservation/internal/model"
)

// RegisterAdmin registers ADMIN-only endpoints: the all-reservations listing,
// the dashboard and slot administration.
func RegisterAdmin(e *echo.Echo, ts *handler.TimeSlotHandler, res *handler.ReservationHandler, dash *handler.DashboardHandler, jwtSecret string) {
	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	}

	e.GET("/v1/reservations/all", res.All, admin...)

	d := e.Group("/v1/dashboard", admin...)
	d.GET("/overview", dash.Overview)
	d.GET("/reservations", dash.Reservations)

	s := e.Group("/v1/admin/time-slots", admin...)
	s.POST("", ts.Create)
	s.PUT("/:id", ts.Update)
}
