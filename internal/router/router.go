package router // package router defines how HTTP routes are registered for the API

import (
	"context"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/dining-table-reservation/internal/config"
	"github.com/iliyamo/dining-table-reservation/internal/handler"
	"github.com/iliyamo/dining-table-reservation/internal/middleware"
)

// Deps is everything the HTTP surface needs.  Redis may be nil.
type Deps struct {
	Logger    *zap.Logger
	DB        handler.Pinger
	Redis     *redis.Client
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig

	Auth         *handler.AuthHandler
	TimeSlots    *handler.TimeSlotHandler
	Reservations *handler.ReservationHandler
	Dashboard    *handler.DashboardHandler
}

// New builds the Echo instance with the shared middleware and every route.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger))

	if d.TimeSlots != nil && d.TimeSlots.OnChange == nil {
		d.TimeSlots.OnChange = func(ctx context.Context) {
			middleware.InvalidateCache(ctx, d.Cache, d.Redis, d.Logger)
		}
	}

	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d.Auth, d.JWTSecret)
	RegisterTimeSlots(e, d.TimeSlots, middleware.NewRedisCache(d.Cache, d.Redis))
	RegisterReservations(e, d.Reservations, d.JWTSecret, writeLimiter(d))
	RegisterAdmin(e, d.TimeSlots, d.Reservations, d.Dashboard, d.JWTSecret)
	return e
}

// writeLimiter is the smaller bucket for booking and cancellation, keyed
// under its own prefix so it does not share tokens with reads.
func writeLimiter(d Deps) echo.MiddlewareFunc {
	return middleware.NewTokenBucket(d.RateLimit.ForWrites(), d.Redis, d.Logger)
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers authentication routes.  Register, login and the two
// refresh flavours live under /v1/auth without a session; logout and me
// require a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)

	authed := middleware.JWTAuth(jwtSecret)
	g.POST("/logout", a.Logout, authed)
	e.GET("/v1/me", a.Me, authed)
	e.GET("/v1/auth/me", a.Me, authed)
}

// RegisterTimeSlots exposes the public slot catalog behind the response cache.
func RegisterTimeSlots(e *echo.Echo, h *handler.TimeSlotHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/time-slots", h.List, cache)
}
