package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger is anything Health can ping: *sql.DB, or nil for the memory store.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health returns a health‑check handler for load balancers.  With a nil
// Pinger it always answers "ok"; otherwise it answers 503 while the database
// does not respond within two seconds.
func Health(db Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        if db == nil {
            return c.String(http.StatusOK, "ok")
        }
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            return c.String(http.StatusServiceUnavailable, "database unavailable")
        }
        return c.String(http.StatusOK, "ok")
    }
}
