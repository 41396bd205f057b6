package middleware

// identity.go holds the context keys JWTAuth fills and the accessors
// handlers and other middleware use to read them.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dining-table-reservation/internal/utils"
)

const (
    ctxUserID = "user_id"
    ctxEmail  = "email"
    ctxRole   = "role"
)

func setIdentity(c echo.Context, id utils.Identity) {
    c.Set(ctxUserID, id.UserID)
    c.Set(ctxEmail, id.Email)
    c.Set(ctxRole, id.Role)
}

// UserID returns the authenticated user's id.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id > 0
}

// Role returns the authenticated user's role claim, or "".
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

// Email returns the authenticated user's email claim, or "".
func Email(c echo.Context) string {
    e, _ := c.Get(ctxEmail).(string)
    return e
}

// rateIdentity names the caller for rate limit keys; "anon" before auth.
func rateIdentity(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
