package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// RequireRole allows the request through only when the role claim placed in
// the context by JWTAuth is one of roles.  Anything else gets 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if _, ok := UserID(c); !ok {
                return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not authenticated", "code": "unauthorized"})
            }
            if !allowed[Role(c)] {
                return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden", "code": "forbidden"})
            }
            return next(c)
        }
    }
}
