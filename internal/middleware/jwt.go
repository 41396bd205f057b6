package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dining-table-reservation/internal/utils"
)

// TokenCookie is the cookie the auth handlers set alongside the JSON tokens.
const TokenCookie = "token"

// JWTAuth returns an Echo middleware that validates an access token and
// injects the bearer's id, email and role into the request context.  The
// token is read from the "token" cookie first, then from a Bearer
// Authorization header.  Handlers read the identity through UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := ""
            if ck, err := c.Cookie(TokenCookie); err == nil {
                raw = ck.Value
            }
            if raw == "" {
                auth := c.Request().Header.Get("Authorization")
                if strings.HasPrefix(auth, "Bearer ") {
                    raw = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
                }
            }
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "unauthorized"})
            }

            id, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
            }
            setIdentity(c, id)
            return next(c)
        }
    }
}
