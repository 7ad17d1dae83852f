package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/videotube-api/internal/utils"
)

// AccessTokenCookie is the cookie carrying the access token.
const AccessTokenCookie = "accessToken"

// JWTAuth returns an Echo middleware that validates the access token from
// the accessToken cookie or a Bearer Authorization header and injects the
// token's subject and username into the request context.  Handlers read
// them via `c.Get("user_id")` and `c.Get("username")`.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := accessTokenFrom(c)
			if raw == "" {
				return unauthorized(c, "unauthorized request")
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return unauthorized(c, "invalid access token")
			}
			c.Set("user_id", claims.Subject)
			c.Set("username", claims.Username)
			return next(c)
		}
	}
}

// accessTokenFrom prefers the cookie and falls back to the header.
func accessTokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(ck.Value) != "" {
		return strings.TrimSpace(ck.Value)
	}
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"statusCode": http.StatusUnauthorized,
		"data":       nil,
		"message":    msg,
		"success":    false,
	})
}
