package middleware

// identity.go holds helpers shared by the rate limiter and the handlers for
// reading the caller identity that JWTAuth stores in the Echo context.

import (
	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's id, or "" when the request did
// not pass through JWTAuth.
func UserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}

// currentUserID is UserID with "anon" for unauthenticated callers, used in
// rate-limit keys.
func currentUserID(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
