package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/videotube-api/internal/handler"
	"github.com/iliyamo/videotube-api/internal/middleware"
)

// bodyLimit caps request bodies on the auth routes; registration carries
// two image files.
const bodyLimit = "12M"

// RegisterRoutes registers routes that do not require authentication or
// any backing service.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session routes.  Register, login and refresh
// live under /v1/auth behind the rate limiter; logout and the account
// endpoints require a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, accessSecret string, rateLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", echomw.BodyLimit(bodyLimit), rateLimit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token; the old one stops working.
	g.POST("/refresh", a.Refresh)

	jwt := middleware.JWTAuth(accessSecret)
	e.POST("/v1/auth/logout", a.Logout, jwt)

	me := e.Group("/v1/users/me", jwt)
	me.GET("", a.Me)
	me.POST("/password", a.ChangePassword, echomw.BodyLimit(bodyLimit))
}

// RegisterPublic registers unauthenticated read endpoints.  Responses are
// served through the given cache middleware.
func RegisterPublic(e *echo.Echo, a *handler.AuthHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/users/:username", a.Profile, cache)
}
