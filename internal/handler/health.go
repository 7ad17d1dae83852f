package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is used by load balancers and monitoring to verify the service is
// running.
func Health(c echo.Context) error {
	return respond(c, http.StatusOK, echo.Map{"status": "ok"}, "ok")
}
