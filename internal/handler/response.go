package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/videotube-api/internal/logging"
	"github.com/iliyamo/videotube-api/internal/service"
)

// apiResponse is the envelope of every JSON response.  Failures carry a nil
// data field and success=false.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c echo.Context, status int, data any, msg string) error {
	return c.JSON(status, apiResponse{StatusCode: status, Data: data, Message: msg, Success: status < http.StatusBadRequest})
}

// fail maps a service error to its HTTP status.  Unexpected errors are
// logged and answered with 500.
func fail(c echo.Context, log logging.Logger, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		log.Error(c.Request().Context(), "unhandled error", "path", c.Path(), "err", err)
		return respond(c, http.StatusInternalServerError, nil, "something went wrong")
	}
	if se.Kind == service.KindInternal {
		log.Error(c.Request().Context(), se.Message, "path", c.Path(), "err", se.Err)
	}
	return respond(c, se.Kind.HTTPStatus(), nil, se.Message)
}
