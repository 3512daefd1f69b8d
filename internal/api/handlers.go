package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"promptflow/backend/internal/logging"
	"promptflow/backend/pkg/models"
)

// HandleHealth returns basic health status (always returns 200 OK)
func HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{Status: "ok"})
}

// ErrorHandler renders every error as an RFC 7807 Problem Details response.
func ErrorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		detail := "internal server error"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if msg, ok := he.Message.(string); ok {
				detail = msg
			} else {
				detail = http.StatusText(status)
			}
		} else {
			logger.Error("unhandled request error",
				"method", c.Request().Method,
				"path", c.Path(),
				"error", err,
			)
		}

		if err := writeError(c, status, http.StatusText(status), detail); err != nil {
			logger.Debug("failed to write error response", "error", err)
		}
	}
}

// writeError writes an RFC 7807 Problem Details JSON error response
func writeError(c echo.Context, status int, title, detail string) error {
	problem := models.ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	if c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, problem)
}
