package httpapi

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-history/internal/weather"
)

// errorResponse is the payload of every failed request.
type errorResponse struct {
	Error   bool   `json:"error"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case "invalid_input", "invalid_id", "unsupported_format":
		return fiber.StatusBadRequest
	case "not_found":
		return fiber.StatusNotFound
	case "feature_unavailable":
		return fiber.StatusNotImplemented
	case "upstream_error":
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// NewErrorHandler returns the centralized Fiber error handler. Domain errors
// are mapped by kind; server-side failures are logged with their cause and
// answered with a generic message.
func NewErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errorResponse{
				Error:   true,
				Kind:    kindForStatus(fe.Code),
				Message: fe.Message,
			})
		}

		kind := weather.Kind(err)
		status := StatusFor(kind)
		if status >= fiber.StatusInternalServerError {
			logger.ErrorContext(c.UserContext(), "request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("kind", kind),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(errorResponse{
			Error:   true,
			Kind:    kind,
			Message: weather.PublicMessage(err),
		})
	}
}

func kindForStatus(code int) string {
	switch {
	case code == fiber.StatusNotFound:
		return "not_found"
	case code == fiber.StatusRequestTimeout:
		return "timeout"
	case code >= 400 && code < 500:
		return "invalid_input"
	default:
		return "internal"
	}
}
