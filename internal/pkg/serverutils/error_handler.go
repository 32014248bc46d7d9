package serverutils

import (
	"errors"

	"slingshot-be/pkg/research/domain"

	"github.com/gofiber/fiber/v2"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// StatusOf maps an error to its HTTP status and error type.
func StatusOf(err error) (int, string) {
	var validation *domain.ValidationError
	var fiberErr *fiber.Error
	var toolErr *domain.ToolFailure
	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrReportNotReady), errors.Is(err, domain.ErrUnknownTool):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrSessionBusy), errors.Is(err, domain.ErrSessionFinalized):
		return fiber.StatusConflict, "conflict"
	case errors.As(err, &toolErr):
		if toolErr.TimedOut {
			return fiber.StatusGatewayTimeout, "tool_timeout"
		}
		return fiber.StatusUnprocessableEntity, "tool_error"
	case errors.Is(err, ErrRateLimited):
		return fiber.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusUnauthorized, "unauthorized"
	case errors.As(err, &fiberErr):
		return fiberErr.Code, "http_error"
	}
	return fiber.StatusInternalServerError, "internal_error"
}

// ErrorHandlerMiddleware renders errors returned by later handlers.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}
		return ErrorHandler(c, err)
	}
}

// ErrorHandler is also installed as fiber.Config.ErrorHandler for errors raised
// outside the middleware chain.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code, kind := StatusOf(err)
	message := err.Error()
	if code == fiber.StatusInternalServerError {
		message = "internal server error"
	}
	return c.Status(code).JSON(ErrorResponse(code, message, kind))
}
