package serverutils

import (
	"errors"

	"biblo-chat-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts errors returned by handlers into the response envelope.
// Expected outcomes (not found, validation) map to 4xx; everything else is a 500.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := StatusFor(err)
		return ctx.Status(status).JSON(ErrorResponse(status, err.Error()))
	}
}

func StatusFor(err error) int {
	var fiberErr *fiber.Error
	var validationErr *ValidationError

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.As(err, &validationErr), errors.Is(err, store.ErrInvalidFeedback):
		return fiber.StatusBadRequest
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrMessageNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, store.ErrSessionEnded):
		return fiber.StatusGone
	default:
		return fiber.StatusInternalServerError
	}
}
