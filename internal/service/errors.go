package service

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var ErrArchiveDisabled = fiber.NewError(fiber.StatusServiceUnavailable, "session archive is not configured")

func badRequest(err error) error {
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}

var (
	// ErrNoPrompt is returned for an empty stream request.
	ErrNoPrompt = errors.New("no prompt provided")
	// ErrClientGone marks a turn aborted because a frame could not be delivered.
	ErrClientGone = errors.New("client disconnected")
)
