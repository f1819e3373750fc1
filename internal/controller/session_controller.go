package controller

import (
	"biblo-chat-be/internal/dto"
	"biblo-chat-be/internal/pkg/serverutils"
	"biblo-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	EndSession(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	ChatLog(ctx *fiber.Ctx) error
	Feedback(ctx *fiber.Ctx) error
	ExtractUserInfo(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
	Archive(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
}

func NewSessionController(sessionService service.ISessionService) ISessionController {
	return &sessionController{
		sessionService: sessionService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	r.Get("/healthz", c.Health)
	r.Post("/end_session", c.EndSession)
	r.Post("/feedback", c.Feedback)
	r.Post("/extract_user_info", c.ExtractUserInfo)
	r.Get("/sessions/archive", c.Archive)
	r.Get("/session/:session_id", c.Show)
	r.Get("/session/:session_id/chat_log", c.ChatLog)
}

func (c *sessionController) EndSession(ctx *fiber.Ctx) error {
	var req dto.EndSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.sessionService.EndSession(ctx.UserContext(), req.SessionID); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Session ended", dto.EndSessionRequest{SessionID: req.SessionID}))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	res, err := c.sessionService.GetSession(ctx.UserContext(), ctx.Params("session_id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *sessionController) ChatLog(ctx *fiber.Ctx) error {
	res, err := c.sessionService.GetChatLog(ctx.UserContext(), ctx.Params("session_id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success export chat log", res))
}

func (c *sessionController) Feedback(ctx *fiber.Ctx) error {
	var req dto.FeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.RecordFeedback(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Feedback recorded", res))
}

// ExtractUserInfo stores the caller's IP, OS and browser on the session.
func (c *sessionController) ExtractUserInfo(ctx *fiber.Ctx) error {
	var req dto.ExtractUserInfoRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	meta := serverutils.ExtractClientMeta(ctx)
	res, err := c.sessionService.UpdateClientMeta(ctx.UserContext(), req.SessionID, meta)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("User info saved", res))
}

func (c *sessionController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("OK", dto.HealthResponse{
		Status:         "ok",
		ActiveSessions: c.sessionService.ActiveCount(),
	}))
}

func (c *sessionController) Archive(ctx *fiber.Ctx) error {
	var req dto.ArchivedSessionsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.ListArchived(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list archived sessions", res))
}
