package handler

import (
	"context"
	"encoding/json"
	"errors"

	"biblo-chat-be/internal/dto"
	"biblo-chat-be/internal/pkg/logger"
	"biblo-chat-be/internal/pkg/serverutils"
	"biblo-chat-be/internal/service"
	internalWS "biblo-chat-be/internal/websocket"
	"biblo-chat-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const clientMetaKey = "client_meta"

type ChatHandler struct {
	chatbot  service.IChatbotService
	sessions service.ISessionService
	hub      *internalWS.Hub
	logger   logger.ILogger
}

func NewChatHandler(chatbot service.IChatbotService, sessions service.ISessionService, hub *internalWS.Hub, log logger.ILogger) *ChatHandler {
	return &ChatHandler{
		chatbot:  chatbot,
		sessions: sessions,
		hub:      hub,
		logger:   log,
	}
}

// RegisterRoutes registers the websocket routes.
func (h *ChatHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/stream", h.upgrade, websocket.New(h.Stream))
	router.Get("/ws/:session_id", h.upgrade, websocket.New(h.Liveness))
}

// upgrade rejects plain HTTP and captures the caller metadata before the connection is hijacked.
func (h *ChatHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals(clientMetaKey, serverutils.ExtractClientMeta(c))
	return c.Next()
}

// Stream runs chat turns. Each inbound text message is one {prompt, session_id} request;
// turns on a connection run one after another.
func (h *ChatHandler) Stream(conn *websocket.Conn) {
	meta, _ := conn.Locals(clientMetaKey).(store.ClientMeta)
	h.logger.Debug("ChatHandler", "Stream connection opened", map[string]interface{}{"ip": meta.IP})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("ChatHandler", "Stream connection closed unexpectedly", map[string]interface{}{"error": err.Error()})
			}
			return
		}

		var req dto.StreamRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			if conn.WriteJSON(dto.ErrorFrame(dto.ErrCodeInvalidRequest, "request must be a JSON object")) != nil {
				return
			}
			continue
		}

		if gone := h.runTurn(conn, req, meta); gone {
			return
		}
	}
}

// runTurn reports whether the client went away during the turn.
func (h *ChatHandler) runTurn(conn *websocket.Conn, req dto.StreamRequest, meta store.ClientMeta) bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emit := func(frame dto.StreamFrame) error {
		if err := conn.WriteJSON(frame); err != nil {
			cancel()
			return err
		}
		return nil
	}

	res, err := h.chatbot.StreamTurn(ctx, service.TurnRequest{
		Prompt:    req.Prompt,
		SessionID: req.SessionID,
		Client:    meta,
	}, emit)

	details := map[string]interface{}{}
	if res != nil {
		details["session_id"] = res.SessionID
		details["domain"] = res.Domain.String()
	}
	if err != nil {
		details["error"] = err.Error()
		h.logger.Warn("ChatHandler", "Turn failed", details)
		return errors.Is(err, service.ErrClientGone)
	}
	h.logger.Debug("ChatHandler", "Turn completed", details)
	return false
}

// Liveness sends the session status and, for live sessions, keeps the socket attached to the hub.
func (h *ChatHandler) Liveness(conn *websocket.Conn) {
	sessionID := conn.Params("session_id")
	frame := h.sessions.Status(sessionID)

	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	if frame.Status != dto.SessionStatusActive {
		err := conn.WriteMessage(websocket.TextMessage, data)
		if err == nil {
			err = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, frame.Status))
		}
		if err != nil {
			h.logger.Debug("ChatHandler", "Liveness status not delivered", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
		return
	}

	h.logger.Info("ChatHandler", "Liveness socket attached", map[string]interface{}{"session_id": sessionID})
	internalWS.ServeWs(h.hub, conn, sessionID, data)
	h.logger.Info("ChatHandler", "Liveness socket detached", map[string]interface{}{"session_id": sessionID})
}
