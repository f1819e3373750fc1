package dto

import "biblo-chat-be/pkg/store"

type EndSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type ExtractUserInfoRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type FeedbackRequest struct {
	SessionID     string `json:"session_id" validate:"required"`
	MessageID     string `json:"message_id" validate:"required"`
	FeedbackValue *int   `json:"feedback_value" validate:"required,oneof=0 1"`
}

type SessionResponse struct {
	SessionID           string       `json:"session_id"`
	Domain              string       `json:"domain"`
	MessageCount        int          `json:"message_count"`
	ConversationHistory []MessageDTO `json:"conversation_history"`
}

type FeedbackResponse struct {
	FeedbackSummary store.FeedbackSummary `json:"feedback_summary"`
}

type ChatLogResponse struct {
	SessionID string               `json:"session_id"`
	Chat      []store.ChatLogEntry `json:"chat"`
}

type ClientInfoResponse struct {
	SessionID string           `json:"session_id"`
	Client    store.ClientMeta `json:"client"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
}

type ArchivedSessionsRequest struct {
	SessionID string `query:"session_id"`
	EndReason string `query:"end_reason" validate:"omitempty,oneof=explicit expired shutdown"`
	// Domain accepts the query type ("0", "1") or the domain name.
	Domain   string `query:"domain"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

type ArchivedSessionsResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Sessions []store.SessionLog `json:"sessions"`
}

// ArchiveSessionMessage is the payload queued for the session archive consumer.
type ArchiveSessionMessage struct {
	EndReason string           `json:"end_reason"`
	Log       store.SessionLog `json:"log"`
}
