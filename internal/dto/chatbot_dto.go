package dto

import "biblo-chat-be/pkg/store"

// Stream frame types sent on /stream.
const (
	FrameSessionInfo      = "session_info"
	FrameUserMessageSaved = "user_message_saved"
	FrameMessageStart     = "message_start"
	FrameToken            = "token"
	FrameMessageEnd       = "message_end"
	FrameError            = "error"
	FrameSessionStatus    = "session_status"
)

// Error codes carried by error frames.
const (
	ErrCodeNoPrompt             = "no_prompt"
	ErrCodeInvalidRequest       = "invalid_request"
	ErrCodeClassificationFailed = "classification_failed"
	ErrCodeGenerationFailed     = "generation_failed"
	ErrCodeTurnCancelled        = "turn_cancelled"
	ErrCodeSessionEnded         = "session_ended"
	ErrCodeInternal             = "internal_error"
)

// Session status values for /ws/:session_id.
const (
	SessionStatusNotFound = "not_found"
	SessionStatusActive   = "active"
	SessionStatusEnded    = "ended"
)

// StreamRequest is one turn sent by the client on /stream.
type StreamRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

// StreamFrame is the single envelope for every server frame; unused fields are omitted.
type StreamFrame struct {
	Type                string       `json:"type"`
	SessionID           string       `json:"session_id,omitempty"`
	IsNewSession        bool         `json:"is_new_session,omitempty"`
	MessageID           string       `json:"message_id,omitempty"`
	Content             string       `json:"content,omitempty"`
	Token               string       `json:"token,omitempty"`
	FullResponse        string       `json:"full_response,omitempty"`
	ConversationHistory []MessageDTO `json:"conversation_history,omitempty"`
	Status              string       `json:"status,omitempty"`
	Code                string       `json:"code,omitempty"`
	Error               string       `json:"error,omitempty"`
}

type MessageDTO struct {
	ID                 string `json:"id"`
	Role               string `json:"role"`
	Content            string `json:"content"`
	TimestampFormatted string `json:"timestamp_formatted"`
}

func NewMessageDTOs(msgs []store.Message) []MessageDTO {
	out := make([]MessageDTO, len(msgs))
	for i, m := range msgs {
		out[i] = MessageDTO{
			ID:                 m.ID,
			Role:               string(m.Role),
			Content:            m.Content,
			TimestampFormatted: m.Timestamp.Format(store.TimeLayout),
		}
	}
	return out
}

func SessionInfoFrame(sessionID string) StreamFrame {
	return StreamFrame{Type: FrameSessionInfo, SessionID: sessionID, IsNewSession: true}
}

func UserMessageSavedFrame(messageID, content string) StreamFrame {
	return StreamFrame{Type: FrameUserMessageSaved, MessageID: messageID, Content: content}
}

func MessageStartFrame(messageID string) StreamFrame {
	return StreamFrame{Type: FrameMessageStart, MessageID: messageID}
}

func TokenFrame(token string) StreamFrame {
	return StreamFrame{Type: FrameToken, Token: token}
}

func MessageEndFrame(messageID, full string, history []MessageDTO) StreamFrame {
	return StreamFrame{
		Type:                FrameMessageEnd,
		MessageID:           messageID,
		FullResponse:        full,
		ConversationHistory: history,
	}
}

func ErrorFrame(code, message string) StreamFrame {
	return StreamFrame{Type: FrameError, Code: code, Error: message}
}

func SessionStatusFrame(status string, history []MessageDTO) StreamFrame {
	return StreamFrame{Type: FrameSessionStatus, Status: status, ConversationHistory: history}
}
