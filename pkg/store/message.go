package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the human readable timestamp format used in chat logs and session logs.
const TimeLayout = "2006-01-02 15:04:05"

// Domain selects the knowledge corpus and prompt template for a turn.
type Domain int

const (
	DomainCompany Domain = iota // Ten Softworks company information
	DomainLibrary               // Biblo university library
)

func (d Domain) String() string {
	switch d {
	case DomainCompany:
		return "company"
	case DomainLibrary:
		return "library"
	default:
		return "unknown"
	}
}

func (d Domain) Valid() bool {
	return d == DomainCompany || d == DomainLibrary
}

// ParseDomain accepts the numeric query type ("0", "1") or the domain name.
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "company":
		return DomainCompany, nil
	case "1", "library":
		return DomainLibrary, nil
	}
	if n, err := strconv.Atoi(s); err == nil && Domain(n).Valid() {
		return Domain(n), nil
	}
	return 0, fmt.Errorf("unknown domain %q", s)
}

// Role is the stored author tag of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label is the display name used when rendering history for the model.
func (r Role) Label() string {
	if r == RoleUser {
		return "👤 사용자"
	}
	return "🖥️ Biblo AI"
}

// FeedbackValue is a like/dislike rating on an assistant message.
type FeedbackValue int

const (
	FeedbackDislike FeedbackValue = 0
	FeedbackLike    FeedbackValue = 1
)

func (v FeedbackValue) Valid() bool {
	return v == FeedbackDislike || v == FeedbackLike
}

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMeta describes the client that opened the session. Never affects behavior.
type ClientMeta struct {
	IP      string `json:"user_ip"`
	OS      string `json:"user_os"`
	Browser string `json:"user_browser"`
}

type FeedbackSummary struct {
	TotalAssistantResponses int     `json:"total_responses"`
	TotalFeedback           int     `json:"total_feedback"`
	PositiveFeedback        int     `json:"positive_feedback"`
	NegativeFeedback        int     `json:"negative_feedback"`
	Ratio                   float64 `json:"feedback_ratio"`
}

// ChatLogEntry is one exported (user, assistant) pair. Feedback is nil when the
// assistant message was never rated.
type ChatLogEntry struct {
	ID            string         `json:"chatID"`
	Time          string         `json:"chat_time"`
	UserText      string         `json:"user_prompt"`
	AssistantText string         `json:"assistant_prompt"`
	Feedback      *FeedbackValue `json:"user_feedback"`
}

// SessionLog is the audit record emitted when a session is torn down.
type SessionLog struct {
	SessionID    string          `json:"sessionID"`
	Domain       string          `json:"domain"`
	UserIP       string          `json:"user_ip"`
	UserOS       string          `json:"user_os"`
	UserBrowser  string          `json:"user_browser"`
	SessionStart string          `json:"session_start"`
	SessionEnd   string          `json:"session_end"`
	Chat         []ChatLogEntry  `json:"chat"`
	Feedback     FeedbackSummary `json:"feedback_summary"`
}

// End reasons recorded with a torn-down session.
const (
	EndReasonExplicit = "explicit"
	EndReasonExpired  = "expired"
	EndReasonShutdown = "shutdown"
)
