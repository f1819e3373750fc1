package contract

import (
	"biblo-chat-be/pkg/store"
)

// ChatSessionRepository holds live conversations. Lookups of unknown ids are an
// expected outcome and report false rather than an error.
type ChatSessionRepository interface {
	Create(domain store.Domain, meta store.ClientMeta) *store.Session
	Get(sessionID string) (*store.Session, bool)
	Delete(sessionID string) (*store.Session, bool)
	Touch(sessionID string) bool
	ListIDs() []string
	Count() int
	OnExpired(fn func(*store.Session))
}
