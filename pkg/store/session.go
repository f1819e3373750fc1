package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	emptyHistoryText  = "이전 대화 내용이 없습니다."
	historyHeaderText = "이전 대화 내용:\n"
)

// ChatLogPairing decides how ExportChatLog pairs user and assistant messages.
type ChatLogPairing int

const (
	// PairByPosition pairs message 2k with 2k+1 and silently drops a trailing
	// unpaired message. This is the historical export format.
	PairByPosition ChatLogPairing = iota
	// PairByRole pairs every assistant message with the closest preceding
	// unanswered user message, so failed turns do not shift later pairs.
	PairByRole
)

// HistoryLimits bounds FormatHistory. Zero values mean unbounded.
type HistoryLimits struct {
	MaxMessages int
	MaxChars    int
}

type Options struct {
	History HistoryLimits
	Pairing ChatLogPairing
	Clock   func() time.Time
}

// Session is the in-memory state of one conversation.
// All fields are private; every mutation goes through a method holding mu.
type Session struct {
	mu sync.Mutex

	id                string
	domain            Domain
	createdAt         time.Time
	lastInteractionAt time.Time
	messages          []Message
	positions         map[string]int
	feedback          map[string]FeedbackValue
	clientMeta        ClientMeta
	ended             bool

	// turn is a one-slot semaphore serializing generation turns.
	turn chan struct{}

	opts Options
}

func NewSession(id string, domain Domain, meta ClientMeta, opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	now := opts.Clock()
	return &Session{
		id:                id,
		domain:            domain,
		createdAt:         now,
		lastInteractionAt: now,
		positions:         make(map[string]int),
		feedback:          make(map[string]FeedbackValue),
		clientMeta:        meta,
		turn:              make(chan struct{}, 1),
		opts:              opts,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Domain() Domain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domain
}

// SetDomain selects the corpus for the next generation turn.
func (s *Session) SetDomain(d Domain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domain = d
}

func (s *Session) ClientMeta() ClientMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientMeta
}

func (s *Session) SetClientMeta(meta ClientMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientMeta = meta
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) LastInteractionAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInteractionAt
}

// Touch records a liveness signal.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
}

func (s *Session) touchLocked() {
	now := s.opts.Clock()
	if now.Before(s.createdAt) {
		now = s.createdAt
	}
	s.lastInteractionAt = now
}

// End marks the session terminal. It reports whether this call performed the transition.
func (s *Session) End() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	return true
}

func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// AppendMessage appends a message and returns its id. An empty id gets a fresh uuid;
// assistant turns pass the id announced when the stream started.
func (s *Session) AppendMessage(role Role, content string, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return "", ErrSessionEnded
	}
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.positions[id]; exists {
		return "", fmt.Errorf("append %s message %s: %w", role, id, ErrDuplicateMessageID)
	}

	s.messages = append(s.messages, Message{
		ID:        id,
		Role:      role,
		Content:   content,
		Timestamp: s.opts.Clock(),
	})
	s.positions[id] = len(s.messages) - 1
	s.touchLocked()
	return id, nil
}

// Messages returns a copy of the conversation in append order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// FormatHistory renders the conversation as a role-labelled transcript for the
// generation prompt. Oldest messages are dropped first when limits apply.
func (s *Session) FormatHistory() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.messages) == 0 {
		return emptyHistoryText
	}

	msgs := s.messages
	if limit := s.opts.History.MaxMessages; limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	lines := make([]string, len(msgs))
	total := 0
	for i, msg := range msgs {
		lines[i] = fmt.Sprintf("%s: %s\n", msg.Role.Label(), msg.Content)
		total += len(lines[i])
	}
	if limit := s.opts.History.MaxChars; limit > 0 {
		for len(lines) > 1 && total > limit {
			total -= len(lines[0])
			lines = lines[1:]
		}
	}

	var b strings.Builder
	b.WriteString(historyHeaderText)
	for _, line := range lines {
		b.WriteString(line)
	}
	return b.String()
}

// RecordFeedback stores a rating for an assistant message, overwriting any previous one.
// Unknown or non-assistant message ids return false without touching state.
func (s *Session) RecordFeedback(messageID string, value FeedbackValue) (bool, error) {
	if !value.Valid() {
		return false, ErrInvalidFeedback
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return false, ErrSessionEnded
	}
	pos, ok := s.positions[messageID]
	if !ok || s.messages[pos].Role != RoleAssistant {
		return false, nil
	}
	s.feedback[messageID] = value
	return true, nil
}

func (s *Session) FeedbackSummary() FeedbackSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedbackSummaryLocked()
}

func (s *Session) feedbackSummaryLocked() FeedbackSummary {
	summary := FeedbackSummary{TotalFeedback: len(s.feedback)}
	for _, msg := range s.messages {
		if msg.Role == RoleAssistant {
			summary.TotalAssistantResponses++
		}
	}
	for _, v := range s.feedback {
		if v == FeedbackLike {
			summary.PositiveFeedback++
		}
	}
	summary.NegativeFeedback = summary.TotalFeedback - summary.PositiveFeedback
	if summary.TotalFeedback > 0 {
		summary.Ratio = float64(summary.PositiveFeedback) / float64(summary.TotalFeedback)
	}
	return summary
}

// ExportChatLog returns the paired audit view of the conversation.
func (s *Session) ExportChatLog() []ChatLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exportChatLogLocked()
}

func (s *Session) exportChatLogLocked() []ChatLogEntry {
	entries := make([]ChatLogEntry, 0, len(s.messages)/2)

	if s.opts.Pairing == PairByRole {
		var pending *Message
		for i := range s.messages {
			msg := &s.messages[i]
			switch msg.Role {
			case RoleUser:
				pending = msg
			case RoleAssistant:
				if pending == nil {
					continue
				}
				entries = append(entries, s.chatLogEntry(*pending, *msg))
				pending = nil
			}
		}
		return entries
	}

	for i := 0; i+1 < len(s.messages); i += 2 {
		entries = append(entries, s.chatLogEntry(s.messages[i], s.messages[i+1]))
	}
	return entries
}

func (s *Session) chatLogEntry(user, assistant Message) ChatLogEntry {
	entry := ChatLogEntry{
		ID:            assistant.ID,
		Time:          assistant.Timestamp.Format(TimeLayout),
		UserText:      user.Content,
		AssistantText: assistant.Content,
	}
	if v, ok := s.feedback[assistant.ID]; ok {
		fv := v
		entry.Feedback = &fv
	}
	return entry
}

// BuildLog snapshots the session for the teardown log.
func (s *Session) BuildLog() SessionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionLog{
		SessionID:    s.id,
		Domain:       s.domain.String(),
		UserIP:       s.clientMeta.IP,
		UserOS:       s.clientMeta.OS,
		UserBrowser:  s.clientMeta.Browser,
		SessionStart: s.createdAt.Format(TimeLayout),
		SessionEnd:   s.lastInteractionAt.Format(TimeLayout),
		Chat:         s.exportChatLogLocked(),
		Feedback:     s.feedbackSummaryLocked(),
	}
}

// AcquireTurn blocks until no other generation turn is running on this session.
// The returned release func is safe to call more than once.
func (s *Session) AcquireTurn(ctx context.Context) (func(), error) {
	select {
	case s.turn <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() { <-s.turn })
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
