package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"biblo-chat-be/internal/dto"
	"biblo-chat-be/internal/pkg/logger"
	"biblo-chat-be/internal/repository/contract"
	"biblo-chat-be/internal/repository/specification"
	sessionEvents "biblo-chat-be/pkg/session/events"
	"biblo-chat-be/pkg/store"
)

const (
	defaultArchivePageSize = 20
	expiredTeardownTimeout = 10 * time.Second
)

// SessionNotifier is told when a session is gone so attached liveness sockets can be closed.
type SessionNotifier interface {
	NotifySessionEnded(ctx context.Context, sessionID string)
}

type ISessionService interface {
	GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error)
	GetChatLog(ctx context.Context, sessionID string) (*dto.ChatLogResponse, error)
	EndSession(ctx context.Context, sessionID string) error
	RecordFeedback(ctx context.Context, req *dto.FeedbackRequest) (*dto.FeedbackResponse, error)
	UpdateClientMeta(ctx context.Context, sessionID string, meta store.ClientMeta) (*dto.ClientInfoResponse, error)
	Touch(sessionID string) bool
	Status(sessionID string) dto.StreamFrame
	ActiveCount() int
	ListArchived(ctx context.Context, req *dto.ArchivedSessionsRequest) (*dto.ArchivedSessionsResponse, error)
	Shutdown(ctx context.Context) int
	HandleExpired(session *store.Session)
}

type sessionService struct {
	sessions      contract.ChatSessionRepository
	archive       contract.SessionLogRepository
	publisher     IPublisherService
	events        sessionEvents.Publisher
	notifier      SessionNotifier
	logger        logger.ILogger
	sessionLogger logger.ILogger
}

// NewSessionService wires the session lifecycle. archive and notifier may be nil.
func NewSessionService(
	sessions contract.ChatSessionRepository,
	archive contract.SessionLogRepository,
	publisher IPublisherService,
	events sessionEvents.Publisher,
	notifier SessionNotifier,
	logger logger.ILogger,
	sessionLogger logger.ILogger,
) ISessionService {
	s := &sessionService{
		sessions:      sessions,
		archive:       archive,
		publisher:     publisher,
		events:        events,
		notifier:      notifier,
		logger:        logger,
		sessionLogger: sessionLogger,
	}
	sessions.OnExpired(s.HandleExpired)
	return s
}

func (s *sessionService) lookup(sessionID string) (*store.Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, store.ErrSessionNotFound)
	}
	return session, nil
}

func (s *sessionService) GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	msgs := session.Messages()
	return &dto.SessionResponse{
		SessionID:           session.ID(),
		Domain:              session.Domain().String(),
		MessageCount:        len(msgs),
		ConversationHistory: dto.NewMessageDTOs(msgs),
	}, nil
}

func (s *sessionService) GetChatLog(ctx context.Context, sessionID string) (*dto.ChatLogResponse, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return &dto.ChatLogResponse{
		SessionID: session.ID(),
		Chat:      session.ExportChatLog(),
	}, nil
}

func (s *sessionService) EndSession(ctx context.Context, sessionID string) error {
	session, ok := s.sessions.Delete(sessionID)
	if !ok {
		return fmt.Errorf("end session %s: %w", sessionID, store.ErrSessionNotFound)
	}
	s.teardown(ctx, session, store.EndReasonExplicit)
	return nil
}

func (s *sessionService) RecordFeedback(ctx context.Context, req *dto.FeedbackRequest) (*dto.FeedbackResponse, error) {
	if req.FeedbackValue == nil {
		return nil, store.ErrInvalidFeedback
	}
	value := store.FeedbackValue(*req.FeedbackValue)
	if !value.Valid() {
		return nil, store.ErrInvalidFeedback
	}

	session, err := s.lookup(req.SessionID)
	if err != nil {
		return nil, err
	}

	recorded, err := session.RecordFeedback(req.MessageID, value)
	if err != nil {
		return nil, err
	}
	if !recorded {
		return nil, fmt.Errorf("message %s: %w", req.MessageID, store.ErrMessageNotFound)
	}

	summary := session.FeedbackSummary()
	s.logger.Info("SESSION", "Feedback recorded", map[string]interface{}{
		"session_id": req.SessionID,
		"message_id": req.MessageID,
		"value":      int(value),
	})
	s.events.PublishFeedbackRecorded(ctx, req.SessionID, req.MessageID, value, summary)

	return &dto.FeedbackResponse{FeedbackSummary: summary}, nil
}

func (s *sessionService) UpdateClientMeta(ctx context.Context, sessionID string, meta store.ClientMeta) (*dto.ClientInfoResponse, error) {
	session, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	session.SetClientMeta(meta)
	return &dto.ClientInfoResponse{SessionID: sessionID, Client: meta}, nil
}

func (s *sessionService) Touch(sessionID string) bool {
	return s.sessions.Touch(sessionID)
}

// Status builds the session_status frame for a liveness socket.
func (s *sessionService) Status(sessionID string) dto.StreamFrame {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return dto.SessionStatusFrame(dto.SessionStatusNotFound, nil)
	}
	if session.Ended() {
		return dto.SessionStatusFrame(dto.SessionStatusEnded, nil)
	}
	return dto.SessionStatusFrame(dto.SessionStatusActive, dto.NewMessageDTOs(session.Messages()))
}

func (s *sessionService) ActiveCount() int {
	return s.sessions.Count()
}

func (s *sessionService) ListArchived(ctx context.Context, req *dto.ArchivedSessionsRequest) (*dto.ArchivedSessionsResponse, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}

	page, pageSize := req.Page, req.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultArchivePageSize
	}

	var filters []specification.Specification
	if req.SessionID != "" {
		filters = append(filters, specification.BySessionID{SessionID: req.SessionID})
	}
	if req.EndReason != "" {
		filters = append(filters, specification.ByEndReason{Reason: req.EndReason})
	}
	if req.Domain != "" {
		domain, err := store.ParseDomain(req.Domain)
		if err != nil {
			return nil, badRequest(err)
		}
		filters = append(filters, specification.ByDomain{Domain: domain.String()})
	}

	total, err := s.archive.Count(ctx, filters...)
	if err != nil {
		return nil, err
	}

	specs := append(filters,
		specification.OrderBy{Field: "session_end", Desc: true},
		specification.Pagination{Limit: pageSize, Offset: (page - 1) * pageSize},
	)
	logs, err := s.archive.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	res := &dto.ArchivedSessionsResponse{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Sessions: make([]store.SessionLog, 0, len(logs)),
	}
	for _, l := range logs {
		res.Sessions = append(res.Sessions, *l)
	}
	return res, nil
}

// Shutdown ends every live session. It returns how many were torn down.
func (s *sessionService) Shutdown(ctx context.Context) int {
	ended := 0
	for _, id := range s.sessions.ListIDs() {
		session, ok := s.sessions.Delete(id)
		if !ok {
			continue
		}
		s.teardown(ctx, session, store.EndReasonShutdown)
		ended++
	}
	s.logger.Info("SESSION", "Shutdown sweep finished", map[string]interface{}{"ended": ended})
	return ended
}

// HandleExpired is the store's eviction hook for idle sessions.
func (s *sessionService) HandleExpired(session *store.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), expiredTeardownTimeout)
	defer cancel()
	s.teardown(ctx, session, store.EndReasonExpired)
}

func (s *sessionService) teardown(ctx context.Context, session *store.Session, reason string) {
	log := session.BuildLog()

	s.logger.Info("SESSION", "Session ended", map[string]interface{}{
		"session_id":       log.SessionID,
		"reason":           reason,
		"feedback_summary": log.Feedback,
	})
	s.sessionLogger.Info("SESSION_LOG", "Session log", map[string]interface{}{
		"end_reason": reason,
		"log":        log,
	})

	if s.archive != nil && s.publisher != nil {
		payload, err := json.Marshal(dto.ArchiveSessionMessage{EndReason: reason, Log: log})
		if err == nil {
			err = s.publisher.Publish(ctx, payload)
		}
		if err != nil {
			s.logger.Error("SESSION", "Failed to queue session archive", map[string]interface{}{
				"session_id": log.SessionID,
				"error":      err.Error(),
			})
		}
	}

	s.events.PublishSessionEnded(ctx, log, reason)

	if s.notifier != nil {
		s.notifier.NotifySessionEnded(ctx, log.SessionID)
	}
}
