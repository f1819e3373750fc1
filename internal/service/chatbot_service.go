package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"biblo-chat-be/internal/dto"
	"biblo-chat-be/internal/pkg/logger"
	"biblo-chat-be/internal/repository/contract"
	"biblo-chat-be/pkg/classifier"
	"biblo-chat-be/pkg/llm"
	"biblo-chat-be/pkg/rag/prompt"
	"biblo-chat-be/pkg/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("biblo-chat-be/service/chatbot")

// ContextRetriever returns the formatted knowledge context for a prompt.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, domain store.Domain) (string, error)
}

// TurnRequest is one user prompt arriving on a stream connection.
type TurnRequest struct {
	Prompt    string
	SessionID string
	Client    store.ClientMeta
}

// TurnResult reports where a completed or failed turn left the session.
type TurnResult struct {
	SessionID          string
	UserMessageID      string
	AssistantMessageID string
	Domain             store.Domain
}

// Emit delivers one frame to the client. A non-nil error means the client is gone.
type Emit func(frame dto.StreamFrame) error

type IChatbotService interface {
	StreamTurn(ctx context.Context, req TurnRequest, emit Emit) (*TurnResult, error)
}

type chatbotService struct {
	sessions      contract.ChatSessionRepository
	classifier    classifier.Classifier
	retriever     ContextRetriever
	llmProvider   llm.StreamingProvider
	promptBuilder *prompt.Builder
	logger        logger.ILogger
	newID         func() string
}

func NewChatbotService(
	sessions contract.ChatSessionRepository,
	classifier classifier.Classifier,
	retriever ContextRetriever,
	llmProvider llm.StreamingProvider,
	promptBuilder *prompt.Builder,
	logger logger.ILogger,
) IChatbotService {
	return &chatbotService{
		sessions:      sessions,
		classifier:    classifier,
		retriever:     retriever,
		llmProvider:   llmProvider,
		promptBuilder: promptBuilder,
		logger:        logger,
		newID:         uuid.NewString,
	}
}

// StreamTurn runs one conversational turn and reports its progress through emit.
// Collaborator failures are reported as error frames and returned; the user message
// stays in the session and no assistant message is appended.
func (c *chatbotService) StreamTurn(ctx context.Context, req TurnRequest, emit Emit) (*TurnResult, error) {
	ctx, span := tracer.Start(ctx, "chatbot.StreamTurn")
	defer span.End()

	userPrompt := strings.TrimSpace(req.Prompt)
	if userPrompt == "" {
		return nil, c.fail(emit, dto.ErrCodeNoPrompt, ErrNoPrompt)
	}

	domain, err := c.classify(ctx, userPrompt)
	if err != nil {
		return nil, c.fail(emit, dto.ErrCodeClassificationFailed, err)
	}

	session, isNew := c.getOrCreate(req, domain)
	result := &TurnResult{SessionID: session.ID(), Domain: domain}
	span.SetAttributes(
		attribute.String("session.id", session.ID()),
		attribute.String("session.domain", domain.String()),
		attribute.Bool("session.new", isNew),
	)
	if isNew {
		if err := emit(dto.SessionInfoFrame(session.ID())); err != nil {
			return result, err
		}
	}

	release, err := session.AcquireTurn(ctx)
	if err != nil {
		return result, c.fail(emit, dto.ErrCodeTurnCancelled, err)
	}
	defer release()

	session.SetDomain(domain)

	userID, err := session.AppendMessage(store.RoleUser, req.Prompt, "")
	if err != nil {
		return result, c.fail(emit, appendFailureCode(err), err)
	}
	result.UserMessageID = userID
	if err := emit(dto.UserMessageSavedFrame(userID, req.Prompt)); err != nil {
		return result, err
	}

	// The assistant id is fixed before generation starts so feedback can target it
	// as soon as the client sees message_start.
	assistantID := c.newID()
	result.AssistantMessageID = assistantID
	if err := emit(dto.MessageStartFrame(assistantID)); err != nil {
		return result, err
	}

	knowledge := c.retrieve(ctx, session.ID(), userPrompt, domain)
	messages := c.promptBuilder.Messages(domain, userPrompt, knowledge, session.FormatHistory())

	full, err := c.generate(ctx, messages, emit)
	if err != nil {
		code := dto.ErrCodeGenerationFailed
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrClientGone) {
			code = dto.ErrCodeTurnCancelled
		}
		c.logger.Warn("CHATBOT", "Generation turn failed", map[string]interface{}{
			"session_id":   session.ID(),
			"message_id":   assistantID,
			"partial_size": len(full),
			"error":        err.Error(),
		})
		return result, c.fail(emit, code, err)
	}

	if _, err := session.AppendMessage(store.RoleAssistant, full, assistantID); err != nil {
		return result, c.fail(emit, appendFailureCode(err), err)
	}

	c.logger.Info("CHATBOT", "Turn completed", map[string]interface{}{
		"session_id":    session.ID(),
		"domain":        domain.String(),
		"message_id":    assistantID,
		"response_size": len(full),
	})

	return result, emit(dto.MessageEndFrame(assistantID, full, dto.NewMessageDTOs(session.Messages())))
}

func (c *chatbotService) classify(ctx context.Context, userPrompt string) (store.Domain, error) {
	ctx, span := tracer.Start(ctx, "chatbot.classify")
	defer span.End()

	domain, err := c.classifier.Classify(ctx, userPrompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return 0, fmt.Errorf("classify prompt: %w", err)
	}
	if !domain.Valid() {
		return 0, fmt.Errorf("classify prompt: unknown domain %d", domain)
	}
	return domain, nil
}

// getOrCreate resumes the requested session or opens a new one when the id is
// empty or no longer live.
func (c *chatbotService) getOrCreate(req TurnRequest, domain store.Domain) (*store.Session, bool) {
	if req.SessionID != "" {
		if session, ok := c.sessions.Get(req.SessionID); ok {
			return session, false
		}
		c.logger.Debug("CHATBOT", "Unknown session id, creating a new session", map[string]interface{}{
			"requested_session_id": req.SessionID,
		})
	}
	return c.sessions.Create(domain, req.Client), true
}

// retrieve degrades to an empty context on failure; retrieval never aborts a turn.
func (c *chatbotService) retrieve(ctx context.Context, sessionID, query string, domain store.Domain) string {
	ctx, span := tracer.Start(ctx, "chatbot.retrieve")
	defer span.End()

	knowledge, err := c.retriever.Retrieve(ctx, query, domain)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("CHATBOT", "Context retrieval failed, continuing without context", map[string]interface{}{
			"session_id": sessionID,
			"domain":     domain.String(),
			"error":      err.Error(),
		})
		return ""
	}
	if knowledge == "" {
		c.logger.Warn("CHATBOT", "No context retrieved", map[string]interface{}{
			"session_id": sessionID,
			"domain":     domain.String(),
		})
	}
	return knowledge
}

// generate forwards fragments as token frames and returns the concatenated text.
// If the client goes away the stream is cancelled and the partial text discarded.
func (c *chatbotService) generate(ctx context.Context, messages []llm.Message, emit Emit) (string, error) {
	ctx, span := tracer.Start(ctx, "chatbot.generate")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var full strings.Builder
	fragments := 0
	for ev := range c.llmProvider.Stream(streamCtx, messages) {
		switch ev.Kind {
		case llm.EventFragment:
			full.WriteString(ev.Text)
			fragments++
			if err := emit(dto.TokenFrame(ev.Text)); err != nil {
				cancel()
				span.SetStatus(codes.Error, "client gone")
				return full.String(), fmt.Errorf("deliver token: %w: %w", ErrClientGone, err)
			}
		case llm.EventError:
			span.RecordError(ev.Err)
			span.SetStatus(codes.Error, "generation failed")
			return full.String(), fmt.Errorf("generate: %w", ev.Err)
		case llm.EventDone:
			if err := ctx.Err(); err != nil {
				return full.String(), err
			}
			span.SetAttributes(attribute.Int("llm.fragments", fragments))
			return full.String(), nil
		}
	}

	// Closed without Done: the stream was cancelled.
	if err := ctx.Err(); err != nil {
		return full.String(), err
	}
	return full.String(), context.Canceled
}

// fail sends the distinct error frame for a failed turn and returns err.
// appendFailureCode maps an append error; a session ended mid-turn is not an internal fault.
func appendFailureCode(err error) string {
	if errors.Is(err, store.ErrSessionEnded) {
		return dto.ErrCodeSessionEnded
	}
	return dto.ErrCodeInternal
}

func (c *chatbotService) fail(emit Emit, code string, err error) error {
	if errors.Is(err, ErrClientGone) {
		return err
	}
	_ = emit(dto.ErrorFrame(code, err.Error()))
	return err
}
