package service

import (
	"context"
	"encoding/json"
	"time"

	"biblo-chat-be/internal/dto"
	"biblo-chat-be/internal/pkg/logger"
	"biblo-chat-be/internal/repository/contract"

	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	archiveMaxAttempts = 3
	archiveRetryDelay  = 500 * time.Millisecond
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the in-process archive topic into the session_logs table.
type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	logs       contract.SessionLogRepository
	logger     logger.ILogger
	retryDelay time.Duration
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	logs contract.SessionLogRepository,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		logs:       logs,
		logger:     logger,
		retryDelay: archiveRetryDelay,
	}
}

// Consume subscribes and processes messages until ctx is done. It returns once the
// subscription is established.
func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.ArchiveSessionMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ARCHIVE", "Failed to unmarshal archive message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	var err error
	for attempt := 1; attempt <= archiveMaxAttempts; attempt++ {
		err = cs.logs.Create(ctx, &payload.Log, payload.EndReason)
		if err == nil {
			break
		}
		cs.logger.Warn("ARCHIVE", "Archive write failed", map[string]interface{}{
			"session_id": payload.Log.SessionID,
			"attempt":    attempt,
			"error":      err.Error(),
		})

		select {
		case <-ctx.Done():
			msg.Nack()
			return
		case <-time.After(cs.retryDelay * time.Duration(attempt)):
		}
	}

	if err != nil {
		// The session log already went to the session logger; the archive copy is dropped.
		cs.logger.Error("ARCHIVE", "Giving up on session archive", map[string]interface{}{
			"session_id": payload.Log.SessionID,
			"error":      err.Error(),
		})
		msg.Ack()
		return
	}

	cs.logger.Info("ARCHIVE", "Session archived", map[string]interface{}{
		"session_id": payload.Log.SessionID,
		"end_reason": payload.EndReason,
		"chat_count": len(payload.Log.Chat),
	})
	msg.Ack()
}
