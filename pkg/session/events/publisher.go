package events

import (
	"context"
	"time"

	"biblo-chat-be/internal/pkg/logger"
	pkgEvents "biblo-chat-be/pkg/events"
	pktNats "biblo-chat-be/pkg/nats"
	"biblo-chat-be/pkg/store"
)

// Publisher abstracts domain event publishing for session lifecycle changes.
type Publisher interface {
	PublishSessionEnded(ctx context.Context, log store.SessionLog, reason string)
	PublishFeedbackRecorded(ctx context.Context, sessionID, messageID string, value store.FeedbackValue, summary store.FeedbackSummary)
}

// EventSink is the transport an event is handed to. *nats.Publisher satisfies it.
type EventSink interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

var _ EventSink = (*pktNats.Publisher)(nil)

// NatsPublisher implements Publisher. A nil sink turns every call into a no-op,
// which is how the service runs without NATS_URL.
type NatsPublisher struct {
	sink   EventSink
	logger logger.ILogger
	now    func() time.Time
}

func NewNatsPublisher(sink EventSink, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// PublishSessionEnded emits SESSION_ENDED with the feedback summary of the session.
func (p *NatsPublisher) PublishSessionEnded(ctx context.Context, log store.SessionLog, reason string) {
	p.publish(ctx, pkgEvents.BaseEvent{
		Type: pkgEvents.TypeSessionEnded,
		Data: map[string]interface{}{
			"session_id":    log.SessionID,
			"domain":        log.Domain,
			"reason":        reason,
			"session_start": log.SessionStart,
			"session_end":   log.SessionEnd,
			"chat_count":    len(log.Chat),
			"feedback":      log.Feedback,
		},
		OccurredAt: p.now(),
	})
}

// PublishFeedbackRecorded emits FEEDBACK_RECORDED
func (p *NatsPublisher) PublishFeedbackRecorded(ctx context.Context, sessionID, messageID string, value store.FeedbackValue, summary store.FeedbackSummary) {
	p.publish(ctx, pkgEvents.BaseEvent{
		Type: pkgEvents.TypeFeedbackRecorded,
		Data: map[string]interface{}{
			"session_id":     sessionID,
			"message_id":     messageID,
			"feedback_value": int(value),
			"summary":        summary,
		},
		OccurredAt: p.now(),
	})
}

func (p *NatsPublisher) publish(ctx context.Context, evt pkgEvents.BaseEvent) {
	if p.sink == nil {
		return
	}

	if err := p.sink.Publish(ctx, evt); err != nil {
		p.logger.Error("EVENTS", "Failed to publish "+evt.Type+" event", map[string]interface{}{"error": err.Error()})
	}
}
