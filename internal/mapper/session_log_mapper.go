package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"biblo-chat-be/internal/model"
	"biblo-chat-be/pkg/store"

	"gorm.io/datatypes"
)

type SessionLogMapper struct{}

func NewSessionLogMapper() *SessionLogMapper {
	return &SessionLogMapper{}
}

func (m *SessionLogMapper) ToModel(l *store.SessionLog, endReason string) (*model.SessionLog, error) {
	chat, err := json.Marshal(l.Chat)
	if err != nil {
		return nil, fmt.Errorf("marshal chat log: %w", err)
	}
	summary, err := json.Marshal(l.Feedback)
	if err != nil {
		return nil, fmt.Errorf("marshal feedback summary: %w", err)
	}

	return &model.SessionLog{
		SessionId:       l.SessionID,
		Domain:          l.Domain,
		UserIp:          l.UserIP,
		UserOs:          l.UserOS,
		UserBrowser:     l.UserBrowser,
		SessionStart:    parseLogTime(l.SessionStart),
		SessionEnd:      parseLogTime(l.SessionEnd),
		Chat:            datatypes.JSON(chat),
		FeedbackSummary: datatypes.JSON(summary),
		EndReason:       endReason,
	}, nil
}

func (m *SessionLogMapper) ToStore(s *model.SessionLog) (*store.SessionLog, error) {
	out := &store.SessionLog{
		SessionID:    s.SessionId,
		Domain:       s.Domain,
		UserIP:       s.UserIp,
		UserOS:       s.UserOs,
		UserBrowser:  s.UserBrowser,
		SessionStart: s.SessionStart.Format(store.TimeLayout),
		SessionEnd:   s.SessionEnd.Format(store.TimeLayout),
	}
	if len(s.Chat) > 0 {
		if err := json.Unmarshal(s.Chat, &out.Chat); err != nil {
			return nil, fmt.Errorf("unmarshal chat log: %w", err)
		}
	}
	if len(s.FeedbackSummary) > 0 {
		if err := json.Unmarshal(s.FeedbackSummary, &out.Feedback); err != nil {
			return nil, fmt.Errorf("unmarshal feedback summary: %w", err)
		}
	}
	return out, nil
}

func parseLogTime(v string) time.Time {
	t, err := time.ParseInLocation(store.TimeLayout, v, time.Local)
	if err != nil {
		return time.Now()
	}
	return t
}
