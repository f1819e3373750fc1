package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionLog archives the audit record of an ended conversation.
type SessionLog struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SessionId       string         `gorm:"type:varchar(64);not null;index" json:"session_id"`
	Domain          string         `gorm:"type:varchar(16)" json:"domain"`
	UserIp          string         `gorm:"type:varchar(64)" json:"user_ip"`
	UserOs          string         `gorm:"type:varchar(128)" json:"user_os"`
	UserBrowser     string         `gorm:"type:varchar(128)" json:"user_browser"`
	SessionStart    time.Time      `json:"session_start"`
	SessionEnd      time.Time      `json:"session_end"`
	Chat            datatypes.JSON `gorm:"type:jsonb" json:"chat"`
	FeedbackSummary datatypes.JSON `gorm:"type:jsonb" json:"feedback_summary"`
	EndReason       string         `gorm:"type:varchar(32);index" json:"end_reason"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (SessionLog) TableName() string {
	return "session_logs"
}
