package contract

import (
	"context"

	"biblo-chat-be/internal/repository/specification"
	"biblo-chat-be/pkg/store"
)

type SessionLogRepository interface {
	Create(ctx context.Context, log *store.SessionLog, endReason string) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*store.SessionLog, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
