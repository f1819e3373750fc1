package implementation

import (
	"context"

	"biblo-chat-be/internal/mapper"
	"biblo-chat-be/internal/model"
	"biblo-chat-be/internal/repository/contract"
	"biblo-chat-be/internal/repository/specification"
	"biblo-chat-be/pkg/store"

	"gorm.io/gorm"
)

type SessionLogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionLogMapper
}

func NewSessionLogRepository(db *gorm.DB) contract.SessionLogRepository {
	return &SessionLogRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionLogMapper(),
	}
}

func (r *SessionLogRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SessionLogRepositoryImpl) Create(ctx context.Context, log *store.SessionLog, endReason string) error {
	m, err := r.mapper.ToModel(log, endReason)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *SessionLogRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*store.SessionLog, error) {
	var models []*model.SessionLog
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	logs := make([]*store.SessionLog, 0, len(models))
	for _, m := range models {
		l, err := r.mapper.ToStore(m)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (r *SessionLogRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.SessionLog{}).Count(&count).Error
	return count, err
}
