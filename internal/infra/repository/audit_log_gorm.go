package repository

import (
	"context"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

const (
	auditDefaultLimit = 50
	auditMaxLimit     = 200
)

type auditLogGormRepository struct {
	db *gorm.DB
}

func NewAuditLogGormRepository(db *gorm.DB) repo.AuditLogRepository {
	return &auditLogGormRepository{db: db}
}

// 追記のみ。更新・削除のメソッドは持たない
func (r *auditLogGormRepository) Create(ctx context.Context, log model.AuditLog) error {
	return r.db.WithContext(ctx).Create(&log).Error
}

func (r *auditLogGormRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	logs := []model.AuditLog{}
	err := r.db.WithContext(ctx).
		Model(&model.AuditLog{}).
		Scopes(auditFilter(f), auditPage(f.Limit, f.Offset)).
		Order("created_at desc, id desc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func auditFilter(f repo.AuditLogFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if f.ActorUserID != nil {
			q = q.Where("actor_user_id = ?", *f.ActorUserID)
		}
		if len(f.Actions) > 0 {
			q = q.Where("action IN ?", f.Actions)
		}
		if f.ResourceType != nil {
			q = q.Where("resource_type = ?", *f.ResourceType)
		}
		if f.ResourceID != nil {
			q = q.Where("resource_id = ?", *f.ResourceID)
		}
		if f.CreatedFrom != nil {
			q = q.Where("created_at >= ?", *f.CreatedFrom)
		}
		if f.CreatedTo != nil {
			q = q.Where("created_at <= ?", *f.CreatedTo)
		}
		return q
	}
}

// 範囲外のlimitは既定値、負のoffsetは0
func auditPage(limit, offset int) func(*gorm.DB) *gorm.DB {
	if limit <= 0 || limit > auditMaxLimit {
		limit = auditDefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return func(q *gorm.DB) *gorm.DB {
		return q.Limit(limit).Offset(offset)
	}
}
