package repository

import (
	"context"

	"marketplace/internal/domain/model"

	"gorm.io/gorm"
)

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

func (r *MessageGormRepository) Create(ctx context.Context, msg model.Message) (model.Message, error) {
	if err := r.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

// 古い順
func (r *MessageGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&msgs).Error
	if err != nil {
		return []model.Message{}, err
	}
	return msgs, nil
}
