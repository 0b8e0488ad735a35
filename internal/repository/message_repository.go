package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 注文チャット。追記と一覧のみ（更新・削除はしない）
type MessageRepository interface {
	Create(ctx context.Context, msg model.Message) (model.Message, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.Message, error)
}
