package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	// 一覧表示用。注文IDごとにまとめて返す（明細のない注文はキーなし）
	ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error)
}
