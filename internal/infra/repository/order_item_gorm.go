package repository

import (
	"context"

	"marketplace/internal/domain/model"

	"gorm.io/gorm"
)

type OrderItemGormRepository struct {
	db *gorm.DB
}

func NewOrderItemGormRepository(db *gorm.DB) *OrderItemGormRepository {
	return &OrderItemGormRepository{db: db}
}

// 明細は注文作成時のスナップショット。作った後は更新しない
func (r *OrderItemGormRepository) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]model.OrderItem, len(items))
	for i, it := range items {
		it.OrderID = orderID
		rows[i] = it
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *OrderItemGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	items := []model.OrderItem{}
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// 1クエリで取ってからGoでまとめる
func (r *OrderItemGormRepository) ListByOrderIDs(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	out := make(map[int64][]model.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	var items []model.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("order_id asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, nil
}
