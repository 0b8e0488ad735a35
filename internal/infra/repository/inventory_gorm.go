package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) products(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Product{})
}

func (r *InventoryGormRepository) SetStock(ctx context.Context, productID int64, newStock int64) error {
	res := r.products(ctx).
		Where("id = ?", productID).
		Update("stock", newStock)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 条件付き UPDATE 1 本で引当。行ロックで同時注文でもマイナスにならない
func (r *InventoryGormRepository) ReserveStock(ctx context.Context, productID int64, qty int64) (bool, error) {
	if qty <= 0 {
		return false, nil
	}
	res := r.products(ctx).
		Where("id = ? AND is_active = ? AND is_deleted = ? AND stock >= ?", productID, true, false, qty).
		Update("stock", gorm.Expr("stock + ?", -qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// 削除済みの商品でも戻す（キャンセル時点の出品状態は問わない）
func (r *InventoryGormRepository) Restock(ctx context.Context, adj model.InventoryAdjustment) error {
	if adj.Delta <= 0 {
		return errors.New("restock delta must be positive")
	}
	res := r.products(ctx).
		Where("id = ?", adj.ProductID).
		Update("stock", gorm.Expr("stock + ?", adj.Delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return r.CreateAdjustment(ctx, adj)
}

func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.db.WithContext(ctx).Create(&adj).Error
}
