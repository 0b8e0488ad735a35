package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// 公開商品のみ。ブースト期間中のものを先に並べる。
func (r *ProductGormRepository) ListPublic(ctx context.Context, page int, limit int, now time.Time) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("is_active = ? AND is_deleted = ?", true, false)

	//total（件数）
	if err := tx.Count(&total).Error; err != nil {
		return []model.Product{}, 0, err
	}

	offset := (page - 1) * limit
	err := tx.
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN boosted_until > ? THEN 0 ELSE 1 END, created_at DESC, id DESC",
			Vars:               []interface{}{now},
			WithoutParentheses: true,
		}}).
		Offset(offset).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return []model.Product{}, 0, err
	}

	return products, total, nil
}

// IDで商品を取得（削除済みも返す。見せるかどうかはusecaseで判断）
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 商品の作成
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductGormRepository) SetActive(ctx context.Context, ids []int64, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id IN ? AND is_deleted = ?", ids, false).
		Update("is_active", active)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// 商品削除（論理削除）。注文履歴から参照されるので行は残す
func (r *ProductGormRepository) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"is_active":  false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
