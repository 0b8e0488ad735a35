package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	//公開中の商品（ブースト中を先頭に）
	ListPublic(ctx context.Context, page int, limit int, now time.Time) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	Create(ctx context.Context, p model.Product) (model.Product, error)

	//削除済みでない商品のis_activeを切り替える。更新件数を返す
	SetActive(ctx context.Context, ids []int64, active bool) (int64, error)
	//is_deleted=true, is_active=false
	SoftDelete(ctx context.Context, id int64) error
}
