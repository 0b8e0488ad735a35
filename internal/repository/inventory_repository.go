package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 在庫は products.stock を直接持つ。増減の履歴は inventory_adjustments。
type InventoryRepository interface {
	// 管理者による上書き
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 注文時の引当。出品中で在庫が足りるときだけ減らして true
	ReserveStock(ctx context.Context, productID int64, qty int64) (bool, error)

	// adj.Delta だけ在庫を戻し、同じ内容で履歴も残す
	Restock(ctx context.Context, adj model.InventoryAdjustment) error

	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
