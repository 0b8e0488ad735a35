package repository

import (
	"context"

	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	products   repo.ProductRepository
	inventory  repo.InventoryRepository
	users      repo.UserRepository
	companies  repo.LogisticsCompanyRepository
	messages   repo.MessageRepository
	auditLogs  repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository               { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository       { return r.orderItems }
func (r *txReposGorm) Products() repo.ProductRepository           { return r.products }
func (r *txReposGorm) Inventory() repo.InventoryRepository        { return r.inventory }
func (r *txReposGorm) Users() repo.UserRepository                 { return r.users }
func (r *txReposGorm) Companies() repo.LogisticsCompanyRepository { return r.companies }
func (r *txReposGorm) Messages() repo.MessageRepository           { return r.messages }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository         { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(newTxRepos(tx))
	})
}

func newTxRepos(db *gorm.DB) *txReposGorm {
	return &txReposGorm{
		orders:     NewOrderGormRepository(db),
		orderItems: NewOrderItemGormRepository(db),
		products:   NewProductGormRepository(db),
		inventory:  NewInventoryGormRepository(db),
		users:      NewUserGormRepository(db),
		companies:  NewLogisticsCompanyGormRepository(db),
		messages:   NewMessageGormRepository(db),
		auditLogs:  NewAuditLogGormRepository(db),
	}
}
