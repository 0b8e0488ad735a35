package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
	tx          repo.TransactionManager
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository, tx repo.TransactionManager) *ProductUsecase {
	return &ProductUsecase{productRepo: productRepo, tx: tx}
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// 公開一覧（ブースト中を先頭）
func (u *ProductUsecase) ListPublicProducts(ctx context.Context, page int, limit int) (ProductListOutput, error) {
	if page < 1 {
		return ProductListOutput{}, errInvalid("invalid page")
	}
	if limit < 1 || limit > 100 {
		return ProductListOutput{}, errInvalid("invalid limit")
	}

	items, total, err := u.productRepo.ListPublic(ctx, page, limit, time.Now())
	if err != nil {
		return ProductListOutput{}, errDB("products.list_public", err)
	}
	return ProductListOutput{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, errInvalid("invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, errNotFound()
	}
	if err != nil {
		return model.Product{}, errDB("products.find", err)
	}

	//停止中・削除済みは見せない
	if !p.IsVisible() {
		return model.Product{}, errNotFound()
	}
	return p, nil
}

type CreateProductInput struct {
	Name        string
	Description string
	PriceCents  int64
	Stock       int64
	IsActive    bool
}

// 出品
func (u *ProductUsecase) CreateProduct(ctx context.Context, actor model.Actor, in CreateProductInput) (model.Product, error) {
	if !actor.IsActive || actor.ID <= 0 {
		return model.Product{}, errForbidden()
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 255 {
		return model.Product{}, errInvalid("name required")
	}
	if in.PriceCents < 0 {
		return model.Product{}, errInvalid("price must be >= 0")
	}
	if in.Stock < 0 {
		return model.Product{}, errInvalid("stock must be >= 0")
	}

	now := time.Now()
	p, err := u.productRepo.Create(ctx, model.Product{
		SellerID:    actor.ID,
		Name:        name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		Stock:       in.Stock,
		IsActive:    in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.Product{}, errDB("products.create", err)
	}
	return p, nil
}

// 出品者本人か管理者だけが触れる商品を返す
func (u *ProductUsecase) ownedProduct(ctx context.Context, r repo.TxRepos, actor model.Actor, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, errInvalid("invalid product id")
	}
	p, err := r.Products().FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, errNotFound()
	}
	if err != nil {
		return model.Product{}, errDB("products.find", err)
	}
	if !actor.IsActive || (p.SellerID != actor.ID && actor.Role != model.RoleAdmin) {
		return model.Product{}, errForbidden()
	}
	return p, nil
}

// 一時停止 / 再開
func (u *ProductUsecase) SetProductActive(ctx context.Context, actor model.Actor, productID int64, active bool) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := u.ownedProduct(ctx, r, actor, productID)
		if err != nil {
			return err
		}
		if p.IsDeleted {
			return errConflict("product is deleted")
		}
		if p.IsActive == active {
			return nil
		}

		if _, err := r.Products().SetActive(ctx, []int64{productID}, active); err != nil {
			return errDB("products.set_active", err)
		}
		return writeAudit(ctx, r, auditEntry{
			actorID:      actor.ID,
			action:       model.AuditActionUpdateProduct,
			resourceType: model.AuditResourceProduct,
			resourceID:   productID,
			before:       map[string]any{"is_active": p.IsActive},
			after:        map[string]any{"is_active": active},
		})
	})
}

// 商品削除（論理削除）
func (u *ProductUsecase) DeleteProduct(ctx context.Context, actor model.Actor, productID int64) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := u.ownedProduct(ctx, r, actor, productID)
		if err != nil {
			return err
		}
		if p.IsDeleted {
			return nil
		}

		if err := r.Products().SoftDelete(ctx, productID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errNotFound()
			}
			return errDB("products.soft_delete", err)
		}
		return writeAudit(ctx, r, auditEntry{
			actorID:      actor.ID,
			action:       model.AuditActionUpdateProduct,
			resourceType: model.AuditResourceProduct,
			resourceID:   productID,
			before:       map[string]any{"is_deleted": false, "is_active": p.IsActive},
			after:        map[string]any{"is_deleted": true, "is_active": false},
		})
	})
}

// 管理者の在庫上書き。履歴と監査ログを残す
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, actor model.Actor, productID int64, newStock int64, reason string) error {
	if !actor.IsAdmin() {
		return errForbidden()
	}
	if productID <= 0 {
		return errInvalid("invalid product id")
	}
	if newStock < 0 {
		return errInvalid("stock must be >= 0")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" || len(reason) > 255 {
		return errInvalid("reason required")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound()
		}
		if err != nil {
			return errDB("products.find", err)
		}

		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errNotFound()
			}
			return errDB("inventory.set_stock", err)
		}

		//履歴を作成（差分）
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			ActorUserID: actor.ID,
			Delta:       newStock - p.Stock,
			Reason:      reason,
			CreatedAt:   time.Now(),
		}); err != nil {
			return errDB("inventory.create_adjustment", err)
		}

		//「誰が」「何を」「どの対象に」「どう変えたか」を残す
		return writeAudit(ctx, r, auditEntry{
			actorID:      actor.ID,
			action:       model.AuditActionUpdateStock,
			resourceType: model.AuditResourceProduct,
			resourceID:   productID,
			before:       map[string]any{"stock": p.Stock},
			after:        map[string]any{"stock": newStock},
			metadata:     map[string]any{"reason": reason},
		})
	})
}
