package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// 管理者の強制変更。通常の遷移ガードは通さず、必ず監査ログを残す
type AdminOrderUsecase struct {
	tx    repo.TransactionManager
	views views
}

func NewAdminOrderUsecase(tx repo.TransactionManager, cache ViewCache) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, views: newViews(cache)}
}

type AdminOrderListInput struct {
	Page           int
	Limit          int
	Status         string
	DeliveryStatus string
	RefundStatus   string
	UserID         *int64
	CourierID      *int64
	From           string
	To             string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, actor model.Actor, in AdminOrderListInput) (OrderPage, error) {
	if !actor.IsAdmin() {
		return OrderPage{}, errForbidden()
	}
	// page/limitの最低限チェック
	if in.Page < 1 {
		return OrderPage{}, errInvalid("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return OrderPage{}, errInvalid("invalid limit")
	}

	f := repo.AdminOrderListFilter{
		Page:      in.Page,
		Limit:     in.Limit,
		UserID:    in.UserID,
		CourierID: in.CourierID,
	}
	if s := strings.TrimSpace(in.Status); s != "" {
		st, err := model.ParseOrderStatus(s)
		if err != nil {
			return OrderPage{}, errInvalid("invalid status")
		}
		f.Status = string(st)
	}
	if s := strings.TrimSpace(in.DeliveryStatus); s != "" {
		st, err := model.ParseDeliveryStatus(s)
		if err != nil {
			return OrderPage{}, errInvalid("invalid delivery_status")
		}
		f.DeliveryStatus = string(st)
	}
	if s := strings.TrimSpace(in.RefundStatus); s != "" {
		st, err := model.ParseRefundStatus(s)
		if err != nil {
			return OrderPage{}, errInvalid("invalid refund_status")
		}
		f.RefundStatus = string(st)
	}

	var ok bool
	if in.From != "" {
		if f.From, ok = parseDateTimeRFC3339(in.From); !ok {
			return OrderPage{}, errInvalid("invalid from")
		}
	}
	if in.To != "" {
		if f.To, ok = parseDateTimeRFC3339(in.To); !ok {
			return OrderPage{}, errInvalid("invalid to")
		}
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return OrderPage{}, errInvalid("from must be <= to")
	}

	var out OrderPage
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return errDB("orders.list_admin", err)
		}
		items, err := withItems(ctx, r, orders)
		if err != nil {
			return err
		}
		out = OrderPage{Items: items, Total: total, Page: in.Page, Limit: in.Limit}
		return nil
	})
	if err != nil {
		return OrderPage{}, err
	}
	return out, nil
}

// 支払いステータスの強制変更。
// 値の検証は書き込み前に全部済ませる。CANCELLEDにするとき未発送分の在庫を戻す
func (u *AdminOrderUsecase) ForceSetStatus(ctx context.Context, actor model.Actor, orderID int64, status string) (OrderOutput, error) {
	if !actor.IsAdmin() {
		return OrderOutput{}, errForbidden()
	}
	if orderID <= 0 {
		return OrderOutput{}, errInvalid("invalid id")
	}
	newStatus, err := model.ParseOrderStatus(strings.TrimSpace(status))
	if err != nil {
		return OrderOutput{}, errInvalid("invalid status")
	}

	var out OrderOutput
	changed := false
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, items, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}

		// すでに同じなら何もしない（200）
		if o.Status == newStatus {
			out = toOrderOutput(o, items)
			return nil
		}

		//PENDING/PAIDからのキャンセルだけ在庫戻し
		if newStatus == model.OrderStatusCancelled &&
			(o.Status == model.OrderStatusPending || o.Status == model.OrderStatusPaid) {
			for _, it := range items {
				if err := r.Inventory().Restock(ctx, model.InventoryAdjustment{
					ProductID:   it.ProductID,
					ActorUserID: actor.ID,
					Delta:       it.Quantity,
					Reason:      fmt.Sprintf("order #%d cancelled", orderID),
					CreatedAt:   time.Now(),
				}); err != nil {
					return errDB("inventory.restock", err)
				}
			}
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, newStatus); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errNotFound()
			}
			return errDB("orders.update_status", err)
		}

		if err := writeAudit(ctx, r, auditEntry{
			actorID:      actor.ID,
			action:       model.AuditActionForceOrderStatus,
			resourceType: model.AuditResourceOrder,
			resourceID:   orderID,
			before:       map[string]any{"status": o.Status},
			after:        map[string]any{"status": newStatus},
		}); err != nil {
			return err
		}

		o.Status = newStatus
		out = toOrderOutput(o, items)
		changed = true
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if changed {
		u.views.invalidate(ctx, staleOrderViews(orderID, out.CourierID)...)
	}
	return out, nil
}

// 配送ステータスの強制変更。証明写真なしでDELIVEREDにもできる
func (u *AdminOrderUsecase) ForceSetDeliveryStatus(ctx context.Context, actor model.Actor, orderID int64, status string) (OrderOutput, error) {
	if !actor.IsAdmin() {
		return OrderOutput{}, errForbidden()
	}
	if orderID <= 0 {
		return OrderOutput{}, errInvalid("invalid id")
	}
	newStatus, err := model.ParseDeliveryStatus(strings.TrimSpace(status))
	if err != nil {
		return OrderOutput{}, errInvalid("invalid delivery_status")
	}

	var out OrderOutput
	changed := false
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, items, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if o.DeliveryStatus == newStatus {
			out = toOrderOutput(o, items)
			return nil
		}

		if err := r.Orders().UpdateDeliveryStatus(ctx, orderID, newStatus); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errNotFound()
			}
			return errDB("orders.update_delivery_status", err)
		}

		if err := writeAudit(ctx, r, auditEntry{
			actorID:      actor.ID,
			action:       model.AuditActionForceDeliveryStatus,
			resourceType: model.AuditResourceOrder,
			resourceID:   orderID,
			before:       map[string]any{"delivery_status": o.DeliveryStatus},
			after:        map[string]any{"delivery_status": newStatus},
			metadata:     map[string]any{"courier_id": o.CourierID, "override": true},
		}); err != nil {
			return err
		}

		o.DeliveryStatus = newStatus
		out = toOrderOutput(o, items)
		changed = true
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if changed {
		u.views.invalidate(ctx, staleOrderViews(orderID, out.CourierID)...)
	}
	return out, nil
}

// 期間パラメータ（RFC3339）
func parseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
