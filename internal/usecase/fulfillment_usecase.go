package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/domain/policy"
	repo "marketplace/internal/repository"
)

// 配達の割当と完了
type FulfillmentUsecase struct {
	tx    repo.TransactionManager
	views views
}

func NewFulfillmentUsecase(tx repo.TransactionManager, cache ViewCache) *FulfillmentUsecase {
	return &FulfillmentUsecase{tx: tx, views: newViews(cache)}
}

type CompleteDeliveryInput struct {
	Lat      *float64
	Lng      *float64
	ProofURL string
}

type OrderPage struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// 配達員が自分で注文を取る。
// 取れるかどうかは条件付きUPDATEの結果だけで決める（先に読んで判定しない）
func (u *FulfillmentUsecase) Claim(ctx context.Context, actor model.Actor, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, errInvalid("invalid id")
	}
	if !policy.CanClaim(actor) {
		return OrderOutput{}, errForbidden()
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		won, err := r.Orders().ClaimIfUnassigned(ctx, orderID, actor.ID)
		if err != nil {
			return errDB("orders.claim", err)
		}

		o, items, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if !won {
			return claimRejection(o)
		}

		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.views.invalidate(ctx, staleOrderViews(orderID, &actor.ID)...)
	return out, nil
}

// 取れなかった理由を今の行から決める
func claimRejection(o model.Order) error {
	switch {
	case o.DeliveryMethod != model.DeliveryMethodDelivery:
		return errConflict("pickup orders are not delivered by couriers")
	case o.CourierID != nil:
		return errAlreadyAssigned()
	case o.Status == model.OrderStatusCancelled || o.Status == model.OrderStatusFailed:
		return errConflict("order is no longer active")
	default:
		return errConflict("order is not waiting for a courier")
	}
}

// 管理者 / 物流会社オーナーによる割当
func (u *FulfillmentUsecase) Assign(ctx context.Context, actor model.Actor, orderID int64, courierID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, errInvalid("invalid id")
	}
	if courierID <= 0 {
		return OrderOutput{}, errInvalid("invalid courier_id")
	}
	if !actor.IsActive || (actor.Role != model.RoleAdmin && actor.Role != model.RoleLogisticsAdmin) {
		return OrderOutput{}, errForbidden()
	}

	var (
		out      OrderOutput
		previous *int64
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, items, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		access := policy.Resolve(actor, o, items)

		courier, err := r.Users().FindByID(ctx, courierID)
		if errors.Is(err, repo.ErrUserNotFound) {
			return errNotFound()
		}
		if err != nil {
			return errDB("users.find", err)
		}

		if !access.Admin {
			company, err := r.Companies().FindByOwnerID(ctx, actor.ID)
			if errors.Is(err, repo.ErrNotFound) {
				return errForbidden()
			}
			if err != nil {
				return errDB("companies.find", err)
			}
			if !policy.OwnsCourier(actor, company, *courier) {
				return errForbidden()
			}
		}

		if !policy.IsAssignableCourier(*courier) {
			return errInvalid("courier must be an active driver")
		}
		if o.DeliveryMethod != model.DeliveryMethodDelivery {
			return errConflict("pickup orders are not delivered by couriers")
		}
		if o.DeliveryStatus.Terminal() {
			return errConflict("delivery is already finished")
		}
		if o.Status == model.OrderStatusCancelled || o.Status == model.OrderStatusFailed {
			return errConflict("order is no longer active")
		}

		//管理者だけが付け替えできる
		ok, err := r.Orders().AssignCourier(ctx, orderID, courierID, !access.Admin)
		if err != nil {
			return errDB("orders.assign", err)
		}
		if !ok {
			if !access.Admin {
				return errAlreadyAssigned()
			}
			return errConflict("order cannot be assigned")
		}

		before := map[string]any{"courier_id": o.CourierID, "delivery_status": o.DeliveryStatus}
		previous = o.CourierID
		o.CourierID = &courierID
		o.DeliveryStatus = model.DeliveryStatusAssigned
		after := map[string]any{"courier_id": o.CourierID, "delivery_status": o.DeliveryStatus}

		if err := writeAudit(ctx, r, auditEntry{
			actorID:      actor.ID,
			action:       model.AuditActionAssignCourier,
			resourceType: model.AuditResourceOrder,
			resourceID:   orderID,
			before:       before,
			after:        after,
		}); err != nil {
			return err
		}

		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.views.invalidate(ctx, staleOrderViews(orderID, previous, &courierID)...)
	return out, nil
}

// 配達完了。完了に関わる項目はまとめて1回で書き、監査ログも同じTxで残す
func (u *FulfillmentUsecase) CompleteDelivery(ctx context.Context, actor model.Actor, orderID int64, in CompleteDeliveryInput) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, errInvalid("invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, items, err := loadCompletable(ctx, r, actor, orderID, in.Lat, in.Lng)
		if err != nil {
			return err
		}
		if strings.TrimSpace(in.ProofURL) == "" {
			return errInvalid("proof photo required")
		}

		now := time.Now()
		c := repo.DeliveryCompletion{
			Lat:      *in.Lat,
			Lng:      *in.Lng,
			ProofURL: strings.TrimSpace(in.ProofURL),
			At:       now,
		}
		ok, err := r.Orders().CompleteDelivery(ctx, orderID, *o.CourierID, c)
		if err != nil {
			return errDB("orders.complete_delivery", err)
		}
		if !ok {
			return errConflict("order is not out for delivery")
		}

		before := map[string]any{"status": o.Status, "delivery_status": o.DeliveryStatus}
		o.Status = model.OrderStatusFulfilled
		o.DeliveryStatus = model.DeliveryStatusDelivered
		o.DeliveryLat = &c.Lat
		o.DeliveryLng = &c.Lng
		o.ProofURL = c.ProofURL
		o.DeliveryTime = &now
		o.FundsReleased = true
		o.FundsReleaseAt = &now

		if err := writeAudit(ctx, r, auditEntry{
			actorID:      actor.ID,
			action:       model.AuditActionCompleteDelivery,
			resourceType: model.AuditResourceOrder,
			resourceID:   orderID,
			before:       before,
			after:        map[string]any{"status": o.Status, "delivery_status": o.DeliveryStatus, "funds_released": true},
			metadata:     map[string]any{"lat": c.Lat, "lng": c.Lng, "proof_url": c.ProofURL, "courier_id": *o.CourierID},
		}); err != nil {
			return err
		}

		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.views.invalidate(ctx, staleOrderViews(orderID, out.CourierID)...)
	return out, nil
}

// 証明写真をアップロードする前の確認。CompleteDeliveryと同じ順で権限・座標・状態を見る
func (u *FulfillmentUsecase) AuthorizeCompletion(ctx context.Context, actor model.Actor, orderID int64, lat, lng *float64) error {
	if orderID <= 0 {
		return errInvalid("invalid id")
	}
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		_, _, err := loadCompletable(ctx, r, actor, orderID, lat, lng)
		return err
	})
}

func loadCompletable(ctx context.Context, r repo.TxRepos, actor model.Actor, orderID int64, lat, lng *float64) (model.Order, []model.OrderItem, error) {
	o, items, err := loadOrder(ctx, r, orderID)
	if err != nil {
		return model.Order{}, nil, err
	}

	allowed, err := canComplete(ctx, r, actor, o, items)
	if err != nil {
		return model.Order{}, nil, err
	}
	if !allowed {
		return model.Order{}, nil, errForbidden()
	}

	if err := validateGeotag(lat, lng); err != nil {
		return model.Order{}, nil, err
	}
	if o.CourierID == nil || !o.DeliveryStatus.InTransit() {
		return model.Order{}, nil, errConflict("order is not out for delivery")
	}
	return o, items, nil
}

// 担当配達員、管理者、配達員の所属会社オーナー
func canComplete(ctx context.Context, r repo.TxRepos, actor model.Actor, o model.Order, items []model.OrderItem) (bool, error) {
	access := policy.Resolve(actor, o, items)
	if access.Courier || access.Admin {
		return true, nil
	}
	if !actor.IsActive || actor.Role != model.RoleLogisticsAdmin || o.CourierID == nil {
		return false, nil
	}

	company, err := r.Companies().FindByOwnerID(ctx, actor.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errDB("companies.find", err)
	}
	courier, err := r.Users().FindByID(ctx, *o.CourierID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errDB("users.find", err)
	}
	return policy.OwnsCourier(actor, company, *courier), nil
}

func validateGeotag(lat, lng *float64) error {
	if lat == nil || lng == nil {
		return errInvalid("geotag required")
	}
	if *lat < -90 || *lat > 90 {
		return errInvalid("lat out of range")
	}
	if *lng < -180 || *lng > 180 {
		return errInvalid("lng out of range")
	}
	return nil
}

// 配達員向け: まだ誰も取っていない配達注文
func (u *FulfillmentUsecase) ListAvailable(ctx context.Context, actor model.Actor, page int, limit int) (OrderPage, error) {
	if !policy.CanClaim(actor) && !actor.IsAdmin() {
		return OrderPage{}, errForbidden()
	}
	if page < 1 {
		return OrderPage{}, errInvalid("invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderPage{}, errInvalid("invalid limit")
	}

	var out OrderPage
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAvailable(ctx, page, limit)
		if err != nil {
			return errDB("orders.list_available", err)
		}
		items, err := withItems(ctx, r, orders)
		if err != nil {
			return err
		}
		out = OrderPage{Items: items, Total: total, Page: page, Limit: limit}
		return nil
	})
	if err != nil {
		return OrderPage{}, err
	}
	return out, nil
}

// 配達員の担当中の注文（キャッシュを先に見る）
func (u *FulfillmentUsecase) ListAssignments(ctx context.Context, actor model.Actor) ([]OrderOutput, error) {
	if !actor.IsActive || actor.Role != model.RoleDriver {
		return []OrderOutput{}, errForbidden()
	}

	key := assignmentsView(actor.ID)
	var cached []OrderOutput
	if u.views.load(ctx, key, &cached) {
		return cached, nil
	}
	gen, cacheable := u.views.generation(ctx, key)

	var outs []OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByCourierID(ctx, actor.ID, true)
		if err != nil {
			return errDB("orders.list_by_courier", err)
		}
		outs, err = withItems(ctx, r, orders)
		return err
	})
	if err != nil {
		return []OrderOutput{}, err
	}

	if cacheable {
		u.views.store(ctx, key, gen, outs)
	}
	return outs, nil
}
