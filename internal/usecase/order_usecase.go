package usecase

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	"marketplace/internal/domain/policy"
	repo "marketplace/internal/repository"
)

const (
	maxOrderLines    = 50
	maxLineQuantity  = 99
	maxIdempotentKey = 255
)

type OrderUsecase struct {
	tx    repo.TransactionManager
	views views
}

func NewOrderUsecase(tx repo.TransactionManager, cache ViewCache) *OrderUsecase {
	return &OrderUsecase{tx: tx, views: newViews(cache)}
}

type PlaceOrderItemInput struct {
	ProductID int64
	Quantity  int64
}

type PlaceOrderInput struct {
	Items          []PlaceOrderItemInput
	DeliveryMethod string

	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	ShippingAddress  string
	ShippingCity     string
	ShippingPostcode string

	IdempotencyKey string
}

// 入力を正規化する（同じ商品の行はまとめる）
func (in PlaceOrderInput) normalize() (PlaceOrderInput, model.DeliveryMethod, error) {
	method, err := model.ParseDeliveryMethod(strings.TrimSpace(in.DeliveryMethod))
	if err != nil {
		return in, "", errInvalid("invalid delivery_method")
	}

	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.IdempotencyKey == "" || len(in.IdempotencyKey) > maxIdempotentKey {
		return in, "", errInvalid("invalid idempotency_key")
	}

	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	if in.CustomerName == "" || len(in.CustomerName) > 255 {
		return in, "", errInvalid("invalid customer_name")
	}
	if _, err := mail.ParseAddress(in.CustomerEmail); err != nil || len(in.CustomerEmail) > 255 {
		return in, "", errInvalid("invalid customer_email")
	}
	if len(in.CustomerPhone) > 30 {
		return in, "", errInvalid("invalid customer_phone")
	}

	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.ShippingCity = strings.TrimSpace(in.ShippingCity)
	in.ShippingPostcode = strings.TrimSpace(in.ShippingPostcode)
	//配達なら届け先が必要
	if method == model.DeliveryMethodDelivery && (in.ShippingAddress == "" || in.ShippingCity == "") {
		return in, "", errInvalid("shipping address required")
	}

	if len(in.Items) == 0 {
		return in, "", errInvalid("items required")
	}
	if len(in.Items) > maxOrderLines {
		return in, "", errInvalid("too many items")
	}
	merged := make([]PlaceOrderItemInput, 0, len(in.Items))
	index := map[int64]int{}
	for _, it := range in.Items {
		if it.ProductID <= 0 {
			return in, "", errInvalid("invalid product_id")
		}
		if it.Quantity < 1 || it.Quantity > maxLineQuantity {
			return in, "", errInvalid("invalid quantity")
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			if merged[i].Quantity > maxLineQuantity {
				return in, "", errInvalid("invalid quantity")
			}
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	in.Items = merged

	return in, method, nil
}

// 注文確定。同じキーなら同じ注文を返す
func (u *OrderUsecase) PlaceOrder(ctx context.Context, actor model.Actor, in PlaceOrderInput) (OrderOutput, error) {
	if !actor.IsActive || actor.ID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	in, method, err := in.normalize()
	if err != nil {
		return OrderOutput{}, err
	}

	var out OrderOutput

	//注文処理はトランザクション
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, actor.ID, in.IdempotencyKey)
		if err != nil {
			return errDB("orders.find_by_key", err)
		}
		if found {
			items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return errDB("order_items.list", err)
			}
			out = toOrderOutput(existing, items)
			return nil
		}

		//在庫を確定時に再チェックして減らす
		orderItems := make([]model.OrderItem, 0, len(in.Items))
		var total int64 = 0
		now := time.Now()

		for _, line := range in.Items {
			p, err := r.Products().FindByID(ctx, line.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return errInvalid("product not available")
			}
			if err != nil {
				return errDB("products.find", err)
			}
			if !p.IsVisible() {
				return errInvalid("product not available")
			}
			if p.SellerID == actor.ID {
				return errInvalid("cannot buy your own product")
			}

			//在庫減算（足りないなら false）
			ok, err := r.Inventory().ReserveStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return errDB("inventory.reserve", err)
			}
			if !ok {
				return errConflict("out of stock")
			}

			//スナップショット
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           p.ID,
				SellerID:            p.SellerID,
				ProductNameSnapshot: p.Name,
				PriceCents:          p.PriceCents,
				Quantity:            line.Quantity,
				CreatedAt:           now,
			})
			total += p.PriceCents * line.Quantity
		}

		deliveryStatus := model.DeliveryStatusPending
		if method == model.DeliveryMethodPickup {
			deliveryStatus = model.DeliveryStatusReadyToPickup
		}

		o := model.Order{
			UserID:           actor.ID,
			Status:           model.OrderStatusPending,
			DeliveryMethod:   method,
			DeliveryStatus:   deliveryStatus,
			RefundStatus:     model.RefundStatusNone,
			CustomerName:     in.CustomerName,
			CustomerEmail:    in.CustomerEmail,
			CustomerPhone:    in.CustomerPhone,
			ShippingAddress:  in.ShippingAddress,
			ShippingCity:     in.ShippingCity,
			ShippingPostcode: in.ShippingPostcode,
			TotalCents:       total,
			IdempotencyKey:   in.IdempotencyKey,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		orderID, err := r.Orders().Create(ctx, o)
		// 同じ購入者が同時に同じキーで来たときだけunique違反になる
		if errors.Is(err, repo.ErrDuplicateKey) {
			return errConflict("idempotency conflict")
		}
		if err != nil {
			return errDB("orders.create", err)
		}

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return errDB("order_items.create", err)
		}

		o.ID = orderID
		out = toOrderOutput(o, orderItems)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, actor model.Actor, page int, limit int) (OrderPage, error) {
	if !actor.IsActive || actor.ID <= 0 {
		return OrderPage{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		return OrderPage{}, errInvalid("invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderPage{}, errInvalid("invalid limit")
	}

	var out OrderPage
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, actor.ID, page, limit)
		if err != nil {
			return errDB("orders.list_by_user", err)
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

// 注文詳細。キャッシュを先に見るが、権限判定は毎回行う
func (u *OrderUsecase) GetOrderDetail(ctx context.Context, actor model.Actor, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, errInvalid("invalid id")
	}

	key := orderView(orderID)
	var cached OrderOutput
	if u.views.load(ctx, key, &cached) {
		if !canView(policy.Resolve(actor, orderFromOutput(cached), itemsFromOutput(cached))) {
			return OrderOutput{}, errForbidden()
		}
		return cached, nil
	}
	gen, cacheable := u.views.generation(ctx, key)

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, items, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if !canView(policy.Resolve(actor, o, items)) {
			return errForbidden()
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if cacheable {
		u.views.store(ctx, key, gen, out)
	}
	return out, nil
}

func canView(a policy.Access) bool {
	return a.Participant() || a.Courier
}

// 権限判定に必要な項目だけ戻す
func orderFromOutput(o OrderOutput) model.Order {
	return model.Order{ID: o.ID, UserID: o.UserID, CourierID: o.CourierID}
}

func itemsFromOutput(o OrderOutput) []model.OrderItem {
	items := make([]model.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, model.OrderItem{OrderID: o.ID, ProductID: it.ProductID, SellerID: it.SellerID})
	}
	return items
}
