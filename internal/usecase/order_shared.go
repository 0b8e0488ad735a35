package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

type OrderItemOutput struct {
	ProductID  int64  `json:"product_id"`
	SellerID   int64  `json:"seller_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int64  `json:"quantity"`
}

type OrderOutput struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	Status         string     `json:"status"`
	DeliveryMethod string     `json:"delivery_method"`
	DeliveryStatus string     `json:"delivery_status"`
	RefundStatus   string     `json:"refund_status"`
	CourierID      *int64     `json:"courier_id"`
	DeliveryLat    *float64   `json:"delivery_lat,omitempty"`
	DeliveryLng    *float64   `json:"delivery_lng,omitempty"`
	ProofURL       string     `json:"proof_url,omitempty"`
	DeliveryTime   *time.Time `json:"delivery_time,omitempty"`
	FundsReleased  bool       `json:"funds_released"`

	CustomerName     string `json:"customer_name"`
	CustomerEmail    string `json:"customer_email"`
	CustomerPhone    string `json:"customer_phone,omitempty"`
	ShippingAddress  string `json:"shipping_address,omitempty"`
	ShippingCity     string `json:"shipping_city,omitempty"`
	ShippingPostcode string `json:"shipping_postcode,omitempty"`

	TotalCents int64             `json:"total_cents"`
	CreatedAt  time.Time         `json:"created_at"`
	Items      []OrderItemOutput `json:"items"`
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:  it.ProductID,
			SellerID:   it.SellerID,
			Name:       it.ProductNameSnapshot,
			PriceCents: it.PriceCents,
			Quantity:   it.Quantity,
		})
	}

	return OrderOutput{
		ID:               o.ID,
		UserID:           o.UserID,
		Status:           string(o.Status),
		DeliveryMethod:   string(o.DeliveryMethod),
		DeliveryStatus:   string(o.DeliveryStatus),
		RefundStatus:     string(o.RefundStatus),
		CourierID:        o.CourierID,
		DeliveryLat:      o.DeliveryLat,
		DeliveryLng:      o.DeliveryLng,
		ProofURL:         o.ProofURL,
		DeliveryTime:     o.DeliveryTime,
		FundsReleased:    o.FundsReleased,
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		CustomerPhone:    o.CustomerPhone,
		ShippingAddress:  o.ShippingAddress,
		ShippingCity:     o.ShippingCity,
		ShippingPostcode: o.ShippingPostcode,
		TotalCents:       o.TotalCents,
		CreatedAt:        o.CreatedAt,
		Items:            outItems,
	}
}

// 注文と明細をまとめて読む
func loadOrder(ctx context.Context, r repo.TxRepos, orderID int64) (model.Order, []model.OrderItem, error) {
	if orderID <= 0 {
		return model.Order{}, nil, errInvalid("invalid id")
	}

	o, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, nil, errNotFound()
	}
	if err != nil {
		return model.Order{}, nil, errDB("orders.find", err)
	}

	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return model.Order{}, nil, errDB("order_items.list", err)
	}
	return o, items, nil
}

// 一覧用。明細はまとめて1回で読む
func withItems(ctx context.Context, r repo.TxRepos, orders []model.Order) ([]OrderOutput, error) {
	outs := make([]OrderOutput, 0, len(orders))
	if len(orders) == 0 {
		return outs, nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	byOrder, err := r.OrderItems().ListByOrderIDs(ctx, ids)
	if err != nil {
		return nil, errDB("order_items.list", err)
	}
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o, byOrder[o.ID]))
	}
	return outs, nil
}

func toJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

type auditEntry struct {
	actorID      int64
	action       model.AuditAction
	resourceType model.AuditResourceType
	resourceID   int64
	before       any
	after        any
	metadata     any
}

// 監査ログは変更と同じTxで書く
func writeAudit(ctx context.Context, r repo.TxRepos, e auditEntry) error {
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  e.actorID,
		Action:       e.action,
		ResourceType: e.resourceType,
		ResourceID:   e.resourceID,
		BeforeJSON:   toJSON(e.before),
		AfterJSON:    toJSON(e.after),
		MetadataJSON: toJSON(e.metadata),
		CreatedAt:    time.Now(),
	}); err != nil {
		return errDB("audit_logs.create", err)
	}
	return nil
}

// SYSTEMメッセージを追記
func postSystemMessage(ctx context.Context, r repo.TxRepos, orderID int64, body string) error {
	if _, err := r.Messages().Create(ctx, model.Message{
		OrderID:   orderID,
		Kind:      model.MessageKindSystem,
		Body:      body,
		CreatedAt: time.Now(),
	}); err != nil {
		return errDB("messages.create", err)
	}
	return nil
}
