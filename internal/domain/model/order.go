package model

import (
	"fmt"
	"time"
)

// 支払いまわりのステータス
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusDisputed  OrderStatus = "DISPUTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusFulfilled OrderStatus = "FULFILLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed,
		OrderStatusDisputed, OrderStatusCancelled, OrderStatusFulfilled:
		return true
	}
	return false
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

type DeliveryMethod string

const (
	DeliveryMethodDelivery DeliveryMethod = "DELIVERY"
	DeliveryMethodPickup   DeliveryMethod = "PICKUP"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryMethodDelivery, DeliveryMethodPickup:
		return true
	}
	return false
}

func ParseDeliveryMethod(s string) (DeliveryMethod, error) {
	m := DeliveryMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown delivery method %q", s)
	}
	return m, nil
}

// 配送まわりのステータス
type DeliveryStatus string

const (
	DeliveryStatusPending       DeliveryStatus = "PENDING"
	DeliveryStatusReadyToPickup DeliveryStatus = "READY_TO_PICKUP"
	DeliveryStatusAssigned      DeliveryStatus = "ASSIGNED"
	DeliveryStatusOnWay         DeliveryStatus = "ON_WAY"
	DeliveryStatusDelivered     DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed        DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusReadyToPickup, DeliveryStatusAssigned,
		DeliveryStatusOnWay, DeliveryStatusDelivered, DeliveryStatusFailed:
		return true
	}
	return false
}

// 配達員が持っている（完了待ちの）状態か
func (s DeliveryStatus) InTransit() bool {
	switch s {
	case DeliveryStatusAssigned, DeliveryStatusOnWay:
		return true
	case DeliveryStatusPending, DeliveryStatusReadyToPickup, DeliveryStatusDelivered, DeliveryStatusFailed:
		return false
	}
	return false
}

func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusFailed:
		return true
	case DeliveryStatusPending, DeliveryStatusReadyToPickup, DeliveryStatusAssigned, DeliveryStatusOnWay:
		return false
	}
	return false
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown delivery status %q", s)
	}
	return st, nil
}

// 返金・クレームのステータス
type RefundStatus string

const (
	RefundStatusNone      RefundStatus = "NONE"
	RefundStatusRequested RefundStatus = "REQUESTED"
	RefundStatusMediation RefundStatus = "MEDIATION"
	RefundStatusCompleted RefundStatus = "COMPLETED"
	//返金なしでクローズされたクレーム
	RefundStatusCancelled RefundStatus = "CANCELLED"
)

func (s RefundStatus) Valid() bool {
	switch s {
	case RefundStatusNone, RefundStatusRequested, RefundStatusMediation,
		RefundStatusCompleted, RefundStatusCancelled:
		return true
	}
	return false
}

// クレームが進行中か
func (s RefundStatus) Open() bool {
	switch s {
	case RefundStatusRequested, RefundStatusMediation:
		return true
	case RefundStatusNone, RefundStatusCompleted, RefundStatusCancelled:
		return false
	}
	return false
}

func ParseRefundStatus(s string) (RefundStatus, error) {
	st := RefundStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown refund status %q", s)
	}
	return st, nil
}

type Order struct {
	ID     int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64       `gorm:"not null;index;uniqueIndex:uq_orders_user_idempotency,priority:1" json:"user_id"`
	Status OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	DeliveryMethod DeliveryMethod `gorm:"type:varchar(20);not null" json:"delivery_method"`
	DeliveryStatus DeliveryStatus `gorm:"type:varchar(20);not null;index" json:"delivery_status"`
	CourierID      *int64         `gorm:"index" json:"courier_id"`
	DeliveryLat    *float64       `json:"delivery_lat"`
	DeliveryLng    *float64       `json:"delivery_lng"`
	ProofURL       string         `gorm:"type:text" json:"proof_url"`
	DeliveryTime   *time.Time     `json:"delivery_time"`

	FundsReleased  bool       `gorm:"not null;default:false" json:"funds_released"`
	FundsReleaseAt *time.Time `json:"funds_release_at"`

	RefundStatus RefundStatus `gorm:"type:varchar(20);not null;default:'NONE';index" json:"refund_status"`

	//注文時点のスナップショット
	CustomerName     string `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail    string `gorm:"type:varchar(255);not null" json:"customer_email"`
	CustomerPhone    string `gorm:"type:varchar(30)" json:"customer_phone"`
	ShippingAddress  string `gorm:"type:varchar(255)" json:"shipping_address"`
	ShippingCity     string `gorm:"type:varchar(255)" json:"shipping_city"`
	ShippingPostcode string `gorm:"type:varchar(20)" json:"shipping_postcode"`
	TotalCents       int64  `gorm:"not null" json:"total_cents"`

	IdempotencyKey string    `gorm:"type:varchar(255);not null;uniqueIndex:uq_orders_user_idempotency,priority:2" json:"-"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// クレーム解決後に戻すステータス（DISPUTEDのときだけ意味がある）
func (o Order) StatusAfterDispute() OrderStatus {
	if o.Status != OrderStatusDisputed {
		return o.Status
	}
	if o.DeliveryStatus == DeliveryStatusDelivered {
		return OrderStatusFulfilled
	}
	return OrderStatusPaid
}
