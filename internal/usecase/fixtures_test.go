package usecase

import (
	"time"

	"marketplace/internal/domain/model"
)

const (
	buyerID      int64 = 1
	sellerID     int64 = 2
	driver1ID    int64 = 3
	driver2ID    int64 = 4
	adminID      int64 = 5
	strangerID   int64 = 6
	ownerID      int64 = 7
	workerID     int64 = 8
	unverifiedID int64 = 9
	otherOwnerID int64 = 10

	companyID      int64 = 50
	otherCompanyID int64 = 51

	productID     int64 = 100
	deliveryOrder int64 = 1000
	pickupOrder   int64 = 1001
)

func ptr[T any](v T) *T { return &v }

// 購入者・出品者・配達員・管理者・無関係ユーザーと、配達注文/受取注文を1件ずつ
func seedStore() *memStore {
	s := newMemStore()

	users := []model.User{
		{ID: buyerID, Email: "buyer@example.com", Role: model.RoleUser, IsActive: true, IsVerified: true},
		{ID: sellerID, Email: "seller@example.com", Role: model.RoleUser, IsActive: true, IsVerified: true},
		{ID: driver1ID, Email: "d1@example.com", Role: model.RoleDriver, IsActive: true, IsVerified: true},
		{ID: driver2ID, Email: "d2@example.com", Role: model.RoleDriver, IsActive: true, IsVerified: true},
		{ID: adminID, Email: "admin@example.com", Role: model.RoleAdmin, IsActive: true, IsVerified: true},
		{ID: strangerID, Email: "stranger@example.com", Role: model.RoleUser, IsActive: true, IsVerified: true},
		{ID: ownerID, Email: "owner@example.com", Role: model.RoleLogisticsAdmin, IsActive: true, IsVerified: true},
		{ID: workerID, Email: "worker@example.com", Role: model.RoleDriver, IsActive: true, IsVerified: true, WorkerOfID: ptr(companyID)},
		{ID: unverifiedID, Email: "new-driver@example.com", Role: model.RoleDriver, IsActive: true},
		{ID: otherOwnerID, Email: "other-owner@example.com", Role: model.RoleLogisticsAdmin, IsActive: true, IsVerified: true},
	}
	for _, u := range users {
		s.users[u.ID] = u
	}

	s.companies[companyID] = model.LogisticsCompany{ID: companyID, Name: "Rapido", OwnerID: ownerID}
	s.companies[otherCompanyID] = model.LogisticsCompany{ID: otherCompanyID, Name: "Lento", OwnerID: otherOwnerID}

	s.products[productID] = model.Product{
		ID: productID, SellerID: sellerID, Name: "Mate cup", PriceCents: 500, Stock: 10, IsActive: true,
	}

	now := time.Now()
	s.orders[deliveryOrder] = model.Order{
		ID: deliveryOrder, UserID: buyerID, Status: model.OrderStatusPaid,
		DeliveryMethod: model.DeliveryMethodDelivery, DeliveryStatus: model.DeliveryStatusPending,
		RefundStatus: model.RefundStatusNone, CustomerName: "Buyer", CustomerEmail: "buyer@example.com",
		ShippingAddress: "Av. Corrientes 1234", ShippingCity: "Buenos Aires", TotalCents: 1000,
		IdempotencyKey: "seed-1", CreatedAt: now, UpdatedAt: now,
	}
	s.items[deliveryOrder] = []model.OrderItem{
		{ID: 1, OrderID: deliveryOrder, ProductID: productID, SellerID: sellerID, ProductNameSnapshot: "Mate cup", PriceCents: 500, Quantity: 2},
	}

	s.orders[pickupOrder] = model.Order{
		ID: pickupOrder, UserID: buyerID, Status: model.OrderStatusPaid,
		DeliveryMethod: model.DeliveryMethodPickup, DeliveryStatus: model.DeliveryStatusReadyToPickup,
		RefundStatus: model.RefundStatusNone, CustomerName: "Buyer", CustomerEmail: "buyer@example.com",
		TotalCents: 500, IdempotencyKey: "seed-2", CreatedAt: now, UpdatedAt: now,
	}
	s.items[pickupOrder] = []model.OrderItem{
		{ID: 2, OrderID: pickupOrder, ProductID: productID, SellerID: sellerID, ProductNameSnapshot: "Mate cup", PriceCents: 500, Quantity: 1},
	}

	return s
}

func actorOf(s *memStore, id int64) model.Actor {
	return model.ActorFromUser(s.user(id))
}

// 未割当の配達注文を追加する
func addDeliveryOrder(s *memStore) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.id()
	s.orders[id] = model.Order{
		ID: id, UserID: buyerID, Status: model.OrderStatusPaid,
		DeliveryMethod: model.DeliveryMethodDelivery, DeliveryStatus: model.DeliveryStatusPending,
		RefundStatus: model.RefundStatusNone, CustomerName: "Buyer", CustomerEmail: "buyer@example.com",
		TotalCents: 500,
	}
	s.items[id] = []model.OrderItem{
		{ID: s.id(), OrderID: id, ProductID: productID, SellerID: sellerID, ProductNameSnapshot: "Mate cup", PriceCents: 500, Quantity: 1},
	}
	return id
}
