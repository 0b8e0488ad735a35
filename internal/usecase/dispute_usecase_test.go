package usecase

import (
	"context"
	"strings"
	"testing"

	"marketplace/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispute_RefundClosesChatForNonAdmins(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	uc := NewDisputeUsecase(s, nil)
	buyer := actorOf(s, buyerID)

	_, err := uc.SendMessage(ctx, buyer, deliveryOrder, SendMessageInput{Body: "the cup arrived broken"})
	require.NoError(t, err)
	_, err = uc.RequestRefund(ctx, buyer, deliveryOrder, "broken")
	require.NoError(t, err)

	out, err := uc.ProcessRefund(ctx, actorOf(s, sellerID), deliveryOrder)
	require.NoError(t, err)
	assert.Equal(t, string(model.RefundStatusCompleted), out.RefundStatus)
	//支払いステータスは変えない
	assert.Equal(t, string(model.OrderStatusPaid), out.Status)

	_, err = uc.SendMessage(ctx, buyer, deliveryOrder, SendMessageInput{Body: "hello"})
	assert.Equal(t, KindConflictingState, Kind(err))
	_, err = uc.SendMessage(ctx, actorOf(s, sellerID), deliveryOrder, SendMessageInput{Body: "hello"})
	assert.Equal(t, KindConflictingState, Kind(err))

	//管理者は書ける
	_, err = uc.SendMessage(ctx, actorOf(s, adminID), deliveryOrder, SendMessageInput{Body: "closing note"})
	assert.NoError(t, err)

	//読むのは引き続きできる
	msgs, err := uc.ListMessages(ctx, buyer, deliveryOrder)
	require.NoError(t, err)
	assert.NotEmpty(t, msgs)
}

func TestDispute_FullClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	uc := NewDisputeUsecase(s, nil)
	buyer := actorOf(s, buyerID)

	//REQUESTEDになる前に仲裁は頼めない
	_, err := uc.RequestMediation(ctx, buyer, deliveryOrder)
	assert.Equal(t, KindConflictingState, Kind(err))

	out, err := uc.RequestRefund(ctx, buyer, deliveryOrder, "never arrived")
	require.NoError(t, err)
	assert.Equal(t, string(model.RefundStatusRequested), out.RefundStatus)

	//二重には開けない
	_, err = uc.RequestRefund(ctx, buyer, deliveryOrder, "again")
	assert.Equal(t, KindConflictingState, Kind(err))

	out, err = uc.RequestMediation(ctx, buyer, deliveryOrder)
	require.NoError(t, err)
	assert.Equal(t, string(model.RefundStatusMediation), out.RefundStatus)
	assert.Equal(t, string(model.OrderStatusDisputed), out.Status)

	//取り下げるとPAIDに戻る（未配達）
	out, err = uc.CancelClaim(ctx, buyer, deliveryOrder)
	require.NoError(t, err)
	assert.Equal(t, string(model.RefundStatusNone), out.RefundStatus)
	assert.Equal(t, string(model.OrderStatusPaid), out.Status)

	o := s.order(deliveryOrder)
	assert.Equal(t, model.RefundStatusNone, o.RefundStatus)
	assert.Equal(t, model.OrderStatusPaid, o.Status)

	//遷移ごとにSYSTEMメッセージが1件
	var kinds []model.MessageKind
	for _, m := range s.messagesOf(deliveryOrder) {
		kinds = append(kinds, m.Kind)
		assert.Nil(t, m.UserID)
	}
	assert.Equal(t, []model.MessageKind{model.MessageKindSystem, model.MessageKindSystem, model.MessageKindSystem}, kinds)
	assert.Contains(t, s.messagesOf(deliveryOrder)[0].Body, "never arrived")
}

func TestDispute_CloseClaimIsAdminOnly(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	uc := NewDisputeUsecase(s, nil)

	// 配達済みの注文
	o := s.orders[deliveryOrder]
	o.Status = model.OrderStatusFulfilled
	o.DeliveryStatus = model.DeliveryStatusDelivered
	s.orders[deliveryOrder] = o

	_, err := uc.RequestRefund(ctx, actorOf(s, buyerID), deliveryOrder, "")
	require.NoError(t, err)
	_, err = uc.RequestMediation(ctx, actorOf(s, buyerID), deliveryOrder)
	require.NoError(t, err)

	_, err = uc.CloseClaim(ctx, actorOf(s, sellerID), deliveryOrder)
	assert.Equal(t, KindPermissionDenied, Kind(err))
	_, err = uc.CloseClaim(ctx, actorOf(s, buyerID), deliveryOrder)
	assert.Equal(t, KindPermissionDenied, Kind(err))

	out, err := uc.CloseClaim(ctx, actorOf(s, adminID), deliveryOrder)
	require.NoError(t, err)
	assert.Equal(t, string(model.RefundStatusCancelled), out.RefundStatus)
	//配達済みならFULFILLEDに戻る
	assert.Equal(t, string(model.OrderStatusFulfilled), out.Status)
	assert.Equal(t, []model.AuditAction{model.AuditActionCloseClaim}, s.auditActions())

	//閉じたクレームはもう閉じられない
	_, err = uc.CloseClaim(ctx, actorOf(s, adminID), deliveryOrder)
	assert.Equal(t, KindConflictingState, Kind(err))
}

func TestDispute_ProcessRefundPausesProductsAndUnpause(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	uc := NewDisputeUsecase(s, nil)

	//まだ返金していないので再開できない
	_, err := uc.UnpauseProduct(ctx, actorOf(s, sellerID), deliveryOrder)
	assert.Equal(t, KindConflictingState, Kind(err))

	_, err = uc.ProcessRefund(ctx, actorOf(s, adminID), deliveryOrder)
	require.NoError(t, err)
	assert.False(t, s.product(productID).IsActive)
	assert.Equal(t, []model.AuditAction{model.AuditActionProcessRefund}, s.auditActions())

	//返金は一度だけ
	_, err = uc.ProcessRefund(ctx, actorOf(s, sellerID), deliveryOrder)
	assert.Equal(t, KindConflictingState, Kind(err))

	//購入者は再開できない
	_, err = uc.UnpauseProduct(ctx, actorOf(s, buyerID), deliveryOrder)
	assert.Equal(t, KindPermissionDenied, Kind(err))

	n, err := uc.UnpauseProduct(ctx, actorOf(s, sellerID), deliveryOrder)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, s.product(productID).IsActive)
}

func TestDispute_ProcessRefundNeedsPayment(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	uc := NewDisputeUsecase(s, nil)

	o := s.orders[deliveryOrder]
	o.Status = model.OrderStatusPending
	s.orders[deliveryOrder] = o

	_, err := uc.ProcessRefund(ctx, actorOf(s, sellerID), deliveryOrder)
	assert.Equal(t, KindConflictingState, Kind(err))
	_, err = uc.RequestRefund(ctx, actorOf(s, buyerID), deliveryOrder, "")
	assert.Equal(t, KindConflictingState, Kind(err))
	assert.Empty(t, s.messagesOf(deliveryOrder))
}

func TestDispute_SendMessageValidation(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	uc := NewDisputeUsecase(s, nil)
	seller := actorOf(s, sellerID)

	_, err := uc.SendMessage(ctx, seller, deliveryOrder, SendMessageInput{Body: "   "})
	assert.Equal(t, KindInvalidArgument, Kind(err))

	_, err = uc.SendMessage(ctx, seller, deliveryOrder, SendMessageInput{Body: strings.Repeat("a", maxMessageLen+1)})
	assert.Equal(t, KindInvalidArgument, Kind(err))

	_, err = uc.SendMessage(ctx, seller, 424242, SendMessageInput{Body: "hi"})
	assert.Equal(t, KindNotFound, Kind(err))

	//配達員はチャットに参加しない
	_, err = uc.SendMessage(ctx, actorOf(s, driver1ID), deliveryOrder, SendMessageInput{Body: "hi"})
	assert.Equal(t, KindPermissionDenied, Kind(err))

	msg, err := uc.SendMessage(ctx, seller, deliveryOrder, SendMessageInput{Body: " shipped today ", AttachmentURL: "https://cdn/x.png"})
	require.NoError(t, err)
	assert.Equal(t, "shipped today", msg.Body)
	assert.Equal(t, model.MessageKindUser, msg.Kind)
	require.NotNil(t, msg.UserID)
	assert.Equal(t, sellerID, *msg.UserID)
	assert.Equal(t, "https://cdn/x.png", msg.AttachmentURL)
}

func TestDispute_InvalidatesOrderView(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	cache := newMemCache()
	cache.put(orderView(deliveryOrder), []byte(`{}`))
	uc := NewDisputeUsecase(s, cache)

	_, err := uc.RequestRefund(ctx, actorOf(s, buyerID), deliveryOrder, "")
	require.NoError(t, err)
	assert.False(t, cache.has(orderView(deliveryOrder)))
}

// 2人の出品者の商品が入った注文にする
func addSecondSellerItem(s *memStore) int64 {
	const otherProductID int64 = 101
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products[otherProductID] = model.Product{
		ID: otherProductID, SellerID: strangerID, Name: "Bombilla", PriceCents: 300, Stock: 5, IsActive: true,
	}
	s.items[deliveryOrder] = append(s.items[deliveryOrder], model.OrderItem{
		ID: s.id(), OrderID: deliveryOrder, ProductID: otherProductID, SellerID: strangerID,
		ProductNameSnapshot: "Bombilla", PriceCents: 300, Quantity: 1,
	})
	return otherProductID
}

func TestDispute_RefundPausesOnlyOwnProducts(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	otherProductID := addSecondSellerItem(s)
	uc := NewDisputeUsecase(s, nil)

	_, err := uc.ProcessRefund(ctx, actorOf(s, sellerID), deliveryOrder)
	require.NoError(t, err)

	assert.False(t, s.product(productID).IsActive)
	assert.True(t, s.product(otherProductID).IsActive)

	//再開も自分の商品だけ
	n, err := uc.UnpauseProduct(ctx, actorOf(s, sellerID), deliveryOrder)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, s.product(productID).IsActive)
}

func TestDispute_AdminRefundPausesEveryProduct(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	otherProductID := addSecondSellerItem(s)
	uc := NewDisputeUsecase(s, nil)

	_, err := uc.ProcessRefund(ctx, actorOf(s, adminID), deliveryOrder)
	require.NoError(t, err)

	assert.False(t, s.product(productID).IsActive)
	assert.False(t, s.product(otherProductID).IsActive)
}

func TestDispute_InvalidatesCourierAssignments(t *testing.T) {
	ctx := context.Background()
	s := seedStore()
	s.mu.Lock()
	o := s.orders[deliveryOrder]
	o.CourierID = ptr(driver1ID)
	o.DeliveryStatus = model.DeliveryStatusOnWay
	s.orders[deliveryOrder] = o
	s.mu.Unlock()

	cache := newMemCache()
	cache.put(assignmentsView(driver1ID), []byte(`[]`))
	uc := NewDisputeUsecase(s, cache)

	_, err := uc.RequestRefund(ctx, actorOf(s, buyerID), deliveryOrder, "late")
	require.NoError(t, err)
	assert.False(t, cache.has(assignmentsView(driver1ID)))
}
