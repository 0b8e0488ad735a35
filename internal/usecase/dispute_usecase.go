package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"marketplace/internal/domain/model"
	"marketplace/internal/domain/policy"
	repo "marketplace/internal/repository"
)

const maxMessageLen = 2000

// 注文チャットとクレーム（返金）の流れ
type DisputeUsecase struct {
	tx    repo.TransactionManager
	views views
}

func NewDisputeUsecase(tx repo.TransactionManager, cache ViewCache) *DisputeUsecase {
	return &DisputeUsecase{tx: tx, views: newViews(cache)}
}

type SendMessageInput struct {
	Body          string
	AttachmentURL string
}

func (u *DisputeUsecase) SendMessage(ctx context.Context, actor model.Actor, orderID int64, in SendMessageInput) (model.Message, error) {
	var out model.Message
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, items, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		access := policy.Resolve(actor, o, items)
		if !access.Participant() {
			return errForbidden()
		}
		//返金完了後は管理者以外書けない
		if o.RefundStatus == model.RefundStatusCompleted && !access.Admin {
			return errConflict("chat closed")
		}

		body := strings.TrimSpace(in.Body)
		if body == "" {
			return errInvalid("body required")
		}
		if utf8.RuneCountInString(body) > maxMessageLen {
			return errInvalid("body too long")
		}

		uid := actor.ID
		msg, err := r.Messages().Create(ctx, model.Message{
			OrderID:       orderID,
			UserID:        &uid,
			Kind:          model.MessageKindUser,
			Body:          body,
			AttachmentURL: strings.TrimSpace(in.AttachmentURL),
			CreatedAt:     time.Now(),
		})
		if err != nil {
			return errDB("messages.create", err)
		}
		out = msg
		return nil
	})
	if err != nil {
		return model.Message{}, err
	}
	return out, nil
}

func (u *DisputeUsecase) ListMessages(ctx context.Context, actor model.Actor, orderID int64) ([]model.Message, error) {
	var out []model.Message
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, items, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if !policy.Resolve(actor, o, items).Participant() {
			return errForbidden()
		}

		out, err = r.Messages().ListByOrderID(ctx, orderID)
		if err != nil {
			return errDB("messages.list", err)
		}
		return nil
	})
	if err != nil {
		return []model.Message{}, err
	}
	return out, nil
}

// 購入者がクレームを開く
func (u *DisputeUsecase) RequestRefund(ctx context.Context, actor model.Actor, orderID int64, reason string) (OrderOutput, error) {
	reason = strings.TrimSpace(reason)
	return u.transition(ctx, actor, orderID, func(o model.Order, a policy.Access) (refundStep, error) {
		if !a.Buyer {
			return refundStep{}, errForbidden()
		}
		if utf8.RuneCountInString(reason) > maxMessageLen {
			return refundStep{}, errInvalid("reason too long")
		}
		switch o.Status {
		case model.OrderStatusPaid, model.OrderStatusFulfilled:
		case model.OrderStatusPending, model.OrderStatusFailed, model.OrderStatusDisputed, model.OrderStatusCancelled:
			return refundStep{}, errConflict("order is not refundable")
		}

		msg := "Buyer requested a refund."
		if reason != "" {
			msg = fmt.Sprintf("Buyer requested a refund: %s", reason)
		}
		return refundStep{
			from:    []model.RefundStatus{model.RefundStatusNone},
			to:      model.RefundStatusRequested,
			message: msg,
		}, nil
	})
}

// 購入者が運営の仲裁を求める（注文はDISPUTEDになる）
func (u *DisputeUsecase) RequestMediation(ctx context.Context, actor model.Actor, orderID int64) (OrderOutput, error) {
	return u.transition(ctx, actor, orderID, func(o model.Order, a policy.Access) (refundStep, error) {
		if !a.Buyer {
			return refundStep{}, errForbidden()
		}
		if o.Status == model.OrderStatusCancelled || o.Status == model.OrderStatusFailed {
			return refundStep{}, errConflict("order is no longer active")
		}

		disputed := model.OrderStatusDisputed
		return refundStep{
			from:    []model.RefundStatus{model.RefundStatusRequested},
			to:      model.RefundStatusMediation,
			status:  &disputed,
			message: "Buyer asked for mediation. An administrator will review this order.",
		}, nil
	})
}

// 出品者か管理者が返金を確定する。
// statusはそのまま（DISPUTEDだけ元に戻す）。注文の商品は一時停止する
func (u *DisputeUsecase) ProcessRefund(ctx context.Context, actor model.Actor, orderID int64) (OrderOutput, error) {
	return u.transition(ctx, actor, orderID, func(o model.Order, a policy.Access) (refundStep, error) {
		if !a.SellerOrAdmin() {
			return refundStep{}, errForbidden()
		}
		switch o.Status {
		case model.OrderStatusPaid, model.OrderStatusFulfilled, model.OrderStatusDisputed:
		case model.OrderStatusPending, model.OrderStatusFailed, model.OrderStatusCancelled:
			return refundStep{}, errConflict("order was never paid")
		}

		return refundStep{
			from:          []model.RefundStatus{model.RefundStatusNone, model.RefundStatusRequested, model.RefundStatusMediation},
			to:            model.RefundStatusCompleted,
			status:        revertDispute(o),
			message:       "Refund completed. This chat is now closed.",
			audit:         model.AuditActionProcessRefund,
			pauseProducts: true,
		}, nil
	})
}

// 管理者が返金なしでクレームを閉じる
func (u *DisputeUsecase) CloseClaim(ctx context.Context, actor model.Actor, orderID int64) (OrderOutput, error) {
	return u.transition(ctx, actor, orderID, func(o model.Order, a policy.Access) (refundStep, error) {
		if !a.Admin {
			return refundStep{}, errForbidden()
		}
		return refundStep{
			from:    []model.RefundStatus{model.RefundStatusRequested, model.RefundStatusMediation},
			to:      model.RefundStatusCancelled,
			status:  revertDispute(o),
			message: "Claim closed by an administrator without refund.",
			audit:   model.AuditActionCloseClaim,
		}, nil
	})
}

// 購入者がクレームを取り下げる
func (u *DisputeUsecase) CancelClaim(ctx context.Context, actor model.Actor, orderID int64) (OrderOutput, error) {
	return u.transition(ctx, actor, orderID, func(o model.Order, a policy.Access) (refundStep, error) {
		if !a.Buyer {
			return refundStep{}, errForbidden()
		}
		return refundStep{
			from:    []model.RefundStatus{model.RefundStatusRequested, model.RefundStatusMediation},
			to:      model.RefundStatusNone,
			status:  revertDispute(o),
			message: "Buyer withdrew the claim.",
		}, nil
	})
}

// 返金・キャンセル後に止めた商品を再開する。再開した件数を返す
func (u *DisputeUsecase) UnpauseProduct(ctx context.Context, actor model.Actor, orderID int64) (int64, error) {
	var n int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, items, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		if !policy.Resolve(actor, o, items).SellerOrAdmin() {
			return errForbidden()
		}
		if o.Status != model.OrderStatusCancelled && o.RefundStatus != model.RefundStatusCompleted {
			return errConflict("order was not cancelled or refunded")
		}

		n, err = r.Products().SetActive(ctx, productIDs(policy.OwnedItems(actor, items)), true)
		if err != nil {
			return errDB("products.set_active", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// クレームの1ステップ。decideが現在の注文から決める
type refundStep struct {
	from          []model.RefundStatus
	to            model.RefundStatus
	status        *model.OrderStatus
	message       string
	audit         model.AuditAction
	pauseProducts bool
}

func (u *DisputeUsecase) transition(
	ctx context.Context,
	actor model.Actor,
	orderID int64,
	decide func(o model.Order, a policy.Access) (refundStep, error),
) (OrderOutput, error) {
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, items, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}

		step, err := decide(o, policy.Resolve(actor, o, items))
		if err != nil {
			return err
		}

		ok, err := r.Orders().TransitionRefund(ctx, orderID, step.from, step.to, step.status)
		if err != nil {
			return errDB("orders.transition_refund", err)
		}
		if !ok {
			return errConflict(fmt.Sprintf("claim cannot move from %s to %s", o.RefundStatus, step.to))
		}

		before := map[string]any{"status": o.Status, "refund_status": o.RefundStatus}
		o.RefundStatus = step.to
		if step.status != nil {
			o.Status = *step.status
		}

		//止めるのは実行者が出品した商品だけ（管理者なら全部）
		if step.pauseProducts {
			if _, err := r.Products().SetActive(ctx, productIDs(policy.OwnedItems(actor, items)), false); err != nil {
				return errDB("products.set_active", err)
			}
		}
		if err := postSystemMessage(ctx, r, orderID, step.message); err != nil {
			return err
		}
		if step.audit != "" {
			if err := writeAudit(ctx, r, auditEntry{
				actorID:      actor.ID,
				action:       step.audit,
				resourceType: model.AuditResourceOrder,
				resourceID:   orderID,
				before:       before,
				after:        map[string]any{"status": o.Status, "refund_status": o.RefundStatus},
			}); err != nil {
				return err
			}
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

// DISPUTEDなら戻すstatus、それ以外はnil（変更しない）
func revertDispute(o model.Order) *model.OrderStatus {
	if o.Status != model.OrderStatusDisputed {
		return nil
	}
	s := o.StatusAfterDispute()
	return &s
}

func productIDs(items []model.OrderItem) []int64 {
	seen := make(map[int64]bool, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		ids = append(ids, it.ProductID)
	}
	return ids
}
