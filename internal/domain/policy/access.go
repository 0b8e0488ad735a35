// Package policy は注文に対する「誰が何者か」の判定をまとめる。
// 各usecaseはここを一度だけ参照して権限を決める。
package policy

import "marketplace/internal/domain/model"

// 注文に対する関係。複数立つこともある（例: 管理者が購入者でもある）。
type Access struct {
	Buyer   bool
	Seller  bool
	Courier bool
	Admin   bool
}

func (a Access) None() bool {
	return !a.Buyer && !a.Seller && !a.Courier && !a.Admin
}

// 購入者・出品者・管理者のどれか（チャット参加者）
func (a Access) Participant() bool {
	return a.Buyer || a.Seller || a.Admin
}

func (a Access) SellerOrAdmin() bool {
	return a.Seller || a.Admin
}

// actorとorderの関係を求める。停止中のユーザーは常に関係なし。
func Resolve(actor model.Actor, order model.Order, items []model.OrderItem) Access {
	if !actor.IsActive || actor.ID <= 0 {
		return Access{}
	}

	var a Access
	a.Admin = actor.Role == model.RoleAdmin
	a.Buyer = order.UserID == actor.ID
	a.Courier = order.CourierID != nil && *order.CourierID == actor.ID
	for _, it := range items {
		if it.SellerID == actor.ID {
			a.Seller = true
			break
		}
	}
	return a
}

// actorが出品した明細だけ返す（管理者なら全部）
func OwnedItems(actor model.Actor, items []model.OrderItem) []model.OrderItem {
	out := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		if actor.Role == model.RoleAdmin || it.SellerID == actor.ID {
			out = append(out, it)
		}
	}
	return out
}

// 配達員として注文を取れるか
func CanClaim(actor model.Actor) bool {
	return actor.IsActive && actor.IsVerified && actor.Role == model.RoleDriver
}

// courierを配達員として割り当ててよいか
func IsAssignableCourier(u model.User) bool {
	return u.IsActive && u.Role == model.RoleDriver
}

// 物流会社のオーナーとしてcourierを管理できるか
func OwnsCourier(actor model.Actor, company model.LogisticsCompany, courier model.User) bool {
	if !actor.IsActive || actor.Role != model.RoleLogisticsAdmin {
		return false
	}
	if company.OwnerID != actor.ID {
		return false
	}
	return courier.WorkerOfID != nil && *courier.WorkerOfID == company.ID
}
