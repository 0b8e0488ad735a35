package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/domain/model"
)

// 同じ購入者が同じidempotency keyで2件作ろうとした
var ErrDuplicateKey = errors.New("duplicate key")

type AdminOrderListFilter struct {
	Page           int
	Limit          int
	Status         string
	DeliveryStatus string
	RefundStatus   string
	UserID         *int64
	CourierID      *int64
	From           *time.Time
	To             *time.Time
}

// 配達完了時に一度に書き込む値
type DeliveryCompletion struct {
	Lat      float64
	Lng      float64
	ProofURL string
	At       time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	//(user_id, idempotency_key)が重複したらErrDuplicateKey
	Create(ctx context.Context, order model.Order) (int64, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	//配達員が取れる注文（未割当・DELIVERY・PENDING）
	ListAvailable(ctx context.Context, page int, limit int) ([]model.Order, int64, error)
	//配達員の担当注文（activeOnlyなら配達中のみ）
	ListByCourierID(ctx context.Context, courierID int64, activeOnly bool) ([]model.Order, error)

	//courier_id IS NULL のときだけ割り当てる。更新できたらtrue
	ClaimIfUnassigned(ctx context.Context, orderID int64, courierID int64) (bool, error)
	//管理者/物流会社による割当。onlyIfUnassignedならcourier_id IS NULLを条件にする
	AssignCourier(ctx context.Context, orderID int64, courierID int64, onlyIfUnassigned bool) (bool, error)
	//配達完了（担当がcourierIDで配達中のときだけ）。全項目を1回のUPDATEで書く
	CompleteDelivery(ctx context.Context, orderID int64, courierID int64, c DeliveryCompletion) (bool, error)

	//refund_statusが from のどれかのときだけ to に変える。statusがnilでなければ同時に書く
	TransitionRefund(ctx context.Context, orderID int64, from []model.RefundStatus, to model.RefundStatus, status *model.OrderStatus) (bool, error)

	//管理者の強制変更（ガードなし）
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	UpdateDeliveryStatus(ctx context.Context, orderID int64, status model.DeliveryStatus) error
}
