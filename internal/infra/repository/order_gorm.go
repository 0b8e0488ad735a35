package repository

import (
	"context"
	"errors"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, repo.ErrDuplicateKey
		}
		return 0, err
	}
	return order.ID, nil
}

func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&o).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//ステータス絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DeliveryStatus != "" {
		q = q.Where("delivery_status = ?", f.DeliveryStatus)
	}
	if f.RefundStatus != "" {
		q = q.Where("refund_status = ?", f.RefundStatus)
	}

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.CourierID != nil {
		q = q.Where("courier_id = ?", *f.CourierID)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) ListAvailable(ctx context.Context, page int, limit int) ([]model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("courier_id IS NULL").
		Where("delivery_method = ?", model.DeliveryMethodDelivery).
		Where("delivery_status = ?", model.DeliveryStatusPending).
		Where("status NOT IN ?", []model.OrderStatus{model.OrderStatusCancelled, model.OrderStatusFailed})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	//古い注文から
	if err := q.Order("id asc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}
	return items, total, nil
}

func (r *OrderGormRepository) ListByCourierID(ctx context.Context, courierID int64, activeOnly bool) ([]model.Order, error) {
	q := r.db.WithContext(ctx).Where("courier_id = ?", courierID)
	if activeOnly {
		q = q.Where("delivery_status IN ?", []model.DeliveryStatus{model.DeliveryStatusAssigned, model.DeliveryStatusOnWay})
	}

	var items []model.Order
	if err := q.Order("id desc").Limit(200).Find(&items).Error; err != nil {
		return []model.Order{}, err
	}
	return items, nil
}

// 読んでから書くと二重割当の隙ができるので、条件付きUPDATE1回で行う
func (r *OrderGormRepository) ClaimIfUnassigned(ctx context.Context, orderID int64, courierID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Where("courier_id IS NULL").
		Where("delivery_method = ?", model.DeliveryMethodDelivery).
		Where("delivery_status = ?", model.DeliveryStatusPending).
		Where("status NOT IN ?", []model.OrderStatus{model.OrderStatusCancelled, model.OrderStatusFailed}).
		Updates(map[string]interface{}{
			"courier_id":      courierID,
			"delivery_status": model.DeliveryStatusOnWay,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderGormRepository) AssignCourier(ctx context.Context, orderID int64, courierID int64, onlyIfUnassigned bool) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Where("delivery_method = ?", model.DeliveryMethodDelivery).
		Where("delivery_status NOT IN ?", []model.DeliveryStatus{model.DeliveryStatusDelivered, model.DeliveryStatusFailed})
	if onlyIfUnassigned {
		q = q.Where("courier_id IS NULL")
	}

	res := q.Updates(map[string]interface{}{
		"courier_id":      courierID,
		"delivery_status": model.DeliveryStatusAssigned,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// 配達完了の全項目を1文で書く（途中状態を他から見せない）
func (r *OrderGormRepository) CompleteDelivery(ctx context.Context, orderID int64, courierID int64, c repo.DeliveryCompletion) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Where("courier_id = ?", courierID).
		Where("delivery_status IN ?", []model.DeliveryStatus{model.DeliveryStatusAssigned, model.DeliveryStatusOnWay}).
		Updates(map[string]interface{}{
			"delivery_status":  model.DeliveryStatusDelivered,
			"status":           model.OrderStatusFulfilled,
			"delivery_lat":     c.Lat,
			"delivery_lng":     c.Lng,
			"proof_url":        c.ProofURL,
			"delivery_time":    c.At,
			"funds_released":   true,
			"funds_release_at": c.At,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderGormRepository) TransitionRefund(ctx context.Context, orderID int64, from []model.RefundStatus, to model.RefundStatus, status *model.OrderStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	values := map[string]interface{}{"refund_status": to}
	if status != nil {
		values["status"] = *status
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Where("refund_status IN ?", from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) UpdateDeliveryStatus(ctx context.Context, orderID int64, status model.DeliveryStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("delivery_status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
