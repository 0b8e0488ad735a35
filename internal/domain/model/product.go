package model

import "time"

type Product struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	SellerID    int64  `gorm:"not null;index" json:"seller_id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	PriceCents  int64  `gorm:"not null" json:"price_cents"`
	Stock       int64  `gorm:"not null" json:"stock"`
	IsActive    bool   `gorm:"not null;default:false" json:"is_active"`

	//注文から参照されるので物理削除はしない
	IsDeleted bool `gorm:"not null;default:false;index" json:"is_deleted"`

	//ブースト期間（この時刻まで一覧の上位に出す）
	BoostedUntil *time.Time `json:"boosted_until,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 購入者に見えるか
func (p Product) IsVisible() bool {
	return p.IsActive && !p.IsDeleted
}

func (p Product) IsBoosted(now time.Time) bool {
	return p.BoostedUntil != nil && now.Before(*p.BoostedUntil)
}
