package model

import "time"

// 物流会社。オーナー（LOGISTICS_ADMIN）が配達員を抱える。
type LogisticsCompany struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	OwnerID   int64     `gorm:"not null;uniqueIndex" json:"owner_id"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
