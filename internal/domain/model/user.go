package model

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleUser           Role = "USER"
	RoleDriver         Role = "DRIVER"
	RoleLogisticsAdmin Role = "LOGISTICS_ADMIN"
	RoleAdmin          Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDriver, RoleLogisticsAdmin, RoleAdmin:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	TokenVersion int    `gorm:"not null;default:0"`
	IsActive     bool   `gorm:"not null;default:true"`
	IsVerified   bool   `gorm:"not null;default:false"`

	//所属する物流会社（nilなら独立した配達員）
	WorkerOfID *int64 `gorm:"index"`

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// リクエストを実行しているユーザー。
// middlewareがJWTとDBの最新行から組み立てる。
type Actor struct {
	ID         int64
	Role       Role
	IsActive   bool
	IsVerified bool
	WorkerOfID *int64
}

func ActorFromUser(u User) Actor {
	return Actor{
		ID:         u.ID,
		Role:       u.Role,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		WorkerOfID: u.WorkerOfID,
	}
}

func (a Actor) IsAdmin() bool {
	return a.IsActive && a.Role == RoleAdmin
}
