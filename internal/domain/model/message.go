package model

import (
	"fmt"
	"time"
)

type MessageKind string

const (
	MessageKindUser   MessageKind = "USER"
	MessageKindSystem MessageKind = "SYSTEM"
)

func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindUser, MessageKindSystem:
		return true
	}
	return false
}

func ParseMessageKind(s string) (MessageKind, error) {
	k := MessageKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown message kind %q", s)
	}
	return k, nil
}

// 注文チャット（追記のみ）。
// SYSTEMのときUserIDはnil。
type Message struct {
	ID            int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID       int64       `gorm:"not null;index" json:"order_id"`
	UserID        *int64      `gorm:"index" json:"user_id"`
	Kind          MessageKind `gorm:"type:varchar(10);not null" json:"kind"`
	Body          string      `gorm:"type:text;not null" json:"body"`
	AttachmentURL string      `gorm:"type:text" json:"attachment_url,omitempty"`
	CreatedAt     time.Time   `gorm:"not null;index" json:"created_at"`
}
