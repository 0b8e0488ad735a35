package model

import (
	"strings"
	"time"
)

type AuditAction string

const (
	AuditActionUpdateStock         AuditAction = "UPDATE_STOCK"
	AuditActionUpdateProduct       AuditAction = "UPDATE_PRODUCT"
	AuditActionForceOrderStatus    AuditAction = "FORCE_ORDER_STATUS"
	AuditActionForceDeliveryStatus AuditAction = "FORCE_DELIVERY_STATUS"
	AuditActionAssignCourier       AuditAction = "ASSIGN_COURIER"
	AuditActionCompleteDelivery    AuditAction = "COMPLETE_DELIVERY"
	AuditActionProcessRefund       AuditAction = "PROCESS_REFUND"
	AuditActionCloseClaim          AuditAction = "CLOSE_CLAIM"
	AuditActionDeactivateUser      AuditAction = "DEACTIVATE_USER"
	AuditActionUpdateUser          AuditAction = "UPDATE_USER"
	AuditActionRemoveWorker        AuditAction = "REMOVE_WORKER"
)

// "assign_courier, COMPLETE_DELIVERY" のようなカンマ区切りを読む。空要素は捨てる
func ParseAuditActions(s string) []AuditAction {
	var out []AuditAction
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, AuditAction(p))
		}
	}
	return out
}

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceProduct AuditResourceType = "product"
	AuditResourceOrder   AuditResourceType = "order"
	AuditResourceUser    AuditResourceType = "user"
)

// 監査ログ（追記のみ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//実行したユーザーのID
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	//座標・証明写真など自由形式のJSON
	MetadataJSON string `gorm:"type:text" json:"metadata_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
