package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateProduct = "CREATE_PRODUCT"
	ActionUpdateProduct = "UPDATE_PRODUCT"
	ActionDeleteProduct = "DELETE_PRODUCT"
	ActionCreateUnit    = "CREATE_UNIT"
	ActionUpdateUnit    = "UPDATE_UNIT"
	ActionDeleteUnit    = "DELETE_UNIT"

	// Purchase request lifecycle actions
	ActionCreatePurchaseRequest  = "CREATE_PURCHASE_REQUEST"
	ActionSubmitPurchaseRequest  = "SUBMIT_PURCHASE_REQUEST"
	ActionApprovePurchaseRequest = "APPROVE_PURCHASE_REQUEST"
	ActionRejectPurchaseRequest  = "REJECT_PURCHASE_REQUEST"
	ActionCancelPurchaseRequest  = "CANCEL_PURCHASE_REQUEST"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated bot
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
