package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/pkg/enums"
)

// Transaction is an immutable money-movement record. The unique reference is
// the idempotency gate for payment reconciliation.
type Transaction struct {
	ID        uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Reference string                `gorm:"column:reference;type:text;not null;uniqueIndex"`
	Type      enums.TransactionType `gorm:"column:type;type:text;not null"`
	Amount    float64               `gorm:"column:amount;not null"`

	UserID   *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	VendorID *uuid.UUID `gorm:"column:vendor_id;type:uuid;index"`

	OrderID         *uuid.UUID `gorm:"column:order_id;type:uuid"`
	AgentPurchaseID *uuid.UUID `gorm:"column:agent_purchase_id;type:uuid"`

	Description string `gorm:"column:description;not null;default:''"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
