package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/pkg/enums"
)

// AgentPurchase is an off-platform purchase mediated by a field agent and
// funded from the retailer's credit line.
type AgentPurchase struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AgentID    uuid.UUID  `gorm:"column:agent_id;type:uuid;not null;index"`
	RetailerID *uuid.UUID `gorm:"column:retailer_id;type:uuid;index"`

	Status enums.PurchaseStatus `gorm:"column:status;type:text;not null;default:'draft'"`

	Description   string  `gorm:"column:description;not null"`
	VendorName    string  `gorm:"column:vendor_name;not null"`
	PurchasePrice float64 `gorm:"column:purchase_price;not null"`
	MarkupRate    float64 `gorm:"column:markup_rate;not null;default:0"`
	MarkupAmount  float64 `gorm:"column:markup_amount;not null;default:0"`
	TotalCost     float64 `gorm:"column:total_cost;not null;default:0"`
	IsPaid        bool    `gorm:"column:is_paid;not null;default:false"`
	TermDays      int     `gorm:"column:term_days;not null;default:0"`

	PhotoURLs StringSlice `gorm:"column:photo_urls;type:jsonb;serializer:json"`

	DisbursedAmount       float64                   `gorm:"column:disbursed_amount;not null;default:0"`
	DisbursementMethod    *enums.DisbursementMethod `gorm:"column:disbursement_method;type:text"`
	DisbursementReference *string                   `gorm:"column:disbursement_reference"`

	PickupCode    *string `gorm:"column:pickup_code"`
	DeclineReason *string `gorm:"column:decline_reason"`

	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	DueDate     *time.Time `gorm:"column:due_date"`
	DisbursedAt *time.Time `gorm:"column:disbursed_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	ReceivedAt  *time.Time `gorm:"column:received_at"`
	RepaidAt    *time.Time `gorm:"column:repaid_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// StringSlice stores a list of strings as a JSON column.
type StringSlice []string
