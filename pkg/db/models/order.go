package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/pkg/enums"
)

// Order is a marketplace credit order from a retailer to a single vendor.
type Order struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RetailerID uuid.UUID `gorm:"column:retailer_id;type:uuid;not null;index"`
	VendorID   uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`

	Status enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending_vendor'"`

	// ItemsPrice is the vendor-facing goods total; TotalPrice adds the
	// retailer's markup.
	ItemsPrice   float64 `gorm:"column:items_price;not null"`
	MarkupRate   float64 `gorm:"column:markup_rate;not null"`
	MarkupAmount float64 `gorm:"column:markup_amount;not null"`
	TotalPrice   float64 `gorm:"column:total_price;not null"`
	IsPaid       bool    `gorm:"column:is_paid;not null;default:false"`

	// Agent settlement leg.
	AssignedAgentID *uuid.UUID `gorm:"column:assigned_agent_id;type:uuid"`
	PickupCode      *string    `gorm:"column:pickup_code"`

	DueDate         *time.Time `gorm:"column:due_date"`
	VendorSettledAt *time.Time `gorm:"column:vendor_settled_at"`
	ReceivedAt      *time.Time `gorm:"column:received_at"`
	RepaidAt        *time.Time `gorm:"column:repaid_at"`
	CancelledAt     *time.Time `gorm:"column:cancelled_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots a product line at order time.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name      string    `gorm:"column:name;not null"`
	UnitPrice float64   `gorm:"column:unit_price;not null"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
