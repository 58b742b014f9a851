package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a vendor catalog entry purchasable on credit.
type Product struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID     uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	Name         string    `gorm:"column:name;not null"`
	Description  *string   `gorm:"column:description"`
	Price        float64   `gorm:"column:price;not null"`
	CountInStock int       `gorm:"column:count_in_stock;not null;default:0"`
	ImageURL     *string   `gorm:"column:image_url"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
