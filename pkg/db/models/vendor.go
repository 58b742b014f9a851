package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/pkg/enums"
)

// Vendor represents a supplier selling into the marketplace.
type Vendor struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	BusinessName string    `gorm:"column:business_name;not null"`
	Phone        *string   `gorm:"column:phone"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`

	Verification  enums.VerificationStatus `gorm:"column:verification;type:text;not null;default:'unverified'"`
	WalletBalance float64                  `gorm:"column:wallet_balance;not null;default:0"`

	// Payout destination snapshot source.
	BankName      *string `gorm:"column:bank_name"`
	AccountNumber *string `gorm:"column:account_number"`
	AccountName   *string `gorm:"column:account_name"`

	// Dual-role linkage back to a retailer account.
	LinkedUserID *uuid.UUID `gorm:"column:linked_user_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
