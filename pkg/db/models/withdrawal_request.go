package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/pkg/enums"
)

// WithdrawalRequest is a vendor payout request with a bank-detail snapshot
// taken at request time.
type WithdrawalRequest struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID uuid.UUID `gorm:"column:vendor_id;type:uuid;not null;index"`
	Amount   float64   `gorm:"column:amount;not null"`

	Status enums.WithdrawalStatus `gorm:"column:status;type:text;not null;default:'pending'"`

	BankName      string `gorm:"column:bank_name;not null"`
	AccountNumber string `gorm:"column:account_number;not null"`
	AccountName   string `gorm:"column:account_name;not null"`

	RejectReason *string    `gorm:"column:reject_reason"`
	ResolvedAt   *time.Time `gorm:"column:resolved_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
