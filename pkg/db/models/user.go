package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/joinamana/amana-backend/pkg/enums"
)

// User represents a retailer or admin account. Retailers carry the trust
// scorecard and credit ledger; the agent flag marks field agents.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	FirstName    string     `gorm:"column:first_name;not null"`
	LastName     string     `gorm:"column:last_name;not null"`
	Phone        *string    `gorm:"column:phone"`
	Role         enums.Role `gorm:"column:role;type:text;not null;default:'retailer'"`
	IsAgent      bool       `gorm:"column:is_agent;not null;default:false"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`

	// Onboarding and verification.
	Verification      enums.VerificationStatus `gorm:"column:verification;type:text;not null;default:'unverified'"`
	BusinessName      *string                  `gorm:"column:business_name"`
	BusinessAgeYears  int                      `gorm:"column:business_age_years;not null;default:0"`
	HasShopLocation   bool                     `gorm:"column:has_shop_location;not null;default:false"`
	CapitalBand       string                   `gorm:"column:capital_band;not null;default:'low'"`
	PsychometricScore int                      `gorm:"column:psychometric_score;not null;default:0"`
	KYCComplete       bool                     `gorm:"column:kyc_complete;not null;default:false"`

	// Trust scorecard and credit ledger.
	TrustScore    int        `gorm:"column:trust_score;not null;default:0"`
	Tier          enums.Tier `gorm:"column:tier;type:text;not null;default:'bronze'"`
	CreditLimit   float64    `gorm:"column:credit_limit;not null;default:0"`
	UsedCredit    float64    `gorm:"column:used_credit;not null;default:0"`
	MarkupRate    float64    `gorm:"column:markup_rate;not null;default:0"`
	WalletBalance float64    `gorm:"column:wallet_balance;not null;default:0"`

	// Repayment history.
	RepaymentStreak int     `gorm:"column:repayment_streak;not null;default:0"`
	TotalRepaid     float64 `gorm:"column:total_repaid;not null;default:0"`

	// Dual-role linkage: a retailer who also operates a vendor profile.
	LinkedVendorID *uuid.UUID `gorm:"column:linked_vendor_id;type:uuid"`

	LastLoginAt *time.Time `gorm:"column:last_login_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
