package accounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/pkg/db/models"
)

// Repository manages user and vendor identity rows. Credit ledger fields on
// users are owned by the credit repository and are not written here.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListAgents(ctx context.Context) ([]models.User, error)

	CreateVendor(ctx context.Context, vendor *models.Vendor) error
	UpdateVendor(ctx context.Context, vendor *models.Vendor) error
	FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	FindVendorByEmail(ctx context.Context, email string) (*models.Vendor, error)

	CreditVendorWallet(ctx context.Context, vendorID uuid.UUID, amount float64) error
	// DebitVendorWallet is guarded against overdraft; returns false when the
	// balance was insufficient.
	DebitVendorWallet(ctx context.Context, vendorID uuid.UUID, amount float64) (bool, error)
	CreditUserWallet(ctx context.Context, userID uuid.UUID, amount float64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an accounts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repository) UpdateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *repository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) ListAgents(ctx context.Context) ([]models.User, error) {
	var agents []models.User
	if err := r.db.WithContext(ctx).
		Where("is_agent = ? AND is_active = ?", true, true).
		Find(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repository) CreateVendor(ctx context.Context, vendor *models.Vendor) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}

func (r *repository) UpdateVendor(ctx context.Context, vendor *models.Vendor) error {
	return r.db.WithContext(ctx).Save(vendor).Error
}

func (r *repository) FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).First(&vendor, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) FindVendorByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).First(&vendor, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) CreditVendorWallet(ctx context.Context, vendorID uuid.UUID, amount float64) error {
	return r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Where("id = ?", vendorID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount)).Error
}

func (r *repository) DebitVendorWallet(ctx context.Context, vendorID uuid.UUID, amount float64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Vendor{}).
		Where("id = ? AND wallet_balance >= ?", vendorID, amount).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreditUserWallet(ctx context.Context, userID uuid.UUID, amount float64) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount)).Error
}
