package aap

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/enums"
)

// Repository manages agent-assisted purchase rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.AgentPurchase) error
	Update(ctx context.Context, purchase *models.AgentPurchase) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AgentPurchase, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.AgentPurchase, error)
	ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.AgentPurchase, error)
	ListPendingApproval(ctx context.Context) ([]models.AgentPurchase, error)
	// ListUnpaidByRetailer returns received purchases awaiting repayment,
	// oldest due first.
	ListUnpaidByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.AgentPurchase, error)
	// ExpireOverdue flips fund_disbursed purchases whose delivery window has
	// closed to expired and returns the rows it touched.
	ExpireOverdue(ctx context.Context, now time.Time) ([]models.AgentPurchase, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a purchase repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.AgentPurchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) Update(ctx context.Context, purchase *models.AgentPurchase) error {
	return r.db.WithContext(ctx).Save(purchase).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AgentPurchase, error) {
	var purchase models.AgentPurchase
	if err := r.db.WithContext(ctx).First(&purchase, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.AgentPurchase, error) {
	return r.list(ctx, "agent_id = ?", agentID)
}

func (r *repository) ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.AgentPurchase, error) {
	return r.list(ctx, "retailer_id = ?", retailerID)
}

func (r *repository) ListPendingApproval(ctx context.Context) ([]models.AgentPurchase, error) {
	return r.list(ctx, "status = ?", enums.PurchaseStatusPendingAdminApproval)
}

func (r *repository) list(ctx context.Context, query string, arg any) ([]models.AgentPurchase, error) {
	var purchases []models.AgentPurchase
	if err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("created_at DESC").
		Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repository) ListUnpaidByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.AgentPurchase, error) {
	var purchases []models.AgentPurchase
	if err := r.db.WithContext(ctx).
		Where("retailer_id = ? AND is_paid = ? AND status = ?", retailerID, false, enums.PurchaseStatusReceived).
		Order("due_date ASC").
		Find(&purchases).Error; err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *repository) ExpireOverdue(ctx context.Context, now time.Time) ([]models.AgentPurchase, error) {
	var overdue []models.AgentPurchase
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", enums.PurchaseStatusFundDisbursed, now).
		Find(&overdue).Error; err != nil {
		return nil, err
	}
	if len(overdue) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(overdue))
	for _, p := range overdue {
		ids = append(ids, p.ID)
	}
	// guarded by status so a concurrent delivery confirmation wins
	res := r.db.WithContext(ctx).
		Model(&models.AgentPurchase{}).
		Where("id IN ? AND status = ?", ids, enums.PurchaseStatusFundDisbursed).
		Update("status", enums.PurchaseStatusExpired)
	if res.Error != nil {
		return nil, res.Error
	}

	// Report only the rows the guarded update actually flipped. A delivery
	// claim that raced the sweep keeps its purchase out of the expiry alert.
	var expired []models.AgentPurchase
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, enums.PurchaseStatusExpired).
		Find(&expired).Error; err != nil {
		return nil, err
	}
	return expired, nil
}
