package credit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/joinamana/amana-backend/pkg/db/models"
)

// Repository manages the credit ledger fields on retailer rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRetailer(ctx context.Context, id uuid.UUID) (*models.User, error)
	// FindRetailerForUpdate takes a row lock so a credit check and the write
	// that follows it see the same snapshot.
	FindRetailerForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateUsedCredit(ctx context.Context, id uuid.UUID, usedCredit float64) error
	UpdateScorecard(ctx context.Context, user *models.User) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindRetailer(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindRetailerForUpdate(ctx context.Context, id uuid.UUID) (*models.User, error) {
	q := r.db.WithContext(ctx)
	// sqlite (tests) has no row locks
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var user models.User
	if err := q.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) UpdateUsedCredit(ctx context.Context, id uuid.UUID, usedCredit float64) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("used_credit", usedCredit).Error
}

func (r *repository) UpdateScorecard(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"trust_score":      user.TrustScore,
			"tier":             user.Tier,
			"credit_limit":     user.CreditLimit,
			"markup_rate":      user.MarkupRate,
			"repayment_streak": user.RepaymentStreak,
			"total_repaid":     user.TotalRepaid,
		}).Error
}
