package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/enums"
)

// Repository manages marketplace order rows. Orders are never deleted; every
// state change leaves the row in place for audit.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.Order, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.Order, error)
	// ListUnpaidByRetailer returns orders eligible for payment
	// reconciliation, oldest due first.
	ListUnpaidByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.Order, error)
	// MarkDefaulted flips unpaid obligation-bearing orders past their due
	// date to defaulted. The guarded update makes the sweep idempotent.
	MarkDefaulted(ctx context.Context, now time.Time) (int64, error)
}

// obligationStatuses are the states in which an order represents an unpaid
// obligation for reconciliation purposes.
var obligationStatuses = []enums.OrderStatus{
	enums.OrderStatusReadyForPickup,
	enums.OrderStatusGoodsReceived,
	enums.OrderStatusCompleted,
	enums.OrderStatusDefaulted,
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) Update(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "retailer_id = ?", retailerID)
}

func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "vendor_id = ?", vendorID)
}

func (r *repository) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "assigned_agent_id = ?", agentID)
}

func (r *repository) list(ctx context.Context, query string, arg any) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where(query, arg).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListUnpaidByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Where("retailer_id = ? AND is_paid = ? AND status IN ?", retailerID, false, obligationStatuses).
		Order("due_date ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) MarkDefaulted(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("is_paid = ? AND due_date IS NOT NULL AND due_date < ? AND status IN ?",
			false, now, []enums.OrderStatus{enums.OrderStatusGoodsReceived, enums.OrderStatusCompleted}).
		Update("status", enums.OrderStatusDefaulted)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
