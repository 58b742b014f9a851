package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/payments"
	"github.com/joinamana/amana-backend/pkg/enums"
)

// ObligationSource exposes unpaid orders to payment reconciliation.
type ObligationSource struct {
	repo Repository
}

// NewObligationSource adapts the order repository for reconciliation.
func NewObligationSource(repo Repository) *ObligationSource {
	return &ObligationSource{repo: repo}
}

func (s *ObligationSource) ListUnpaid(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID) ([]payments.Obligation, error) {
	orders, err := s.repo.WithTx(tx).ListUnpaidByRetailer(ctx, retailerID)
	if err != nil {
		return nil, err
	}
	obligations := make([]payments.Obligation, 0, len(orders))
	for _, order := range orders {
		obligations = append(obligations, payments.Obligation{
			Kind:      payments.ObligationOrder,
			ID:        order.ID,
			AmountDue: order.TotalPrice,
			DueDate:   order.DueDate,
		})
	}
	return obligations, nil
}

func (s *ObligationSource) MarkPaid(ctx context.Context, tx *gorm.DB, id uuid.UUID, paidAt time.Time) error {
	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if order.IsPaid {
		return gorm.ErrRecordNotFound
	}

	order.IsPaid = true
	order.RepaidAt = &paidAt
	// an order paid before the retailer confirms goods keeps its place in
	// the delivery flow
	switch order.Status {
	case enums.OrderStatusGoodsReceived, enums.OrderStatusCompleted, enums.OrderStatusDefaulted:
		order.Status = enums.OrderStatusRepaid
	}
	return repo.Update(ctx, order)
}
