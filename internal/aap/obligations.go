package aap

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/payments"
	"github.com/joinamana/amana-backend/pkg/enums"
)

// ObligationSource exposes unpaid agent purchases to payment reconciliation.
type ObligationSource struct {
	repo Repository
}

// NewObligationSource adapts the purchase repository for reconciliation.
func NewObligationSource(repo Repository) *ObligationSource {
	return &ObligationSource{repo: repo}
}

func (s *ObligationSource) ListUnpaid(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID) ([]payments.Obligation, error) {
	purchases, err := s.repo.WithTx(tx).ListUnpaidByRetailer(ctx, retailerID)
	if err != nil {
		return nil, err
	}
	obligations := make([]payments.Obligation, 0, len(purchases))
	for _, purchase := range purchases {
		obligations = append(obligations, payments.Obligation{
			Kind:      payments.ObligationAgentPurchase,
			ID:        purchase.ID,
			AmountDue: purchase.TotalCost,
			DueDate:   purchase.DueDate,
		})
	}
	return obligations, nil
}

func (s *ObligationSource) MarkPaid(ctx context.Context, tx *gorm.DB, id uuid.UUID, paidAt time.Time) error {
	repo := s.repo.WithTx(tx)
	purchase, err := repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if purchase.IsPaid || purchase.Status != enums.PurchaseStatusReceived {
		return gorm.ErrRecordNotFound
	}

	purchase.IsPaid = true
	purchase.RepaidAt = &paidAt
	purchase.Status = enums.PurchaseStatusCompleted
	return repo.Update(ctx, purchase)
}
