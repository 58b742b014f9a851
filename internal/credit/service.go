package credit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/scoring"
	"github.com/joinamana/amana-backend/pkg/config"
	"github.com/joinamana/amana-backend/pkg/db/models"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
)

// Service is the single mutation path for the retailer credit ledger. Debt is
// recognized and released only through it; profile edits never touch these
// fields.
type Service interface {
	// Available returns creditLimit - usedCredit from a plain read. Callers
	// using it before a later transition must treat the answer as advisory
	// and re-verify via Recognize.
	Available(ctx context.Context, retailerID uuid.UUID) (float64, error)
	// Recognize increases usedCredit inside the caller's transaction. It
	// re-reads the row under lock and fails closed when the invariant would
	// break, attaching required/available amounts.
	Recognize(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, amount float64) error
	// Release decreases usedCredit, floored at zero.
	Release(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, amount float64) error
	// ApplyScorecard recomputes limit, tier and markup from the given score
	// and persists them. Called at verification approval and after
	// qualifying repayments, never on read.
	ApplyScorecard(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, score int) error
	// GrowTrust applies repayment trust growth when the paid amount
	// qualifies. It returns the retailer's scorecard as of this payment and
	// whether it changed.
	GrowTrust(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, amountPaid float64) (*models.User, bool, error)
}

type service struct {
	repo Repository
	cfg  config.CreditConfig
}

// NewService wires a credit service with the provided repository.
func NewService(repo Repository, cfg config.CreditConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("credit repository required")
	}
	return &service{repo: repo, cfg: cfg}, nil
}

func (s *service) Available(ctx context.Context, retailerID uuid.UUID) (float64, error) {
	if retailerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "retailer id required")
	}
	retailer, err := s.repo.FindRetailer(ctx, retailerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "retailer not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load retailer")
	}
	available := retailer.CreditLimit - retailer.UsedCredit
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (s *service) Recognize(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, amount float64) error {
	if retailerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "retailer id required")
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	retailer, err := repo.FindRetailerForUpdate(ctx, retailerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "retailer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load retailer for update")
	}

	available := retailer.CreditLimit - retailer.UsedCredit
	if amount > available {
		return pkgerrors.New(pkgerrors.CodeInsufficientCredit, "credit limit exceeded").
			WithDetails(map[string]any{"required": amount, "available": available})
	}

	if err := repo.UpdateUsedCredit(ctx, retailerID, retailer.UsedCredit+amount); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update used credit")
	}
	return nil
}

func (s *service) Release(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, amount float64) error {
	if retailerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "retailer id required")
	}
	if amount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}

	repo := s.repo.WithTx(tx)
	retailer, err := repo.FindRetailerForUpdate(ctx, retailerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "retailer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load retailer for update")
	}

	remaining := retailer.UsedCredit - amount
	if remaining < 0 {
		remaining = 0
	}
	if err := repo.UpdateUsedCredit(ctx, retailerID, remaining); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update used credit")
	}
	return nil
}

func (s *service) ApplyScorecard(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, score int) error {
	if retailerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "retailer id required")
	}

	repo := s.repo.WithTx(tx)
	retailer, err := repo.FindRetailerForUpdate(ctx, retailerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "retailer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load retailer for update")
	}

	retailer.TrustScore = score
	retailer.CreditLimit = scoring.DetermineCreditLimit(score)
	retailer.Tier = scoring.DetermineTier(score)
	retailer.MarkupRate = scoring.DetermineMarkup(score, s.cfg.OrderDueDays)

	if err := repo.UpdateScorecard(ctx, retailer); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist scorecard")
	}
	return nil
}

func (s *service) GrowTrust(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, amountPaid float64) (*models.User, bool, error) {
	if retailerID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "retailer id required")
	}

	repo := s.repo.WithTx(tx)

	if amountPaid <= s.cfg.GrowthThreshold {
		// small payments reconcile debt but do not build trust; the current
		// scorecard still goes back to the caller for the audit trail
		retailer, err := repo.FindRetailer(ctx, retailerID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "retailer not found")
			}
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load retailer")
		}
		return retailer, false, nil
	}

	retailer, err := repo.FindRetailerForUpdate(ctx, retailerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "retailer not found")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load retailer for update")
	}

	retailer.RepaymentStreak++
	retailer.TotalRepaid += amountPaid
	retailer.TrustScore = scoring.ScoreGrowth(retailer.TrustScore, retailer.RepaymentStreak)
	retailer.CreditLimit = scoring.DetermineCreditLimit(retailer.TrustScore)
	retailer.Tier = scoring.DetermineTier(retailer.TrustScore)
	retailer.MarkupRate = scoring.DetermineMarkup(retailer.TrustScore, s.cfg.OrderDueDays)

	if err := repo.UpdateScorecard(ctx, retailer); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist scorecard")
	}
	return retailer, true, nil
}
