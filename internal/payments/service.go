package payments

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/credit"
	"github.com/joinamana/amana-backend/pkg/config"
	"github.com/joinamana/amana-backend/pkg/db"
	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/enums"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/pagination"
)

// ObligationKind tells which table an obligation row lives in.
type ObligationKind string

const (
	ObligationOrder         ObligationKind = "order"
	ObligationAgentPurchase ObligationKind = "agent_purchase"
)

// Obligation is one unpaid debt item owed by a retailer.
type Obligation struct {
	Kind      ObligationKind
	ID        uuid.UUID
	AmountDue float64
	// DueDate may be nil for debts whose clock has not started; those are
	// settled first.
	DueDate *time.Time
}

// ObligationSource exposes a domain's unpaid debts to reconciliation.
type ObligationSource interface {
	ListUnpaid(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID) ([]Obligation, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, id uuid.UUID, paidAt time.Time) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentInput is a confirmed inbound payment, already verified against the
// gateway.
type PaymentInput struct {
	Reference  string
	RetailerID uuid.UUID
	// PayerID is the account that sent the money. Agents may repay on a
	// retailer's behalf; the debt always belongs to the retailer.
	PayerID uuid.UUID
	Amount  float64
	// Target narrows the payment to one obligation. When it no longer
	// matches, the payment degrades to a plain credit release.
	TargetKind ObligationKind
	TargetID   uuid.UUID
	Channel    string
}

// ReconcileResult reports what a payment settled.
type ReconcileResult struct {
	Reference string
	Amount    float64
	Settled   []Obligation
	Remainder float64
	TrustGrew bool
	// Replayed is set when the reference was already processed; nothing
	// changed on this call.
	Replayed bool
}

// TransactionPage is one cursor page of ledger rows. NextCursor is empty on
// the last page.
type TransactionPage struct {
	Items      []models.Transaction
	NextCursor string
}

// Service reconciles confirmed payments against outstanding debt.
type Service interface {
	ProcessConfirmedPayment(ctx context.Context, input PaymentInput) (*ReconcileResult, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	ListByUserPage(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionPage, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Transaction, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	credit  credit.Service
	sources []ObligationSource
	cfg     config.CreditConfig
}

// NewService wires the reconciliation service. Sources are consulted in order
// when collecting unpaid obligations.
func NewService(
	repo Repository,
	tx txRunner,
	creditSvc credit.Service,
	sources []ObligationSource,
	cfg config.CreditConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if creditSvc == nil {
		return nil, fmt.Errorf("credit service required")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one obligation source required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		credit:  creditSvc,
		sources: sources,
		cfg:     cfg,
	}, nil
}

func (s *service) ProcessConfirmedPayment(ctx context.Context, input PaymentInput) (*ReconcileResult, error) {
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "retailer id required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	var result *ReconcileResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Gateways redeliver webhooks; a seen reference is a successful
		// no-op, never an error.
		if existing, err := repo.FindByReference(ctx, input.Reference); err == nil {
			result = &ReconcileResult{
				Reference: input.Reference,
				Amount:    existing.Amount,
				Replayed:  true,
			}
			return nil
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment reference")
		}

		obligations, err := s.collectObligations(ctx, tx, input.RetailerID)
		if err != nil {
			return err
		}

		if input.TargetID != uuid.Nil {
			obligations = filterTarget(obligations, input.TargetKind, input.TargetID)
		}

		now := time.Now()
		remaining := input.Amount
		settled := make([]Obligation, 0, len(obligations))
		for _, ob := range obligations {
			// No partial settlement: an obligation is either fully covered
			// (within tolerance) or skipped.
			if ob.AmountDue > remaining+s.cfg.ReconcileTolerance {
				continue
			}
			if err := s.markPaid(ctx, tx, ob, now); err != nil {
				return err
			}
			remaining -= ob.AmountDue
			if remaining < 0 {
				remaining = 0
			}
			settled = append(settled, ob)
		}

		// The full payment releases credit even when no obligation matched.
		if err := s.credit.Release(ctx, tx, input.RetailerID, input.Amount); err != nil {
			return err
		}

		retailer, grew, err := s.credit.GrowTrust(ctx, tx, input.RetailerID, input.Amount)
		if err != nil {
			return err
		}

		description := "repayment reconciled"
		if len(settled) == 0 {
			description = "repayment reconciled against credit only"
		}
		if input.PayerID != uuid.Nil && input.PayerID != input.RetailerID {
			description = fmt.Sprintf("%s, paid by agent %s", description, input.PayerID)
		}
		if input.Channel != "" {
			description = fmt.Sprintf("%s via %s", description, input.Channel)
		}
		// the ledger row records where the scorecard landed after this payment
		description = fmt.Sprintf("%s. score %d (%s)", description, retailer.TrustScore, retailer.Tier)
		txn := &models.Transaction{
			ID:          uuid.New(),
			Reference:   input.Reference,
			Type:        enums.TransactionTypeRepayment,
			Amount:      input.Amount,
			UserID:      &input.RetailerID,
			Description: description,
		}
		attachTarget(txn, settled)
		if err := repo.Create(ctx, txn); err != nil {
			if isUniqueViolation(err) {
				// lost the race to a concurrent delivery of the same webhook
				result = &ReconcileResult{Reference: input.Reference, Amount: input.Amount, Replayed: true}
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record repayment")
		}

		result = &ReconcileResult{
			Reference: input.Reference,
			Amount:    input.Amount,
			Settled:   settled,
			Remainder: remaining,
			TrustGrew: grew,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) ListByUserPage(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	txns, err := s.repo.ListByUserPage(ctx, userID, cursor, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	page := &TransactionPage{Items: txns}
	if len(txns) > limit {
		page.Items = txns[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Transaction, error) {
	return s.repo.ListByVendor(ctx, vendorID)
}

func (s *service) collectObligations(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID) ([]Obligation, error) {
	var all []Obligation
	for _, source := range s.sources {
		obs, err := source.ListUnpaid(ctx, tx, retailerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list obligations")
		}
		all = append(all, obs...)
	}
	// oldest debt first; debts without a due date have not started their
	// clock and settle before everything else
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].DueDate, all[j].DueDate
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	return all, nil
}

func (s *service) markPaid(ctx context.Context, tx *gorm.DB, ob Obligation, paidAt time.Time) error {
	for _, source := range s.sources {
		if err := source.MarkPaid(ctx, tx, ob.ID, paidAt); err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark obligation paid")
		}
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "obligation vanished during reconciliation")
}

func filterTarget(obligations []Obligation, kind ObligationKind, id uuid.UUID) []Obligation {
	for _, ob := range obligations {
		if ob.ID == id && (kind == "" || ob.Kind == kind) {
			return []Obligation{ob}
		}
	}
	// target already settled or gone; fall back to credit-only handling
	return nil
}

func attachTarget(txn *models.Transaction, settled []Obligation) {
	if len(settled) != 1 {
		return
	}
	id := settled[0].ID
	switch settled[0].Kind {
	case ObligationOrder:
		txn.OrderID = &id
	case ObligationAgentPurchase:
		txn.AgentPurchaseID = &id
	}
}

func isUniqueViolation(err error) bool {
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	return db.IsUniqueViolation(err, "")
}
