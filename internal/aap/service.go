package aap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/internal/credit"
	"github.com/joinamana/amana-backend/internal/payments"
	"github.com/joinamana/amana-backend/internal/scoring"
	"github.com/joinamana/amana-backend/pkg/config"
	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/enums"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/security"
)

const deliveryCodeDigits = 6

// allowedTerms are the repayment terms an agent may offer a retailer.
var allowedTerms = []int{3, 7, 14}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the agent-assisted purchase state machine.
type Service interface {
	CreateDraft(ctx context.Context, input CreateDraftInput) (*models.AgentPurchase, error)
	SubmitToRetailer(ctx context.Context, input SubmitInput) (*models.AgentPurchase, error)
	RetailerConfirm(ctx context.Context, input RetailerActionInput) (*models.AgentPurchase, error)
	AdminApprove(ctx context.Context, input AdminApproveInput) (*models.AgentPurchase, error)
	MarkDelivered(ctx context.Context, input MarkDeliveredInput) (*models.AgentPurchase, error)
	ConfirmReceipt(ctx context.Context, input ConfirmReceiptInput) (*models.AgentPurchase, error)
	Complete(ctx context.Context, input RetailerActionInput) (*models.AgentPurchase, error)
	Decline(ctx context.Context, input DeclineInput) (*models.AgentPurchase, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AgentPurchase, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.AgentPurchase, error)
	ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.AgentPurchase, error)
	ListPendingApproval(ctx context.Context) ([]models.AgentPurchase, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	credit   credit.Service
	txns     payments.Repository
	accounts accounts.Repository
	cfg      config.CreditConfig
}

// CreateDraftInput is the agent's sourcing record before a retailer is
// attached.
type CreateDraftInput struct {
	AgentID       uuid.UUID
	Description   string
	VendorName    string
	PurchasePrice float64
	PhotoURLs     []string
}

// SubmitInput attaches a retailer and term to a draft, pricing it against the
// retailer's scorecard.
type SubmitInput struct {
	PurchaseID uuid.UUID
	AgentID    uuid.UUID
	RetailerID uuid.UUID
	TermDays   int
}

// RetailerActionInput identifies a retailer acting on their own purchase.
type RetailerActionInput struct {
	PurchaseID uuid.UUID
	RetailerID uuid.UUID
}

// AdminApproveInput releases funds to the agent.
type AdminApproveInput struct {
	PurchaseID uuid.UUID
	Method     enums.DisbursementMethod
	Reference  string
}

// MarkDeliveredInput is the agent's delivery claim.
type MarkDeliveredInput struct {
	PurchaseID uuid.UUID
	AgentID    uuid.UUID
}

// ConfirmReceiptInput is the retailer's code-gated goods confirmation.
type ConfirmReceiptInput struct {
	PurchaseID uuid.UUID
	RetailerID uuid.UUID
	Code       string
}

// DeclineInput aborts a purchase before debt is recognized.
type DeclineInput struct {
	PurchaseID uuid.UUID
	ActorID    uuid.UUID
	ActorRole  enums.Role
	Reason     string
}

// NewService builds a purchase service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	creditSvc credit.Service,
	txnsRepo payments.Repository,
	accountsRepo accounts.Repository,
	cfg config.CreditConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if creditSvc == nil {
		return nil, fmt.Errorf("credit service required")
	}
	if txnsRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if accountsRepo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		credit:   creditSvc,
		txns:     txnsRepo,
		accounts: accountsRepo,
		cfg:      cfg,
	}, nil
}

func (s *service) CreateDraft(ctx context.Context, input CreateDraftInput) (*models.AgentPurchase, error) {
	if input.AgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "agent identity missing")
	}
	if input.Description == "" || input.VendorName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description and vendor name required")
	}
	if input.PurchasePrice <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase price must be positive")
	}
	if len(input.PhotoURLs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one photo of the goods is required")
	}

	if _, err := s.loadAgent(ctx, input.AgentID); err != nil {
		return nil, err
	}

	purchase := &models.AgentPurchase{
		ID:            uuid.New(),
		AgentID:       input.AgentID,
		Status:        enums.PurchaseStatusDraft,
		Description:   input.Description,
		VendorName:    input.VendorName,
		PurchasePrice: input.PurchasePrice,
		PhotoURLs:     input.PhotoURLs,
	}
	if err := s.repo.Create(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase")
	}
	return purchase, nil
}

func (s *service) SubmitToRetailer(ctx context.Context, input SubmitInput) (*models.AgentPurchase, error) {
	if input.PurchaseID == uuid.Nil || input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase and retailer ids required")
	}
	if input.AgentID == input.RetailerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "agent may not source for themselves")
	}
	if !termAllowed(input.TermDays) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "term must be 3, 7 or 14 days").
			WithDetails(map[string]any{"term_days": input.TermDays})
	}

	purchase, err := s.loadPurchase(ctx, s.repo, input.PurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.AgentID != input.AgentID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "purchase does not belong to agent")
	}
	if purchase.Status != enums.PurchaseStatusDraft {
		return nil, stateConflict("purchase cannot be submitted in current state", purchase.Status)
	}

	retailer, err := s.loadRetailer(ctx, input.RetailerID)
	if err != nil {
		return nil, err
	}

	markupRate := scoring.DetermineMarkup(retailer.TrustScore, input.TermDays)
	markupAmount := scoring.MarkupAmount(purchase.PurchasePrice, markupRate)
	totalCost := decimal.NewFromFloat(purchase.PurchasePrice).
		Add(decimal.NewFromFloat(markupAmount)).Round(2).InexactFloat64()

	available, err := s.credit.Available(ctx, retailer.ID)
	if err != nil {
		return nil, err
	}
	if totalCost > available {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientCredit, "credit limit exceeded").
			WithDetails(map[string]any{"required": totalCost, "available": available})
	}

	purchase.RetailerID = &retailer.ID
	purchase.TermDays = input.TermDays
	purchase.MarkupRate = markupRate
	purchase.MarkupAmount = markupAmount
	purchase.TotalCost = totalCost
	purchase.Status = enums.PurchaseStatusAwaitingRetailer

	if err := s.repo.Update(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase")
	}
	return purchase, nil
}

func (s *service) RetailerConfirm(ctx context.Context, input RetailerActionInput) (*models.AgentPurchase, error) {
	purchase, err := s.authorizeRetailer(ctx, input)
	if err != nil {
		return nil, err
	}
	if purchase.Status != enums.PurchaseStatusAwaitingRetailer {
		return nil, stateConflict("purchase cannot be confirmed in current state", purchase.Status)
	}

	purchase.Status = enums.PurchaseStatusPendingAdminApproval
	if err := s.repo.Update(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase")
	}
	return purchase, nil
}

func (s *service) AdminApprove(ctx context.Context, input AdminApproveInput) (*models.AgentPurchase, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid disbursement method")
	}

	var purchase *models.AgentPurchase
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		purchase, err = s.loadPurchase(ctx, repo, input.PurchaseID)
		if err != nil {
			return err
		}
		if purchase.Status != enums.PurchaseStatusPendingAdminApproval {
			return stateConflict("purchase cannot be approved in current state", purchase.Status)
		}
		if purchase.RetailerID == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase has no retailer attached")
		}

		// Re-verify: credit may have been consumed since the retailer
		// confirmed.
		available, err := s.credit.Available(ctx, *purchase.RetailerID)
		if err != nil {
			return err
		}
		if purchase.TotalCost > available {
			return pkgerrors.New(pkgerrors.CodeInsufficientCredit, "credit limit exceeded").
				WithDetails(map[string]any{"required": purchase.TotalCost, "available": available})
		}

		txn := &models.Transaction{
			ID:              uuid.New(),
			Reference:       fmt.Sprintf("DISB-%s", uuid.NewString()),
			Type:            enums.TransactionTypeAgentFundDisbursement,
			Amount:          purchase.PurchasePrice,
			UserID:          purchase.RetailerID,
			AgentPurchaseID: &purchase.ID,
			Description:     "funds released to agent for sourcing",
		}
		if err := s.txns.WithTx(tx).Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record fund disbursement")
		}

		now := time.Now()
		expires := now.Add(s.cfg.DisbursementWindow)
		method := input.Method
		purchase.Status = enums.PurchaseStatusFundDisbursed
		purchase.DisbursedAmount = purchase.PurchasePrice
		purchase.DisbursementMethod = &method
		if input.Reference != "" {
			ref := input.Reference
			purchase.DisbursementReference = &ref
		}
		purchase.DisbursedAt = &now
		purchase.ExpiresAt = &expires

		if err := repo.Update(ctx, purchase); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func (s *service) MarkDelivered(ctx context.Context, input MarkDeliveredInput) (*models.AgentPurchase, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if input.AgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "agent identity missing")
	}

	purchase, err := s.loadPurchase(ctx, s.repo, input.PurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.AgentID != input.AgentID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "purchase does not belong to agent")
	}
	if purchase.Status != enums.PurchaseStatusFundDisbursed {
		return nil, stateConflict("delivery cannot be recorded in current state", purchase.Status)
	}

	// A late claim expires the purchase rather than silently extending the
	// window.
	if purchase.ExpiresAt != nil && time.Now().After(*purchase.ExpiresAt) {
		purchase.Status = enums.PurchaseStatusExpired
		if err := s.repo.Update(ctx, purchase); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire purchase")
		}
		return nil, pkgerrors.New(pkgerrors.CodeExpired, "delivery window has closed").
			WithDetails(map[string]any{"expired_at": *purchase.ExpiresAt})
	}

	code, err := security.GenerateOTP(deliveryCodeDigits)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate delivery code")
	}

	now := time.Now()
	purchase.Status = enums.PurchaseStatusDelivered
	purchase.PickupCode = &code
	purchase.DeliveredAt = &now

	if err := s.repo.Update(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase")
	}
	return purchase, nil
}

func (s *service) ConfirmReceipt(ctx context.Context, input ConfirmReceiptInput) (*models.AgentPurchase, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "retailer identity missing")
	}

	var purchase *models.AgentPurchase
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		purchase, err = s.loadPurchase(ctx, repo, input.PurchaseID)
		if err != nil {
			return err
		}
		if purchase.RetailerID == nil || *purchase.RetailerID != input.RetailerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "purchase does not belong to retailer")
		}
		if purchase.Status != enums.PurchaseStatusDelivered {
			return stateConflict("receipt cannot be confirmed in current state", purchase.Status)
		}
		if purchase.PickupCode == nil || !security.VerifyOTP(input.Code, *purchase.PickupCode) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "delivery code does not match")
		}

		// Debt is recognized only now, once the retailer holds the goods.
		if err := s.credit.Recognize(ctx, tx, input.RetailerID, purchase.TotalCost); err != nil {
			return err
		}

		txn := &models.Transaction{
			ID:              uuid.New(),
			Reference:       fmt.Sprintf("LOAN-%s", uuid.NewString()),
			Type:            enums.TransactionTypeLoanDisbursement,
			Amount:          purchase.TotalCost,
			UserID:          purchase.RetailerID,
			AgentPurchaseID: &purchase.ID,
			Description:     "debt recognized on purchase receipt",
		}
		if err := s.txns.WithTx(tx).Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record loan disbursement")
		}

		now := time.Now()
		due := now.AddDate(0, 0, purchase.TermDays)
		purchase.Status = enums.PurchaseStatusReceived
		purchase.ReceivedAt = &now
		purchase.DueDate = &due

		if err := repo.Update(ctx, purchase); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

func (s *service) Complete(ctx context.Context, input RetailerActionInput) (*models.AgentPurchase, error) {
	purchase, err := s.authorizeRetailer(ctx, input)
	if err != nil {
		return nil, err
	}
	if purchase.Status != enums.PurchaseStatusReceived {
		return nil, stateConflict("purchase cannot be completed in current state", purchase.Status)
	}

	purchase.Status = enums.PurchaseStatusCompleted
	if err := s.repo.Update(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase")
	}
	return purchase, nil
}

func (s *service) Decline(ctx context.Context, input DeclineInput) (*models.AgentPurchase, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decline reason required")
	}

	purchase, err := s.loadPurchase(ctx, s.repo, input.PurchaseID)
	if err != nil {
		return nil, err
	}

	// Once the retailer holds the goods the debt stands; before that the
	// purchase can still be aborted.
	switch purchase.Status {
	case enums.PurchaseStatusReceived, enums.PurchaseStatusCompleted,
		enums.PurchaseStatusDeclined, enums.PurchaseStatusExpired:
		return nil, stateConflict("purchase can no longer be declined", purchase.Status)
	}

	// The purchase's retailer or an admin may decline at any point before
	// receipt. The sourcing agent may only withdraw while the purchase is
	// still theirs to shape.
	allowed := input.ActorRole == enums.RoleAdmin ||
		(purchase.RetailerID != nil && *purchase.RetailerID == input.ActorID)
	if !allowed && purchase.AgentID == input.ActorID {
		allowed = purchase.Status == enums.PurchaseStatusDraft ||
			purchase.Status == enums.PurchaseStatusAwaitingRetailer
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this purchase")
	}

	reason := input.Reason
	purchase.Status = enums.PurchaseStatusDeclined
	purchase.DeclineReason = &reason

	if err := s.repo.Update(ctx, purchase); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update purchase")
	}
	return purchase, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.AgentPurchase, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	return s.loadPurchase(ctx, s.repo, id)
}

func (s *service) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.AgentPurchase, error) {
	return s.repo.ListByAgent(ctx, agentID)
}

func (s *service) ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.AgentPurchase, error) {
	return s.repo.ListByRetailer(ctx, retailerID)
}

func (s *service) ListPendingApproval(ctx context.Context) ([]models.AgentPurchase, error) {
	return s.repo.ListPendingApproval(ctx)
}

func (s *service) authorizeRetailer(ctx context.Context, input RetailerActionInput) (*models.AgentPurchase, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "retailer identity missing")
	}
	purchase, err := s.loadPurchase(ctx, s.repo, input.PurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.RetailerID == nil || *purchase.RetailerID != input.RetailerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "purchase does not belong to retailer")
	}
	return purchase, nil
}

func (s *service) loadPurchase(ctx context.Context, repo Repository, id uuid.UUID) (*models.AgentPurchase, error) {
	purchase, err := repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	return purchase, nil
}

func (s *service) loadRetailer(ctx context.Context, id uuid.UUID) (*models.User, error) {
	retailer, err := s.accounts.FindUser(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "retailer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load retailer")
	}
	if !retailer.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is suspended")
	}
	if retailer.Verification != enums.VerificationStatusVerified {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is not verified")
	}
	return retailer, nil
}

func (s *service) loadAgent(ctx context.Context, id uuid.UUID) (*models.User, error) {
	agent, err := s.accounts.FindUser(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agent")
	}
	if !agent.IsAgent {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "user is not an agent")
	}
	if !agent.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is suspended")
	}
	return agent, nil
}

func termAllowed(days int) bool {
	for _, t := range allowedTerms {
		if t == days {
			return true
		}
	}
	return false
}

func stateConflict(message string, status enums.PurchaseStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"status": status})
}
