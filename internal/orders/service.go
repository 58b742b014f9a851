package orders

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/internal/credit"
	"github.com/joinamana/amana-backend/internal/payments"
	"github.com/joinamana/amana-backend/internal/products"
	"github.com/joinamana/amana-backend/internal/scoring"
	"github.com/joinamana/amana-backend/pkg/config"
	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/enums"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/security"
)

const pickupCodeDigits = 4

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives the marketplace order state machine.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	VendorReady(ctx context.Context, input VendorReadyInput) (*models.Order, error)
	AgentSettleVendor(ctx context.Context, input AgentSettleInput) (*models.Order, error)
	ConfirmReceived(ctx context.Context, input ConfirmReceivedInput) (*models.Order, error)
	Complete(ctx context.Context, input CompleteInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.Order, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.Order, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	products products.Repository
	credit   credit.Service
	txns     payments.Repository
	accounts accounts.Repository
	cfg      config.CreditConfig
}

// OrderLine is one requested product/quantity pair.
type OrderLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput captures a retailer checkout against a single vendor.
type CreateOrderInput struct {
	RetailerID uuid.UUID
	VendorID   uuid.UUID
	Lines      []OrderLine
}

// VendorReadyInput confirms fulfillment and triggers agent assignment.
type VendorReadyInput struct {
	OrderID  uuid.UUID
	VendorID uuid.UUID
}

// AgentSettleInput is the assigned agent's vendor settlement call.
type AgentSettleInput struct {
	OrderID uuid.UUID
	AgentID uuid.UUID
}

// ConfirmReceivedInput is the retailer's goods-received confirmation.
type ConfirmReceivedInput struct {
	OrderID    uuid.UUID
	RetailerID uuid.UUID
}

// CompleteInput closes an order after goods were received.
type CompleteInput struct {
	OrderID    uuid.UUID
	RetailerID uuid.UUID
}

// CancelInput aborts an order before any money has moved.
type CancelInput struct {
	OrderID    uuid.UUID
	RetailerID uuid.UUID
}

// NewService builds an order service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	productsRepo products.Repository,
	creditSvc credit.Service,
	txnsRepo payments.Repository,
	accountsRepo accounts.Repository,
	cfg config.CreditConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
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
		products: productsRepo,
		credit:   creditSvc,
		txns:     txnsRepo,
		accounts: accountsRepo,
		cfg:      cfg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "retailer id required")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order line required")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil || line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order lines need a product and a positive quantity")
		}
	}

	retailer, err := s.loadRetailer(ctx, input.RetailerID)
	if err != nil {
		return nil, err
	}
	vendor, err := s.loadVendor(ctx, input.VendorID)
	if err != nil {
		return nil, err
	}
	if err := guardSelfDealing(retailer, vendor); err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		prodRepo := s.products.WithTx(tx)

		itemsPrice := decimal.Zero
		items := make([]models.OrderItem, 0, len(input.Lines))
		for _, line := range input.Lines {
			product, err := prodRepo.FindByID(ctx, line.ProductID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if product.VendorID != vendor.ID {
				return pkgerrors.New(pkgerrors.CodeValidation, "product does not belong to vendor")
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "product is not active")
			}
			if product.CountInStock < line.Quantity {
				return insufficientStock(product, line.Quantity)
			}

			itemsPrice = itemsPrice.Add(decimal.NewFromFloat(product.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
			items = append(items, models.OrderItem{
				ID:        uuid.New(),
				ProductID: product.ID,
				Name:      product.Name,
				UnitPrice: product.Price,
				Quantity:  line.Quantity,
			})
		}

		principal := itemsPrice.Round(2).InexactFloat64()
		markupRate := scoring.DetermineMarkup(retailer.TrustScore, s.cfg.OrderDueDays)
		markupAmount := scoring.MarkupAmount(principal, markupRate)
		total := decimal.NewFromFloat(principal).Add(decimal.NewFromFloat(markupAmount)).Round(2).InexactFloat64()

		// Advisory check: real admission control happens again at each
		// later transition against a fresh snapshot.
		available := retailer.CreditLimit - retailer.UsedCredit
		if total > available {
			return pkgerrors.New(pkgerrors.CodeInsufficientCredit, "credit limit exceeded").
				WithDetails(map[string]any{"required": total, "available": available})
		}

		for _, item := range items {
			ok, err := prodRepo.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
					WithDetails(map[string]any{"product_id": item.ProductID, "requested": item.Quantity})
			}
		}

		order = &models.Order{
			ID:           uuid.New(),
			RetailerID:   retailer.ID,
			VendorID:     vendor.ID,
			Status:       enums.OrderStatusPendingVendor,
			ItemsPrice:   principal,
			MarkupRate:   markupRate,
			MarkupAmount: markupAmount,
			TotalPrice:   total,
			Items:        items,
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) VendorReady(ctx context.Context, input VendorReadyInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.VendorID != input.VendorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
	}
	if order.Status != enums.OrderStatusPendingVendor {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be confirmed in current state").
			WithDetails(map[string]any{"status": order.Status})
	}

	// Defense in depth: credit may have been consumed since checkout.
	available, err := s.credit.Available(ctx, order.RetailerID)
	if err != nil {
		return nil, err
	}
	if order.TotalPrice > available {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientCredit, "credit limit exceeded").
			WithDetails(map[string]any{"required": order.TotalPrice, "available": available})
	}

	vendor, err := s.loadVendor(ctx, order.VendorID)
	if err != nil {
		return nil, err
	}
	agent, err := s.pickAgent(ctx, order.RetailerID, vendor)
	if err != nil {
		return nil, err
	}

	code, err := security.GenerateOTP(pickupCodeDigits)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate pickup code")
	}

	due := time.Now().AddDate(0, 0, s.cfg.OrderDueDays)
	order.Status = enums.OrderStatusReadyForPickup
	order.AssignedAgentID = &agent.ID
	order.PickupCode = &code
	order.DueDate = &due

	if err := s.repo.Update(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return order, nil
}

func (s *service) AgentSettleVendor(ctx context.Context, input AgentSettleInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "agent identity missing")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = s.loadOrderWith(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.AssignedAgentID == nil || *order.AssignedAgentID != input.AgentID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned agent may settle the vendor")
		}
		if order.Status != enums.OrderStatusReadyForPickup {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be settled in current state").
				WithDetails(map[string]any{"status": order.Status})
		}

		if err := s.accounts.WithTx(tx).CreditVendorWallet(ctx, order.VendorID, order.ItemsPrice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit vendor wallet")
		}

		txn := &models.Transaction{
			ID:          uuid.New(),
			Reference:   fmt.Sprintf("PAYOUT-%s", uuid.NewString()),
			Type:        enums.TransactionTypeVendorPayout,
			Amount:      order.ItemsPrice,
			VendorID:    &order.VendorID,
			OrderID:     &order.ID,
			Description: "vendor settlement for order pickup",
		}
		if err := s.txns.WithTx(tx).Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record vendor payout")
		}

		now := time.Now()
		order.Status = enums.OrderStatusVendorSettled
		order.VendorSettledAt = &now
		if err := repo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ConfirmReceived(ctx context.Context, input ConfirmReceivedInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "retailer identity missing")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = s.loadOrderWith(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.RetailerID != input.RetailerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to retailer")
		}
		if order.Status != enums.OrderStatusVendorSettled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "receipt cannot be confirmed in current state").
				WithDetails(map[string]any{"status": order.Status})
		}

		// The single point where retailer debt is recognized for an order.
		if err := s.credit.Recognize(ctx, tx, order.RetailerID, order.TotalPrice); err != nil {
			return err
		}

		txn := &models.Transaction{
			ID:          uuid.New(),
			Reference:   fmt.Sprintf("LOAN-%s", uuid.NewString()),
			Type:        enums.TransactionTypeLoanDisbursement,
			Amount:      order.TotalPrice,
			UserID:      &order.RetailerID,
			OrderID:     &order.ID,
			Description: "debt recognized on goods received",
		}
		if err := s.txns.WithTx(tx).Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record loan disbursement")
		}

		now := time.Now()
		order.Status = enums.OrderStatusGoodsReceived
		order.ReceivedAt = &now
		if err := repo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Complete(ctx context.Context, input CompleteInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "retailer identity missing")
	}

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.RetailerID != input.RetailerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to retailer")
	}
	if order.Status != enums.OrderStatusGoodsReceived {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be completed in current state").
			WithDetails(map[string]any{"status": order.Status})
	}

	order.Status = enums.OrderStatusCompleted
	if err := s.repo.Update(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	return order, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "retailer identity missing")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = s.loadOrderWith(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.RetailerID != input.RetailerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to retailer")
		}
		if order.Status != enums.OrderStatusPendingVendor && order.Status != enums.OrderStatusReadyForPickup {
			// Past ready_for_pickup money has moved and cancellation would
			// need a financial reversal.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}

		prodRepo := s.products.WithTx(tx)
		for _, item := range order.Items {
			if err := prodRepo.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
		}

		now := time.Now()
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		if err := repo.Update(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.loadOrder(ctx, id)
}

func (s *service) ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.Order, error) {
	return s.repo.ListByRetailer(ctx, retailerID)
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	return s.repo.ListByVendor(ctx, vendorID)
}

func (s *service) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.Order, error) {
	return s.repo.ListByAgent(ctx, agentID)
}

func (s *service) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.loadOrderWith(ctx, s.repo, id)
}

func (s *service) loadOrderWith(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
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

func (s *service) loadVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	vendor, err := s.accounts.FindVendor(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	if !vendor.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor is suspended")
	}
	return vendor, nil
}

func (s *service) pickAgent(ctx context.Context, retailerID uuid.UUID, vendor *models.Vendor) (*models.User, error) {
	agents, err := s.accounts.ListAgents(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agents")
	}

	eligible := make([]models.User, 0, len(agents))
	for _, agent := range agents {
		if agent.ID == retailerID {
			continue
		}
		if agent.Email == vendor.Email {
			continue
		}
		if agent.LinkedVendorID != nil && *agent.LinkedVendorID == vendor.ID {
			continue
		}
		eligible = append(eligible, agent)
	}
	if len(eligible) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no eligible agent available for settlement")
	}

	picked := eligible[rand.Intn(len(eligible))]
	return &picked, nil
}

func guardSelfDealing(retailer *models.User, vendor *models.Vendor) error {
	selfDealing := retailer.Email == vendor.Email ||
		(retailer.LinkedVendorID != nil && *retailer.LinkedVendorID == vendor.ID) ||
		(vendor.LinkedUserID != nil && *vendor.LinkedUserID == retailer.ID)
	if selfDealing {
		return pkgerrors.New(pkgerrors.CodeForbidden, "retailer may not buy from their own vendor profile")
	}
	return nil
}

func insufficientStock(product *models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{
			"product_id": product.ID,
			"requested":  requested,
			"available":  product.CountInStock,
		})
}
