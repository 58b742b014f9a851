package withdrawals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/internal/payments"
	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/enums"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service handles vendor wallet withdrawals. Funds leave the wallet only when
// an admin confirms the request.
type Service interface {
	Request(ctx context.Context, vendorID uuid.UUID, amount float64) (*models.WithdrawalRequest, error)
	Confirm(ctx context.Context, requestID uuid.UUID) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, requestID uuid.UUID, reason string) (*models.WithdrawalRequest, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.WithdrawalRequest, error)
	ListPending(ctx context.Context) ([]models.WithdrawalRequest, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	accounts accounts.Repository
	txns     payments.Repository
}

// NewService wires the withdrawal service.
func NewService(
	repo Repository,
	tx txRunner,
	accountsRepo accounts.Repository,
	txnsRepo payments.Repository,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("withdrawals repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if accountsRepo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if txnsRepo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	return &service{repo: repo, tx: tx, accounts: accountsRepo, txns: txnsRepo}, nil
}

func (s *service) Request(ctx context.Context, vendorID uuid.UUID, amount float64) (*models.WithdrawalRequest, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "vendor identity missing")
	}
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	vendor, err := s.accounts.FindVendor(ctx, vendorID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	if vendor.BankName == nil || vendor.AccountNumber == nil || vendor.AccountName == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank details must be on file before withdrawing")
	}
	if amount > vendor.WalletBalance {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds wallet balance").
			WithDetails(map[string]any{"requested": amount, "balance": vendor.WalletBalance})
	}

	pending, err := s.repo.HasPending(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending withdrawals")
	}
	if pending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a withdrawal is already pending")
	}

	// Bank details are snapshotted so later profile edits cannot redirect an
	// approved payout.
	request := &models.WithdrawalRequest{
		ID:            uuid.New(),
		VendorID:      vendorID,
		Amount:        amount,
		Status:        enums.WithdrawalStatusPending,
		BankName:      *vendor.BankName,
		AccountNumber: *vendor.AccountNumber,
		AccountName:   *vendor.AccountName,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create withdrawal request")
	}
	return request, nil
}

func (s *service) Confirm(ctx context.Context, requestID uuid.UUID) (*models.WithdrawalRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}

	var request *models.WithdrawalRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		request, err = s.loadRequest(ctx, repo, requestID)
		if err != nil {
			return err
		}
		if request.Status != enums.WithdrawalStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "request is already resolved").
				WithDetails(map[string]any{"status": request.Status})
		}

		// Fails closed: the guarded debit rejects if the balance dropped
		// since the request was made.
		ok, err := s.accounts.WithTx(tx).DebitVendorWallet(ctx, request.VendorID, request.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit vendor wallet")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "wallet balance is insufficient")
		}

		txn := &models.Transaction{
			ID:          uuid.New(),
			Reference:   fmt.Sprintf("WDR-%s", uuid.NewString()),
			Type:        enums.TransactionTypeVendorPayout,
			Amount:      request.Amount,
			VendorID:    &request.VendorID,
			Description: "vendor wallet withdrawal",
		}
		if err := s.txns.WithTx(tx).Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record withdrawal")
		}

		now := time.Now()
		request.Status = enums.WithdrawalStatusConfirmed
		request.ResolvedAt = &now
		if err := repo.Update(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) Reject(ctx context.Context, requestID uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reject reason required")
	}

	request, err := s.loadRequest(ctx, s.repo, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != enums.WithdrawalStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request is already resolved").
			WithDetails(map[string]any{"status": request.Status})
	}

	now := time.Now()
	request.Status = enums.WithdrawalStatusRejected
	request.RejectReason = &reason
	request.ResolvedAt = &now
	if err := s.repo.Update(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request")
	}
	return request, nil
}

func (s *service) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.WithdrawalRequest, error) {
	return s.repo.ListByVendor(ctx, vendorID)
}

func (s *service) ListPending(ctx context.Context) ([]models.WithdrawalRequest, error) {
	return s.repo.ListPending(ctx)
}

func (s *service) loadRequest(ctx context.Context, repo Repository, id uuid.UUID) (*models.WithdrawalRequest, error) {
	request, err := repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load withdrawal request")
	}
	return request, nil
}
