package withdrawals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/internal/payments"
	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/enums"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/pagination"
)

type fakeWithdrawalRepo struct {
	requests map[uuid.UUID]*models.WithdrawalRequest
}

func newFakeWithdrawalRepo() *fakeWithdrawalRepo {
	return &fakeWithdrawalRepo{requests: make(map[uuid.UUID]*models.WithdrawalRequest)}
}

func (r *fakeWithdrawalRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *fakeWithdrawalRepo) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	copied := *request
	r.requests[request.ID] = &copied
	return nil
}

func (r *fakeWithdrawalRepo) Update(ctx context.Context, request *models.WithdrawalRequest) error {
	if _, ok := r.requests[request.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *request
	r.requests[request.ID] = &copied
	return nil
}

func (r *fakeWithdrawalRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *fakeWithdrawalRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.WithdrawalRequest, error) {
	return nil, nil
}

func (r *fakeWithdrawalRepo) ListPending(ctx context.Context) ([]models.WithdrawalRequest, error) {
	return nil, nil
}

func (r *fakeWithdrawalRepo) HasPending(ctx context.Context, vendorID uuid.UUID) (bool, error) {
	for _, req := range r.requests {
		if req.VendorID == vendorID && req.Status == enums.WithdrawalStatusPending {
			return true, nil
		}
	}
	return false, nil
}

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakeAccountsRepo struct {
	vendors map[uuid.UUID]*models.Vendor
}

func (r *fakeAccountsRepo) WithTx(tx *gorm.DB) accounts.Repository { return r }

func (r *fakeAccountsRepo) CreateUser(ctx context.Context, user *models.User) error { return nil }

func (r *fakeAccountsRepo) UpdateUser(ctx context.Context, user *models.User) error { return nil }

func (r *fakeAccountsRepo) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAccountsRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAccountsRepo) ListAgents(ctx context.Context) ([]models.User, error) { return nil, nil }

func (r *fakeAccountsRepo) CreateVendor(ctx context.Context, vendor *models.Vendor) error { return nil }

func (r *fakeAccountsRepo) UpdateVendor(ctx context.Context, vendor *models.Vendor) error { return nil }

func (r *fakeAccountsRepo) FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	v, ok := r.vendors[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *fakeAccountsRepo) FindVendorByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAccountsRepo) CreditVendorWallet(ctx context.Context, vendorID uuid.UUID, amount float64) error {
	return nil
}

func (r *fakeAccountsRepo) DebitVendorWallet(ctx context.Context, vendorID uuid.UUID, amount float64) (bool, error) {
	v, ok := r.vendors[vendorID]
	if !ok || v.WalletBalance < amount {
		return false, nil
	}
	v.WalletBalance -= amount
	return true, nil
}

func (r *fakeAccountsRepo) CreditUserWallet(ctx context.Context, userID uuid.UUID, amount float64) error {
	return nil
}

type fakeTxnRepo struct {
	created []*models.Transaction
}

func (r *fakeTxnRepo) WithTx(tx *gorm.DB) payments.Repository { return r }

func (r *fakeTxnRepo) Create(ctx context.Context, txn *models.Transaction) error {
	r.created = append(r.created, txn)
	return nil
}

func (r *fakeTxnRepo) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeTxnRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	return nil, nil
}

func (r *fakeTxnRepo) ListByUserPage(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Transaction, error) {
	return nil, nil
}

func (r *fakeTxnRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Transaction, error) {
	return nil, nil
}

func newWithdrawalFixture(t *testing.T, vendor *models.Vendor) (Service, *fakeWithdrawalRepo, *fakeAccountsRepo, *fakeTxnRepo) {
	t.Helper()
	repo := newFakeWithdrawalRepo()
	accts := &fakeAccountsRepo{vendors: map[uuid.UUID]*models.Vendor{vendor.ID: vendor}}
	txns := &fakeTxnRepo{}
	svc, err := NewService(repo, fakeTx{}, accts, txns)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, accts, txns
}

func bankVendor(balance float64) *models.Vendor {
	bank := "GTBank"
	number := "0123456789"
	name := "Okoro Supplies Ltd"
	return &models.Vendor{
		ID:            uuid.New(),
		Email:         "vendor@example.com",
		IsActive:      true,
		WalletBalance: balance,
		BankName:      &bank,
		AccountNumber: &number,
		AccountName:   &name,
	}
}

func TestRequestSnapshotsBankDetails(t *testing.T) {
	vendor := bankVendor(10000)
	svc, _, accts, _ := newWithdrawalFixture(t, vendor)

	request, err := svc.Request(context.Background(), vendor.ID, 4000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.Status != enums.WithdrawalStatusPending {
		t.Fatalf("expected pending, got %s", request.Status)
	}
	if request.BankName != "GTBank" || request.AccountNumber != "0123456789" {
		t.Fatalf("expected bank snapshot, got %+v", request)
	}

	// later profile edits must not affect the pending request
	other := "Zenith"
	accts.vendors[vendor.ID].BankName = &other
	if request.BankName != "GTBank" {
		t.Fatal("snapshot must be immutable")
	}
}

func TestRequestRejectsSecondPending(t *testing.T) {
	vendor := bankVendor(10000)
	svc, _, _, _ := newWithdrawalFixture(t, vendor)

	if _, err := svc.Request(context.Background(), vendor.ID, 1000); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err := svc.Request(context.Background(), vendor.ID, 500)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRequestRejectsOverBalance(t *testing.T) {
	vendor := bankVendor(100)
	svc, _, _, _ := newWithdrawalFixture(t, vendor)

	_, err := svc.Request(context.Background(), vendor.ID, 500)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequestRequiresBankOnFile(t *testing.T) {
	vendor := bankVendor(10000)
	vendor.BankName = nil
	svc, _, _, _ := newWithdrawalFixture(t, vendor)

	_, err := svc.Request(context.Background(), vendor.ID, 500)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfirmDebitsWalletAndLogs(t *testing.T) {
	vendor := bankVendor(10000)
	svc, _, accts, txns := newWithdrawalFixture(t, vendor)

	request, err := svc.Request(context.Background(), vendor.ID, 4000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	confirmed, err := svc.Confirm(context.Background(), request.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed.Status != enums.WithdrawalStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}
	if got := accts.vendors[vendor.ID].WalletBalance; got != 6000 {
		t.Fatalf("expected balance 6000, got %v", got)
	}
	if len(txns.created) != 1 || txns.created[0].Type != enums.TransactionTypeVendorPayout {
		t.Fatalf("expected one vendor_payout transaction, got %+v", txns.created)
	}
}

func TestConfirmFailsClosedOnDrainedWallet(t *testing.T) {
	vendor := bankVendor(10000)
	svc, repo, accts, txns := newWithdrawalFixture(t, vendor)

	request, err := svc.Request(context.Background(), vendor.ID, 4000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	accts.vendors[vendor.ID].WalletBalance = 100

	_, err = svc.Confirm(context.Background(), request.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if got := repo.requests[request.ID]; got.Status != enums.WithdrawalStatusPending {
		t.Fatalf("request must stay pending, got %s", got.Status)
	}
	if len(txns.created) != 0 {
		t.Fatal("failed confirmation must not log a payout")
	}
}

func TestRejectRecordsReason(t *testing.T) {
	vendor := bankVendor(10000)
	svc, _, accts, _ := newWithdrawalFixture(t, vendor)

	request, err := svc.Request(context.Background(), vendor.ID, 4000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	rejected, err := svc.Reject(context.Background(), request.ID, "account name mismatch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected.Status != enums.WithdrawalStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if rejected.RejectReason == nil || *rejected.RejectReason != "account name mismatch" {
		t.Fatalf("expected reject reason, got %+v", rejected.RejectReason)
	}
	if rejected.ResolvedAt == nil || time.Since(*rejected.ResolvedAt) > time.Minute {
		t.Fatal("expected a fresh resolution timestamp")
	}
	// wallet untouched
	if got := accts.vendors[vendor.ID].WalletBalance; got != 10000 {
		t.Fatalf("expected balance 10000, got %v", got)
	}
}
