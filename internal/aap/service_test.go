package aap

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/internal/payments"
	"github.com/joinamana/amana-backend/pkg/config"
	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/enums"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/pagination"
)

type fakePurchaseRepo struct {
	purchases map[uuid.UUID]*models.AgentPurchase
}

func newFakePurchaseRepo() *fakePurchaseRepo {
	return &fakePurchaseRepo{purchases: make(map[uuid.UUID]*models.AgentPurchase)}
}

func (r *fakePurchaseRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *fakePurchaseRepo) Create(ctx context.Context, purchase *models.AgentPurchase) error {
	copied := *purchase
	r.purchases[purchase.ID] = &copied
	return nil
}

func (r *fakePurchaseRepo) Update(ctx context.Context, purchase *models.AgentPurchase) error {
	if _, ok := r.purchases[purchase.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *purchase
	r.purchases[purchase.ID] = &copied
	return nil
}

func (r *fakePurchaseRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.AgentPurchase, error) {
	p, ok := r.purchases[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePurchaseRepo) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.AgentPurchase, error) {
	return nil, nil
}

func (r *fakePurchaseRepo) ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.AgentPurchase, error) {
	return nil, nil
}

func (r *fakePurchaseRepo) ListPendingApproval(ctx context.Context) ([]models.AgentPurchase, error) {
	return nil, nil
}

func (r *fakePurchaseRepo) ListUnpaidByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.AgentPurchase, error) {
	return nil, nil
}

func (r *fakePurchaseRepo) ExpireOverdue(ctx context.Context, now time.Time) ([]models.AgentPurchase, error) {
	return nil, nil
}

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakeCredit struct {
	available  float64
	recognized []float64
}

func (c *fakeCredit) Available(ctx context.Context, retailerID uuid.UUID) (float64, error) {
	return c.available, nil
}

func (c *fakeCredit) Recognize(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, amount float64) error {
	if amount > c.available {
		return pkgerrors.New(pkgerrors.CodeInsufficientCredit, "credit limit exceeded")
	}
	c.recognized = append(c.recognized, amount)
	return nil
}

func (c *fakeCredit) Release(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, amount float64) error {
	return nil
}

func (c *fakeCredit) ApplyScorecard(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, score int) error {
	return nil
}

func (c *fakeCredit) GrowTrust(ctx context.Context, tx *gorm.DB, retailerID uuid.UUID, amountPaid float64) (*models.User, bool, error) {
	return &models.User{ID: retailerID}, false, nil
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

type fakeAccountsRepo struct {
	users map[uuid.UUID]*models.User
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{users: make(map[uuid.UUID]*models.User)}
}

func (r *fakeAccountsRepo) WithTx(tx *gorm.DB) accounts.Repository { return r }

func (r *fakeAccountsRepo) CreateUser(ctx context.Context, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeAccountsRepo) UpdateUser(ctx context.Context, user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeAccountsRepo) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeAccountsRepo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAccountsRepo) ListAgents(ctx context.Context) ([]models.User, error) { return nil, nil }

func (r *fakeAccountsRepo) CreateVendor(ctx context.Context, vendor *models.Vendor) error { return nil }

func (r *fakeAccountsRepo) UpdateVendor(ctx context.Context, vendor *models.Vendor) error { return nil }

func (r *fakeAccountsRepo) FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAccountsRepo) FindVendorByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAccountsRepo) CreditVendorWallet(ctx context.Context, vendorID uuid.UUID, amount float64) error {
	return nil
}

func (r *fakeAccountsRepo) DebitVendorWallet(ctx context.Context, vendorID uuid.UUID, amount float64) (bool, error) {
	return true, nil
}

func (r *fakeAccountsRepo) CreditUserWallet(ctx context.Context, userID uuid.UUID, amount float64) error {
	return nil
}

type purchaseFixture struct {
	svc      Service
	repo     *fakePurchaseRepo
	credit   *fakeCredit
	txns     *fakeTxnRepo
	accounts *fakeAccountsRepo
	agent    *models.User
	retailer *models.User
}

func newPurchaseFixture(t *testing.T) *purchaseFixture {
	t.Helper()

	agent := &models.User{
		ID:       uuid.New(),
		Email:    "agent@example.com",
		Role:     enums.RoleRetailer,
		IsAgent:  true,
		IsActive: true,
	}
	retailer := &models.User{
		ID:           uuid.New(),
		Email:        "retailer@example.com",
		Role:         enums.RoleRetailer,
		IsActive:     true,
		Verification: enums.VerificationStatusVerified,
		TrustScore:   85,
		CreditLimit:  51000,
	}

	accts := newFakeAccountsRepo()
	accts.users[agent.ID] = agent
	accts.users[retailer.ID] = retailer

	repo := newFakePurchaseRepo()
	creditSvc := &fakeCredit{available: 51000}
	txns := &fakeTxnRepo{}

	svc, err := NewService(repo, fakeTx{}, creditSvc, txns, accts, config.CreditConfig{
		GrowthThreshold:    5000,
		OrderDueDays:       14,
		DisbursementWindow: time.Hour,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &purchaseFixture{
		svc:      svc,
		repo:     repo,
		credit:   creditSvc,
		txns:     txns,
		accounts: accts,
		agent:    agent,
		retailer: retailer,
	}
}

func (f *purchaseFixture) seedPurchase(status enums.PurchaseStatus) *models.AgentPurchase {
	purchase := &models.AgentPurchase{
		ID:            uuid.New(),
		AgentID:       f.agent.ID,
		RetailerID:    &f.retailer.ID,
		Status:        status,
		Description:   "20 cartons of noodles",
		VendorName:    "Alaba Market Stall 14",
		PurchasePrice: 10000,
		MarkupRate:    4.0,
		MarkupAmount:  400,
		TotalCost:     10400,
		TermDays:      3,
	}
	f.repo.purchases[purchase.ID] = purchase
	return purchase
}

func TestCreateDraft(t *testing.T) {
	f := newPurchaseFixture(t)

	purchase, err := f.svc.CreateDraft(context.Background(), CreateDraftInput{
		AgentID:       f.agent.ID,
		Description:   "20 cartons of noodles",
		VendorName:    "Alaba Market Stall 14",
		PurchasePrice: 10000,
		PhotoURLs:     []string{"https://cdn.example.com/p1.jpg"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purchase.Status != enums.PurchaseStatusDraft {
		t.Fatalf("expected draft, got %s", purchase.Status)
	}
	if purchase.RetailerID != nil {
		t.Fatal("draft must not have a retailer attached")
	}
}

func TestCreateDraftRejectsNonAgents(t *testing.T) {
	f := newPurchaseFixture(t)

	_, err := f.svc.CreateDraft(context.Background(), CreateDraftInput{
		AgentID:       f.retailer.ID,
		Description:   "goods",
		VendorName:    "market",
		PurchasePrice: 100,
		PhotoURLs:     []string{"https://cdn.example.com/p1.jpg"},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateDraftRequiresPhotos(t *testing.T) {
	f := newPurchaseFixture(t)

	_, err := f.svc.CreateDraft(context.Background(), CreateDraftInput{
		AgentID:       f.agent.ID,
		Description:   "20 cartons of noodles",
		VendorName:    "Alaba Market Stall 14",
		PurchasePrice: 10000,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing photos, got %v", err)
	}
}

func TestSubmitToRetailerPricesFromScorecard(t *testing.T) {
	f := newPurchaseFixture(t)
	draft := f.seedPurchase(enums.PurchaseStatusDraft)
	draft.RetailerID = nil
	draft.MarkupRate = 0
	draft.MarkupAmount = 0
	draft.TotalCost = 0
	draft.TermDays = 0

	purchase, err := f.svc.SubmitToRetailer(context.Background(), SubmitInput{
		PurchaseID: draft.ID,
		AgentID:    f.agent.ID,
		RetailerID: f.retailer.ID,
		TermDays:   3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if purchase.Status != enums.PurchaseStatusAwaitingRetailer {
		t.Fatalf("expected awaiting_retailer_confirm, got %s", purchase.Status)
	}
	// score 85 at a 3 day term lands on the 4.0 percent floor
	if purchase.MarkupRate != 4.0 {
		t.Fatalf("expected markup rate 4.0, got %v", purchase.MarkupRate)
	}
	if purchase.MarkupAmount != 400 {
		t.Fatalf("expected markup amount 400, got %v", purchase.MarkupAmount)
	}
	if purchase.TotalCost != 10400 {
		t.Fatalf("expected total cost 10400, got %v", purchase.TotalCost)
	}
}

func TestSubmitToRetailerRejectsSelfSourcing(t *testing.T) {
	f := newPurchaseFixture(t)
	draft := f.seedPurchase(enums.PurchaseStatusDraft)

	_, err := f.svc.SubmitToRetailer(context.Background(), SubmitInput{
		PurchaseID: draft.ID,
		AgentID:    f.agent.ID,
		RetailerID: f.agent.ID,
		TermDays:   3,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSubmitToRetailerRejectsUnknownTerm(t *testing.T) {
	f := newPurchaseFixture(t)
	draft := f.seedPurchase(enums.PurchaseStatusDraft)

	_, err := f.svc.SubmitToRetailer(context.Background(), SubmitInput{
		PurchaseID: draft.ID,
		AgentID:    f.agent.ID,
		RetailerID: f.retailer.ID,
		TermDays:   30,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitToRetailerFailsOnCredit(t *testing.T) {
	f := newPurchaseFixture(t)
	f.credit.available = 5000
	draft := f.seedPurchase(enums.PurchaseStatusDraft)

	_, err := f.svc.SubmitToRetailer(context.Background(), SubmitInput{
		PurchaseID: draft.ID,
		AgentID:    f.agent.ID,
		RetailerID: f.retailer.ID,
		TermDays:   3,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredit {
		t.Fatalf("expected insufficient credit, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["available"] != 5000.0 {
		t.Fatalf("expected shortfall details, got %v", typed.Details())
	}
}

func TestAdminApproveDisbursesAndStartsWindow(t *testing.T) {
	f := newPurchaseFixture(t)
	pending := f.seedPurchase(enums.PurchaseStatusPendingAdminApproval)

	purchase, err := f.svc.AdminApprove(context.Background(), AdminApproveInput{
		PurchaseID: pending.ID,
		Method:     enums.DisbursementMethodBankTransfer,
		Reference:  "TRF-20260830-001",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if purchase.Status != enums.PurchaseStatusFundDisbursed {
		t.Fatalf("expected fund_disbursed, got %s", purchase.Status)
	}
	// the agent receives the goods cost, never the markup
	if purchase.DisbursedAmount != 10000 {
		t.Fatalf("expected disbursed amount 10000, got %v", purchase.DisbursedAmount)
	}
	if purchase.ExpiresAt == nil {
		t.Fatal("expected a delivery window")
	}
	wantExpiry := time.Now().Add(time.Hour)
	if purchase.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || purchase.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
		t.Fatalf("expected ~1h window, got %v", purchase.ExpiresAt)
	}
	if len(f.txns.created) != 1 || f.txns.created[0].Type != enums.TransactionTypeAgentFundDisbursement {
		t.Fatalf("expected one agent_fund_disbursement transaction, got %+v", f.txns.created)
	}
}

func TestAdminApproveRechecksCredit(t *testing.T) {
	f := newPurchaseFixture(t)
	f.credit.available = 100
	pending := f.seedPurchase(enums.PurchaseStatusPendingAdminApproval)

	_, err := f.svc.AdminApprove(context.Background(), AdminApproveInput{
		PurchaseID: pending.ID,
		Method:     enums.DisbursementMethodCash,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredit {
		t.Fatalf("expected insufficient credit, got %v", err)
	}
	if got := f.repo.purchases[pending.ID]; got.Status != enums.PurchaseStatusPendingAdminApproval {
		t.Fatalf("purchase must stay pending, got %s", got.Status)
	}
}

func TestMarkDeliveredIssuesCode(t *testing.T) {
	f := newPurchaseFixture(t)
	disbursed := f.seedPurchase(enums.PurchaseStatusFundDisbursed)
	expires := time.Now().Add(30 * time.Minute)
	disbursed.ExpiresAt = &expires

	purchase, err := f.svc.MarkDelivered(context.Background(), MarkDeliveredInput{
		PurchaseID: disbursed.ID,
		AgentID:    f.agent.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if purchase.Status != enums.PurchaseStatusDelivered {
		t.Fatalf("expected delivered, got %s", purchase.Status)
	}
	if purchase.PickupCode == nil || len(*purchase.PickupCode) != 6 {
		t.Fatalf("expected a 6 digit delivery code, got %v", purchase.PickupCode)
	}
}

func TestMarkDeliveredExpiresLateClaims(t *testing.T) {
	f := newPurchaseFixture(t)
	disbursed := f.seedPurchase(enums.PurchaseStatusFundDisbursed)
	expired := time.Now().Add(-time.Minute)
	disbursed.ExpiresAt = &expired

	_, err := f.svc.MarkDelivered(context.Background(), MarkDeliveredInput{
		PurchaseID: disbursed.ID,
		AgentID:    f.agent.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeExpired {
		t.Fatalf("expected expired error, got %v", err)
	}
	if got := f.repo.purchases[disbursed.ID]; got.Status != enums.PurchaseStatusExpired {
		t.Fatalf("late claim must flip the purchase to expired, got %s", got.Status)
	}
}

func TestConfirmReceiptRecognizesDebt(t *testing.T) {
	f := newPurchaseFixture(t)
	delivered := f.seedPurchase(enums.PurchaseStatusDelivered)
	code := "482913"
	delivered.PickupCode = &code

	purchase, err := f.svc.ConfirmReceipt(context.Background(), ConfirmReceiptInput{
		PurchaseID: delivered.ID,
		RetailerID: f.retailer.ID,
		Code:       "482913",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if purchase.Status != enums.PurchaseStatusReceived {
		t.Fatalf("expected received, got %s", purchase.Status)
	}
	if len(f.credit.recognized) != 1 || f.credit.recognized[0] != 10400 {
		t.Fatalf("expected debt recognized for the full cost, got %v", f.credit.recognized)
	}
	if purchase.DueDate == nil {
		t.Fatal("expected a due date")
	}
	wantDue := time.Now().AddDate(0, 0, 3)
	if purchase.DueDate.Before(wantDue.Add(-time.Minute)) || purchase.DueDate.After(wantDue.Add(time.Minute)) {
		t.Fatalf("expected due date at the 3 day term, got %v", purchase.DueDate)
	}
	if len(f.txns.created) != 1 || f.txns.created[0].Type != enums.TransactionTypeLoanDisbursement {
		t.Fatalf("expected one loan_disbursement transaction, got %+v", f.txns.created)
	}
}

func TestConfirmReceiptRejectsWrongCode(t *testing.T) {
	f := newPurchaseFixture(t)
	delivered := f.seedPurchase(enums.PurchaseStatusDelivered)
	code := "482913"
	delivered.PickupCode = &code

	_, err := f.svc.ConfirmReceipt(context.Background(), ConfirmReceiptInput{
		PurchaseID: delivered.ID,
		RetailerID: f.retailer.ID,
		Code:       "000000",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(f.credit.recognized) != 0 {
		t.Fatal("wrong code must not recognize debt")
	}
}

func TestDeclineAuthorization(t *testing.T) {
	f := newPurchaseFixture(t)

	awaiting := f.seedPurchase(enums.PurchaseStatusAwaitingRetailer)
	declined, err := f.svc.Decline(context.Background(), DeclineInput{
		PurchaseID: awaiting.ID,
		ActorID:    f.retailer.ID,
		ActorRole:  enums.RoleRetailer,
		Reason:     "price too high",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if declined.Status != enums.PurchaseStatusDeclined || declined.DeclineReason == nil {
		t.Fatalf("expected declined with reason, got %+v", declined)
	}

	stranger := uuid.New()
	pending := f.seedPurchase(enums.PurchaseStatusPendingAdminApproval)
	_, err = f.svc.Decline(context.Background(), DeclineInput{
		PurchaseID: pending.ID,
		ActorID:    stranger,
		ActorRole:  enums.RoleRetailer,
		Reason:     "not my purchase",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for a third party, got %v", err)
	}

	received := f.seedPurchase(enums.PurchaseStatusReceived)
	_, err = f.svc.Decline(context.Background(), DeclineInput{
		PurchaseID: received.ID,
		ActorID:    f.retailer.ID,
		ActorRole:  enums.RoleAdmin,
		Reason:     "too late",
	})
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict after receipt, got %v", err)
	}
}

func TestRetailerMayDeclineBeforeReceipt(t *testing.T) {
	f := newPurchaseFixture(t)

	// The retailer can walk away at every stage until they hold the goods,
	// even after funds have gone out to the agent.
	for _, status := range []enums.PurchaseStatus{
		enums.PurchaseStatusAwaitingRetailer,
		enums.PurchaseStatusPendingAdminApproval,
		enums.PurchaseStatusFundDisbursed,
		enums.PurchaseStatusDelivered,
	} {
		purchase := f.seedPurchase(status)
		declined, err := f.svc.Decline(context.Background(), DeclineInput{
			PurchaseID: purchase.ID,
			ActorID:    f.retailer.ID,
			ActorRole:  enums.RoleRetailer,
			Reason:     "goods not as described",
		})
		if err != nil {
			t.Fatalf("decline from %s: unexpected error: %v", status, err)
		}
		if declined.Status != enums.PurchaseStatusDeclined {
			t.Fatalf("decline from %s: expected declined, got %s", status, declined.Status)
		}
	}
}

func TestAgentDeclineStopsAtRetailerConfirm(t *testing.T) {
	f := newPurchaseFixture(t)

	awaiting := f.seedPurchase(enums.PurchaseStatusAwaitingRetailer)
	declined, err := f.svc.Decline(context.Background(), DeclineInput{
		PurchaseID: awaiting.ID,
		ActorID:    f.agent.ID,
		ActorRole:  enums.RoleRetailer,
		Reason:     "vendor ran out of stock",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if declined.Status != enums.PurchaseStatusDeclined {
		t.Fatalf("expected declined, got %s", declined.Status)
	}

	pending := f.seedPurchase(enums.PurchaseStatusPendingAdminApproval)
	_, err = f.svc.Decline(context.Background(), DeclineInput{
		PurchaseID: pending.ID,
		ActorID:    f.agent.ID,
		ActorRole:  enums.RoleRetailer,
		Reason:     "changed my mind",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden for agent past confirmation, got %v", err)
	}
}
