package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/internal/payments"
	"github.com/joinamana/amana-backend/internal/products"
	"github.com/joinamana/amana-backend/pkg/config"
	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/enums"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/pagination"
)

type fakeOrderRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newFakeOrderRepo(orders ...*models.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeOrderRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *fakeOrderRepo) Create(ctx context.Context, order *models.Order) error {
	copied := *order
	r.orders[order.ID] = &copied
	return nil
}

func (r *fakeOrderRepo) Update(ctx context.Context, order *models.Order) error {
	if _, ok := r.orders[order.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *order
	r.orders[order.ID] = &copied
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) ListByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) ListUnpaidByRetailer(ctx context.Context, retailerID uuid.UUID) ([]models.Order, error) {
	return nil, nil
}

func (r *fakeOrderRepo) MarkDefaulted(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakeProductRepo struct {
	products map[uuid.UUID]*models.Product
}

func newFakeProductRepo(items ...*models.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[uuid.UUID]*models.Product)}
	for _, p := range items {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) WithTx(tx *gorm.DB) products.Repository { return r }

func (r *fakeProductRepo) Create(ctx context.Context, product *models.Product) error {
	r.products[product.ID] = product
	return nil
}

func (r *fakeProductRepo) Update(ctx context.Context, product *models.Product) error {
	r.products[product.ID] = product
	return nil
}

func (r *fakeProductRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProductRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Product, error) {
	return nil, nil
}

func (r *fakeProductRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	p, ok := r.products[id]
	if !ok || p.CountInStock < qty {
		return false, nil
	}
	p.CountInStock -= qty
	return true, nil
}

func (r *fakeProductRepo) RestoreStock(ctx context.Context, id uuid.UUID, qty int) error {
	if p, ok := r.products[id]; ok {
		p.CountInStock += qty
	}
	return nil
}

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
	for _, txn := range r.created {
		if txn.Reference == reference {
			return txn, nil
		}
	}
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
	users         map[uuid.UUID]*models.User
	vendors       map[uuid.UUID]*models.Vendor
	agents        []models.User
	walletCredits map[uuid.UUID]float64
}

func newFakeAccountsRepo() *fakeAccountsRepo {
	return &fakeAccountsRepo{
		users:         make(map[uuid.UUID]*models.User),
		vendors:       make(map[uuid.UUID]*models.Vendor),
		walletCredits: make(map[uuid.UUID]float64),
	}
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
	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAccountsRepo) ListAgents(ctx context.Context) ([]models.User, error) {
	return r.agents, nil
}

func (r *fakeAccountsRepo) CreateVendor(ctx context.Context, vendor *models.Vendor) error {
	r.vendors[vendor.ID] = vendor
	return nil
}

func (r *fakeAccountsRepo) UpdateVendor(ctx context.Context, vendor *models.Vendor) error {
	r.vendors[vendor.ID] = vendor
	return nil
}

func (r *fakeAccountsRepo) FindVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	v, ok := r.vendors[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *fakeAccountsRepo) FindVendorByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	for _, v := range r.vendors {
		if v.Email == email {
			copied := *v
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAccountsRepo) CreditVendorWallet(ctx context.Context, vendorID uuid.UUID, amount float64) error {
	r.walletCredits[vendorID] += amount
	return nil
}

func (r *fakeAccountsRepo) DebitVendorWallet(ctx context.Context, vendorID uuid.UUID, amount float64) (bool, error) {
	return true, nil
}

func (r *fakeAccountsRepo) CreditUserWallet(ctx context.Context, userID uuid.UUID, amount float64) error {
	return nil
}

type orderFixture struct {
	svc      Service
	repo     *fakeOrderRepo
	products *fakeProductRepo
	credit   *fakeCredit
	txns     *fakeTxnRepo
	accounts *fakeAccountsRepo
	retailer *models.User
	vendor   *models.Vendor
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	retailer := &models.User{
		ID:           uuid.New(),
		Email:        "retailer@example.com",
		Role:         enums.RoleRetailer,
		IsActive:     true,
		Verification: enums.VerificationStatusVerified,
		TrustScore:   85,
		CreditLimit:  51000,
	}
	vendor := &models.Vendor{
		ID:       uuid.New(),
		Email:    "vendor@example.com",
		IsActive: true,
	}

	accts := newFakeAccountsRepo()
	accts.users[retailer.ID] = retailer
	accts.vendors[vendor.ID] = vendor

	repo := newFakeOrderRepo()
	prodRepo := newFakeProductRepo()
	creditSvc := &fakeCredit{available: 51000}
	txns := &fakeTxnRepo{}

	svc, err := NewService(repo, fakeTx{}, prodRepo, creditSvc, txns, accts, config.CreditConfig{
		GrowthThreshold: 5000,
		OrderDueDays:    14,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &orderFixture{
		svc:      svc,
		repo:     repo,
		products: prodRepo,
		credit:   creditSvc,
		txns:     txns,
		accounts: accts,
		retailer: retailer,
		vendor:   vendor,
	}
}

func (f *orderFixture) addProduct(price float64, stock int) *models.Product {
	p := &models.Product{
		ID:           uuid.New(),
		VendorID:     f.vendor.ID,
		Name:         "Rice 50kg",
		Price:        price,
		CountInStock: stock,
		IsActive:     true,
	}
	f.products.products[p.ID] = p
	return p
}

func (f *orderFixture) addAgent(email string) *models.User {
	agent := &models.User{
		ID:       uuid.New(),
		Email:    email,
		Role:     enums.RoleRetailer,
		IsAgent:  true,
		IsActive: true,
	}
	f.accounts.agents = append(f.accounts.agents, *agent)
	return agent
}

func TestCreateOrderPricesAndDecrementsStock(t *testing.T) {
	f := newOrderFixture(t)
	product := f.addProduct(1000, 5)

	order, err := f.svc.Create(context.Background(), CreateOrderInput{
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Lines:      []OrderLine{{ProductID: product.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.Status != enums.OrderStatusPendingVendor {
		t.Fatalf("expected pending_vendor, got %s", order.Status)
	}
	if order.ItemsPrice != 3000 {
		t.Fatalf("expected items price 3000, got %v", order.ItemsPrice)
	}
	// score 85 at the 14 day term carries a 5.0 percent markup
	if order.MarkupRate != 5.0 {
		t.Fatalf("expected markup rate 5.0, got %v", order.MarkupRate)
	}
	if order.MarkupAmount != 150 {
		t.Fatalf("expected markup amount 150, got %v", order.MarkupAmount)
	}
	if order.TotalPrice != 3150 {
		t.Fatalf("expected total 3150, got %v", order.TotalPrice)
	}
	if got := f.products.products[product.ID].CountInStock; got != 2 {
		t.Fatalf("expected stock 2 after decrement, got %d", got)
	}
	if len(order.Items) != 1 || order.Items[0].UnitPrice != 1000 {
		t.Fatalf("expected snapshotted order item, got %+v", order.Items)
	}
}

func TestCreateOrderRejectsInsufficientStock(t *testing.T) {
	f := newOrderFixture(t)
	product := f.addProduct(500, 1)

	_, err := f.svc.Create(context.Background(), CreateOrderInput{
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Lines:      []OrderLine{{ProductID: product.ID, Quantity: 2}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("expected insufficient stock error, got %v", err)
	}
}

func TestCreateOrderRejectsOverCreditLimit(t *testing.T) {
	f := newOrderFixture(t)
	f.retailer.UsedCredit = 50000
	product := f.addProduct(2000, 5)

	_, err := f.svc.Create(context.Background(), CreateOrderInput{
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Lines:      []OrderLine{{ProductID: product.ID, Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredit {
		t.Fatalf("expected insufficient credit error, got %v", err)
	}
	if got := f.products.products[product.ID].CountInStock; got != 5 {
		t.Fatalf("rejected order must not touch stock, got %d", got)
	}
}

func TestCreateOrderRejectsSelfDealing(t *testing.T) {
	f := newOrderFixture(t)
	f.retailer.Email = f.vendor.Email
	product := f.addProduct(1000, 5)

	_, err := f.svc.Create(context.Background(), CreateOrderInput{
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Lines:      []OrderLine{{ProductID: product.ID, Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestVendorReadyAssignsEligibleAgent(t *testing.T) {
	f := newOrderFixture(t)
	// retailer acting as an agent and an agent tied to the vendor are both
	// excluded from the draw
	retailerAgent := models.User{ID: f.retailer.ID, Email: f.retailer.Email, IsAgent: true, IsActive: true}
	vendorAgent := models.User{ID: uuid.New(), Email: f.vendor.Email, IsAgent: true, IsActive: true}
	f.accounts.agents = append(f.accounts.agents, retailerAgent, vendorAgent)
	eligible := f.addAgent("agent@example.com")

	order := &models.Order{
		ID:         uuid.New(),
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Status:     enums.OrderStatusPendingVendor,
		TotalPrice: 3150,
	}
	f.repo.orders[order.ID] = order

	updated, err := f.svc.VendorReady(context.Background(), VendorReadyInput{
		OrderID:  order.ID,
		VendorID: f.vendor.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != enums.OrderStatusReadyForPickup {
		t.Fatalf("expected ready_for_pickup, got %s", updated.Status)
	}
	if updated.AssignedAgentID == nil || *updated.AssignedAgentID != eligible.ID {
		t.Fatalf("expected the only eligible agent to be assigned")
	}
	if updated.PickupCode == nil || len(*updated.PickupCode) != 4 {
		t.Fatalf("expected a 4 digit pickup code, got %v", updated.PickupCode)
	}
	if updated.DueDate == nil {
		t.Fatal("expected a due date")
	}
	wantDue := time.Now().AddDate(0, 0, 14)
	if updated.DueDate.Before(wantDue.Add(-time.Minute)) || updated.DueDate.After(wantDue.Add(time.Minute)) {
		t.Fatalf("expected due date ~14 days out, got %v", updated.DueDate)
	}
}

func TestVendorReadyFailsWithoutEligibleAgent(t *testing.T) {
	f := newOrderFixture(t)
	f.accounts.agents = append(f.accounts.agents, models.User{
		ID: uuid.New(), Email: f.vendor.Email, IsAgent: true, IsActive: true,
	})

	order := &models.Order{
		ID:         uuid.New(),
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Status:     enums.OrderStatusPendingVendor,
		TotalPrice: 3150,
	}
	f.repo.orders[order.ID] = order

	_, err := f.svc.VendorReady(context.Background(), VendorReadyInput{
		OrderID:  order.ID,
		VendorID: f.vendor.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if got := f.repo.orders[order.ID]; got.Status != enums.OrderStatusPendingVendor {
		t.Fatalf("order must stay pending_vendor, got %s", got.Status)
	}
}

func TestVendorReadyRechecksCredit(t *testing.T) {
	f := newOrderFixture(t)
	f.addAgent("agent@example.com")
	f.credit.available = 1000

	order := &models.Order{
		ID:         uuid.New(),
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Status:     enums.OrderStatusPendingVendor,
		TotalPrice: 3150,
	}
	f.repo.orders[order.ID] = order

	_, err := f.svc.VendorReady(context.Background(), VendorReadyInput{
		OrderID:  order.ID,
		VendorID: f.vendor.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredit {
		t.Fatalf("expected insufficient credit, got %v", err)
	}
}

func TestAgentSettleVendorPaysWallet(t *testing.T) {
	f := newOrderFixture(t)
	agent := f.addAgent("agent@example.com")

	order := &models.Order{
		ID:              uuid.New(),
		RetailerID:      f.retailer.ID,
		VendorID:        f.vendor.ID,
		Status:          enums.OrderStatusReadyForPickup,
		ItemsPrice:      3000,
		TotalPrice:      3150,
		AssignedAgentID: &agent.ID,
	}
	f.repo.orders[order.ID] = order

	updated, err := f.svc.AgentSettleVendor(context.Background(), AgentSettleInput{
		OrderID: order.ID,
		AgentID: agent.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != enums.OrderStatusVendorSettled {
		t.Fatalf("expected vendor_settled, got %s", updated.Status)
	}
	if updated.VendorSettledAt == nil {
		t.Fatal("expected vendor settled timestamp")
	}
	// vendor receives goods cost only, never the markup
	if got := f.accounts.walletCredits[f.vendor.ID]; got != 3000 {
		t.Fatalf("expected wallet credit 3000, got %v", got)
	}
	if len(f.txns.created) != 1 || f.txns.created[0].Type != enums.TransactionTypeVendorPayout {
		t.Fatalf("expected one vendor_payout transaction, got %+v", f.txns.created)
	}
	if f.txns.created[0].Amount != 3000 {
		t.Fatalf("expected payout amount 3000, got %v", f.txns.created[0].Amount)
	}
}

func TestAgentSettleVendorRejectsOtherAgents(t *testing.T) {
	f := newOrderFixture(t)
	assigned := f.addAgent("assigned@example.com")
	other := f.addAgent("other@example.com")

	order := &models.Order{
		ID:              uuid.New(),
		RetailerID:      f.retailer.ID,
		VendorID:        f.vendor.ID,
		Status:          enums.OrderStatusReadyForPickup,
		ItemsPrice:      3000,
		AssignedAgentID: &assigned.ID,
	}
	f.repo.orders[order.ID] = order

	_, err := f.svc.AgentSettleVendor(context.Background(), AgentSettleInput{
		OrderID: order.ID,
		AgentID: other.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(f.txns.created) != 0 {
		t.Fatal("rejected settlement must not record a transaction")
	}
}

func TestConfirmReceivedRecognizesDebt(t *testing.T) {
	f := newOrderFixture(t)

	order := &models.Order{
		ID:         uuid.New(),
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Status:     enums.OrderStatusVendorSettled,
		ItemsPrice: 3000,
		TotalPrice: 3150,
	}
	f.repo.orders[order.ID] = order

	updated, err := f.svc.ConfirmReceived(context.Background(), ConfirmReceivedInput{
		OrderID:    order.ID,
		RetailerID: f.retailer.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != enums.OrderStatusGoodsReceived {
		t.Fatalf("expected goods_received, got %s", updated.Status)
	}
	if len(f.credit.recognized) != 1 || f.credit.recognized[0] != 3150 {
		t.Fatalf("expected debt recognized for the full total, got %v", f.credit.recognized)
	}
	if len(f.txns.created) != 1 || f.txns.created[0].Type != enums.TransactionTypeLoanDisbursement {
		t.Fatalf("expected one loan_disbursement transaction, got %+v", f.txns.created)
	}
}

func TestConfirmReceivedFailsClosedOnCredit(t *testing.T) {
	f := newOrderFixture(t)
	f.credit.available = 100

	order := &models.Order{
		ID:         uuid.New(),
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Status:     enums.OrderStatusVendorSettled,
		TotalPrice: 3150,
	}
	f.repo.orders[order.ID] = order

	_, err := f.svc.ConfirmReceived(context.Background(), ConfirmReceivedInput{
		OrderID:    order.ID,
		RetailerID: f.retailer.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientCredit {
		t.Fatalf("expected insufficient credit, got %v", err)
	}
	if got := f.repo.orders[order.ID]; got.Status != enums.OrderStatusVendorSettled {
		t.Fatalf("order must stay vendor_settled, got %s", got.Status)
	}
}

func TestCompleteRequiresGoodsReceived(t *testing.T) {
	f := newOrderFixture(t)

	order := &models.Order{
		ID:         uuid.New(),
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Status:     enums.OrderStatusGoodsReceived,
	}
	f.repo.orders[order.ID] = order

	updated, err := f.svc.Complete(context.Background(), CompleteInput{
		OrderID:    order.ID,
		RetailerID: f.retailer.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != enums.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", updated.Status)
	}

	_, err = f.svc.Complete(context.Background(), CompleteInput{
		OrderID:    order.ID,
		RetailerID: f.retailer.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on replay, got %v", err)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	f := newOrderFixture(t)
	product := f.addProduct(1000, 2)

	order := &models.Order{
		ID:         uuid.New(),
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Status:     enums.OrderStatusPendingVendor,
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductID: product.ID, Name: product.Name, UnitPrice: 1000, Quantity: 3},
		},
	}
	f.repo.orders[order.ID] = order

	updated, err := f.svc.Cancel(context.Background(), CancelInput{
		OrderID:    order.ID,
		RetailerID: f.retailer.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", updated.Status)
	}
	if updated.CancelledAt == nil {
		t.Fatal("expected cancelled timestamp")
	}
	if got := f.products.products[product.ID].CountInStock; got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}
}

func TestCancelRejectedAfterSettlement(t *testing.T) {
	f := newOrderFixture(t)

	order := &models.Order{
		ID:         uuid.New(),
		RetailerID: f.retailer.ID,
		VendorID:   f.vendor.ID,
		Status:     enums.OrderStatusVendorSettled,
	}
	f.repo.orders[order.ID] = order

	_, err := f.svc.Cancel(context.Background(), CancelInput{
		OrderID:    order.ID,
		RetailerID: f.retailer.ID,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
