package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joinamana/amana-backend/api/controllers"
	"github.com/joinamana/amana-backend/api/middleware"
	aapsvc "github.com/joinamana/amana-backend/internal/aap"
	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/internal/gateway/paystack"
	"github.com/joinamana/amana-backend/internal/notify"
	ordersvc "github.com/joinamana/amana-backend/internal/orders"
	paymentsvc "github.com/joinamana/amana-backend/internal/payments"
	productsvc "github.com/joinamana/amana-backend/internal/products"
	withdrawalsvc "github.com/joinamana/amana-backend/internal/withdrawals"
	"github.com/joinamana/amana-backend/pkg/config"
	"github.com/joinamana/amana-backend/pkg/db"
	"github.com/joinamana/amana-backend/pkg/enums"
	"github.com/joinamana/amana-backend/pkg/logger"
	"github.com/joinamana/amana-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	accountsSvc accounts.Service,
	productsSvc productsvc.Service,
	ordersSvc ordersvc.Service,
	purchasesSvc aapsvc.Service,
	paymentsSvc paymentsvc.Service,
	withdrawalsSvc withdrawalsvc.Service,
	gateway paystack.Client,
	notifier notify.Notifier,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegisterRetailer(accountsSvc, logg))
		r.Post("/vendor/register", controllers.AuthRegisterVendor(accountsSvc, logg))
		r.Post("/login", controllers.AuthLogin(accountsSvc, logg))
		r.Post("/vendor/login", controllers.AuthVendorLogin(accountsSvc, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", controllers.PaystackWebhook(gateway, paymentsSvc, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/retailer", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.RoleRetailer), logg))
			r.Get("/me", controllers.RetailerProfile(accountsSvc, logg))
			r.Post("/onboarding", controllers.RetailerOnboarding(accountsSvc, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.OrderCreate(ordersSvc, logg))
				r.Get("/", controllers.OrderList(ordersSvc, logg))
				r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
				r.Post("/{orderId}/received", controllers.OrderConfirmReceived(ordersSvc, logg))
				r.Post("/{orderId}/complete", controllers.OrderComplete(ordersSvc, logg))
				r.Post("/{orderId}/cancel", controllers.OrderCancel(ordersSvc, logg))
			})

			r.Route("/purchases", func(r chi.Router) {
				r.Get("/", controllers.RetailerPurchaseList(purchasesSvc, logg))
				r.Get("/{purchaseId}", controllers.PurchaseDetail(purchasesSvc, logg))
				r.Post("/{purchaseId}/confirm", controllers.PurchaseRetailerConfirm(purchasesSvc, logg))
				r.Post("/{purchaseId}/receive", controllers.PurchaseConfirmReceipt(purchasesSvc, logg))
				r.Post("/{purchaseId}/complete", controllers.PurchaseComplete(purchasesSvc, logg))
				r.Post("/{purchaseId}/decline", controllers.PurchaseDecline(purchasesSvc, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/initialize", controllers.PaymentInitialize(gateway, accountsSvc, logg))
				r.Post("/verify/{reference}", controllers.PaymentVerify(gateway, paymentsSvc, logg))
				r.Get("/transactions", controllers.TransactionList(paymentsSvc, logg))
			})
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.RoleVendor), logg))
			r.Get("/me", controllers.VendorProfile(accountsSvc, logg))
			r.Put("/bank", controllers.VendorUpdateBank(accountsSvc, logg))

			r.Route("/products", func(r chi.Router) {
				r.Post("/", controllers.VendorCreateProduct(productsSvc, logg))
				r.Get("/", controllers.VendorListProducts(productsSvc, logg))
				r.Get("/{productId}", controllers.ProductDetail(productsSvc, logg))
				r.Patch("/{productId}", controllers.VendorUpdateProduct(productsSvc, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.VendorOrderList(ordersSvc, logg))
				r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
				r.Post("/{orderId}/ready", controllers.VendorOrderReady(ordersSvc, logg))
			})

			r.Route("/withdrawals", func(r chi.Router) {
				r.Post("/", controllers.VendorWithdrawalRequest(withdrawalsSvc, logg))
				r.Get("/", controllers.VendorWithdrawalList(withdrawalsSvc, logg))
			})

			r.Get("/transactions", controllers.VendorTransactionList(paymentsSvc, logg))
		})

		r.Route("/agent", func(r chi.Router) {
			r.Use(middleware.RequireAgent(logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AgentOrderList(ordersSvc, logg))
				r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
				r.Post("/{orderId}/settle", controllers.AgentOrderSettle(ordersSvc, logg))
			})

			r.Route("/purchases", func(r chi.Router) {
				r.Post("/", controllers.PurchaseCreateDraft(purchasesSvc, logg))
				r.Get("/", controllers.AgentPurchaseList(purchasesSvc, logg))
				r.Get("/{purchaseId}", controllers.PurchaseDetail(purchasesSvc, logg))
				r.Post("/{purchaseId}/submit", controllers.PurchaseSubmit(purchasesSvc, logg))
				r.Post("/{purchaseId}/delivered", controllers.PurchaseMarkDelivered(purchasesSvc, logg))
				r.Post("/{purchaseId}/decline", controllers.PurchaseDecline(purchasesSvc, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.RoleAdmin), logg))

		r.Route("/retailers", func(r chi.Router) {
			r.Post("/{userId}/approve", controllers.AdminApproveRetailer(accountsSvc, logg))
			r.Post("/{userId}/reject", controllers.AdminRejectRetailer(accountsSvc, logg))
			r.Post("/{userId}/agent-flag", controllers.AdminSetAgentFlag(accountsSvc, logg))
			r.Post("/{userId}/active", controllers.AdminSetUserActive(accountsSvc, logg))
			r.Post("/{userId}/link-vendor", controllers.AdminLinkVendorProfile(accountsSvc, logg))
		})

		r.Route("/vendors", func(r chi.Router) {
			r.Post("/{vendorId}/approve", controllers.AdminApproveVendor(accountsSvc, logg))
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/pending", controllers.AdminPurchaseQueue(purchasesSvc, logg))
			r.Get("/{purchaseId}", controllers.PurchaseDetail(purchasesSvc, logg))
			r.Post("/{purchaseId}/approve", controllers.PurchaseAdminApprove(purchasesSvc, logg))
			r.Post("/{purchaseId}/decline", controllers.PurchaseDecline(purchasesSvc, logg))
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.Get("/pending", controllers.AdminWithdrawalQueue(withdrawalsSvc, logg))
			r.Post("/{requestId}/confirm", controllers.AdminWithdrawalConfirm(withdrawalsSvc, logg))
			r.Post("/{requestId}/reject", controllers.AdminWithdrawalReject(withdrawalsSvc, logg))
		})

		r.Post("/broadcast", controllers.AdminBroadcast(notifier, logg))
	})

	return r
}
