package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/joinamana/amana-backend/api/routes"
	"github.com/joinamana/amana-backend/internal/aap"
	"github.com/joinamana/amana-backend/internal/accounts"
	"github.com/joinamana/amana-backend/internal/credit"
	"github.com/joinamana/amana-backend/internal/gateway/paystack"
	"github.com/joinamana/amana-backend/internal/notify"
	"github.com/joinamana/amana-backend/internal/orders"
	"github.com/joinamana/amana-backend/internal/payments"
	"github.com/joinamana/amana-backend/internal/products"
	"github.com/joinamana/amana-backend/internal/withdrawals"
	"github.com/joinamana/amana-backend/pkg/config"
	"github.com/joinamana/amana-backend/pkg/db"
	"github.com/joinamana/amana-backend/pkg/logger"
	"github.com/joinamana/amana-backend/pkg/migrate"
	"github.com/joinamana/amana-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	accountsRepo := accounts.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	purchasesRepo := aap.NewRepository(dbClient.DB())
	txnsRepo := payments.NewRepository(dbClient.DB())
	withdrawalsRepo := withdrawals.NewRepository(dbClient.DB())

	creditSvc, err := credit.NewService(credit.NewRepository(dbClient.DB()), cfg.Credit)
	exitOnErr(logg, "credit service", err)

	accountsSvc, err := accounts.NewService(accountsRepo, dbClient, creditSvc, cfg.Password, cfg.JWT)
	exitOnErr(logg, "accounts service", err)

	productsSvc, err := products.NewService(productsRepo)
	exitOnErr(logg, "products service", err)

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, productsRepo, creditSvc, txnsRepo, accountsRepo, cfg.Credit)
	exitOnErr(logg, "orders service", err)

	purchasesSvc, err := aap.NewService(purchasesRepo, dbClient, creditSvc, txnsRepo, accountsRepo, cfg.Credit)
	exitOnErr(logg, "purchases service", err)

	sources := []payments.ObligationSource{
		orders.NewObligationSource(ordersRepo),
		aap.NewObligationSource(purchasesRepo),
	}
	paymentsSvc, err := payments.NewService(txnsRepo, dbClient, creditSvc, sources, cfg.Credit)
	exitOnErr(logg, "payments service", err)

	withdrawalsSvc, err := withdrawals.NewService(withdrawalsRepo, dbClient, accountsRepo, txnsRepo)
	exitOnErr(logg, "withdrawals service", err)

	gateway, err := paystack.New(cfg.Paystack)
	exitOnErr(logg, "paystack client", err)

	notifier := notify.New(cfg.Sendgrid, cfg.Sendgrid.AdminEmail, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			accountsSvc,
			productsSvc,
			ordersSvc,
			purchasesSvc,
			paymentsSvc,
			withdrawalsSvc,
			gateway,
			notifier,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func exitOnErr(logg *logger.Logger, what string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+what, err)
	os.Exit(1)
}
