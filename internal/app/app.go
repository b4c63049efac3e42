package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"payflow_backend/database"
	"payflow_backend/internal/config"
	"payflow_backend/internal/email"
	"payflow_backend/internal/gateways"
	"payflow_backend/internal/handlers"
	"payflow_backend/internal/logger"
	"payflow_backend/internal/middleware"
	"payflow_backend/internal/repositories"
	"payflow_backend/internal/routes"
	"payflow_backend/internal/services"
	"payflow_backend/internal/validator"
	"payflow_backend/internal/workers"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	gormDB, err := database.ConnectGorm()
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if err := database.AutoMigrate(); err != nil {
		logger.Fatal("Migration failed", "error", err)
	}

	ginRouter, worker := SetupRouter(cfg, gormDB)
	worker.Start(context.Background())

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info(fmt.Sprintf("Server starting on %s", address))
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

// SetupRouter builds the full dependency graph and the gin engine. It is
// separate from Run so integration tests can assemble the router against
// their own database handle.
func SetupRouter(cfg *config.Config, gormDB *gorm.DB) (*gin.Engine, *workers.PaymentWorker) {
	paymentRepo := repositories.NewPaymentRepository()
	transactionRepo := repositories.NewTransactionRepository()
	webhookRepo := repositories.NewWebhookEventRepository()
	txManager := repositories.NewTxManager()

	selector := gateways.NewSelector(
		[]gateways.Gateway{
			gateways.NewStripe(cfg.Gateways.Stripe),
			gateways.NewPaystack(cfg.Gateways.Paystack),
			gateways.NewFlutterwave(cfg.Gateways.Flutterwave),
			gateways.NewMTNMoMo(cfg.Gateways.MTNMoMo),
		},
		cfg.Gateways.Priority,
		cfg.Gateways.RegionalPreferences,
	)

	currencyService, err := services.NewCurrencyService(cfg)
	if err != nil {
		logger.Fatal("Invalid currency configuration", "error", err)
	}
	fraudService := services.NewFraudService(cfg, paymentRepo, currencyService)
	notificationService := services.NewNotificationService(cfg, email.NewSMTPSender(cfg))
	paymentService := services.NewPaymentService(
		cfg,
		paymentRepo,
		transactionRepo,
		webhookRepo,
		txManager,
		selector,
		fraudService,
		currencyService,
		notificationService,
	)

	customValidator := validator.New()
	paymentHandler := handlers.NewPaymentHandler(customValidator, paymentService)
	webhookHandler := handlers.NewWebhookHandler(customValidator, paymentService)

	worker := workers.NewPaymentWorker(gormDB, cfg, paymentRepo, paymentService)

	ginRouter := initializeGinRouter(gormDB)
	routes.SetupRoutes(ginRouter, paymentHandler, webhookHandler)

	return ginRouter, worker
}

func initializeGinRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.DBMiddleware(db))
	return router
}
