package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tessera/internal/config"
	"tessera/internal/database"
	"tessera/internal/handlers"
	"tessera/internal/logger"
	"tessera/internal/middleware"
	"tessera/internal/services"
	"tessera/internal/validator"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Initialize services
	db := dbManager.DB()
	ledgerService := services.NewLedgerService(db, appConfig.LedgerLockTimeout, appConfig.DividendWorkers)
	complianceService := services.NewComplianceService(db, appConfig)
	priceService := services.NewPriceService(db, ledgerService)
	transferService := services.NewTransferService(ledgerService, complianceService, priceService)
	valuationService := services.NewValuationService(db, ledgerService, priceService)
	dividendService := services.NewDividendService(db, ledgerService)
	auditService := services.NewAuditService(db)

	// Re-derive the conservation invariant for every asset before serving.
	// Assets that fail stay halted; the rest of the ledger keeps running.
	if failures := ledgerService.VerifyAll(); len(failures) > 0 {
		for _, verifyErr := range failures {
			log.Errorw("conservation audit failed at startup", "error", verifyErr.Error())
		}
	}

	// Initialize handlers
	assetHandler := handlers.NewAssetHandler(ledgerService, priceService, auditService)
	transferHandler := handlers.NewTransferHandler(transferService, ledgerService, auditService)
	complianceHandler := handlers.NewComplianceHandler(complianceService, auditService)
	valuationHandler := handlers.NewValuationHandler(valuationService)
	dividendHandler := handlers.NewDividendHandler(dividendService, auditService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Price feed routes, authenticated by shared API key rather than JWT.
	feed := v1.Group("/feed")
	feed.Use(middleware.FeedAuthMiddleware(appConfig.PriceFeedKey))
	feed.POST("/assets/:id/prices", assetHandler.RecordPrice)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// Asset routes
	assets := protected.Group("/assets")
	assets.GET("", assetHandler.ListAssets)
	assets.GET("/:id", assetHandler.GetAsset)
	assets.GET("/:id/holders", assetHandler.GetHolders)
	assets.GET("/:id/transactions", assetHandler.GetAssetTransactions)
	assets.GET("/:id/schedule", dividendHandler.GetSchedule)
	assets.GET("/:id/yield", valuationHandler.GetYield)

	// Transfer routes
	transfers := protected.Group("/transfers")
	transfers.POST("/purchase", transferHandler.Purchase)
	transfers.POST("/sale", transferHandler.Sell)
	transfers.POST("", transferHandler.Transfer)

	// Investor routes
	investors := protected.Group("/investors")
	investors.GET("/:id", complianceHandler.GetInvestor)
	investors.GET("/:id/balances/:assetID", transferHandler.GetBalance)
	investors.GET("/:id/transactions", transferHandler.GetInvestorTransactions)
	investors.GET("/:id/portfolio", valuationHandler.GetPortfolio)
	investors.GET("/:id/gain/:assetID", valuationHandler.GetGain)

	// Operator routes
	operator := protected.Group("/")
	operator.Use(middleware.OperatorRequired())
	operator.POST("/assets", assetHandler.IssueAsset)
	operator.POST("/assets/:id/deactivate", assetHandler.DeactivateAsset)
	operator.POST("/assets/:id/verify", assetHandler.VerifyAsset)
	operator.POST("/assets/:id/schedule", dividendHandler.DeclareSchedule)
	operator.POST("/dividends/run", dividendHandler.RunDue)
	operator.POST("/investors", complianceHandler.Onboard)
	operator.POST("/investors/:id/checks", complianceHandler.SubmitCheck)
	operator.POST("/investors/:id/reopen", complianceHandler.Reopen)
	operator.POST("/investors/:id/suspend", complianceHandler.Suspend)
	operator.POST("/investors/:id/reinstate", complianceHandler.Reinstate)

	// Dividend scheduler
	scheduler := services.NewScheduler(dividendService)
	if err := scheduler.Start(appConfig.DividendCron); err != nil {
		return fmt.Errorf("failed to start dividend scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:    ":" + appConfig.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Tessera API server on port %s", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Infow("shutting down", "signal", sig.String())
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return dbManager.Close()
}
