package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"affiliate-api/internal/cache"
	"affiliate-api/internal/config"
	"affiliate-api/internal/controller"
	"affiliate-api/internal/database"
	"affiliate-api/internal/engine"
	"affiliate-api/internal/external"
	"affiliate-api/internal/middleware"
	"affiliate-api/internal/monitoring"
	"affiliate-api/internal/service"
	"affiliate-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger.Init(cfg.Logging)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}

	publisher := buildPublisher(cfg)
	defer publisher.Close()

	metrics := monitoring.NewPrometheusMetrics()
	monitoring.StartSystemMetricsRecording(metrics, 15*time.Second)

	repos := db.Repositories

	// Engines
	placementEngine := engine.NewPlacementEngine(repos.Affiliate, repos.LockManager, cfg.Network)
	qualification := engine.NewQualificationEvaluator(repos.Affiliate)
	distributionEngine := engine.NewDistributionEngine(
		repos.Purchase,
		repos.Affiliate,
		repos.Distribution,
		repos.Ledger,
		repos.Settings,
		qualification,
		repos.LockManager,
	)

	// Services
	treeCache := cache.NewTreeCache(db.RedisDB, cfg.Redis.TreeCacheTTL)
	affiliateService := service.NewAffiliateService(repos.Affiliate, repos.Ledger, placementEngine, publisher)
	purchaseService := service.NewPurchaseService(repos.Purchase, repos.Distribution, distributionEngine, publisher)
	withdrawalService := service.NewWithdrawalService(repos.Withdrawal, repos.Ledger, repos.LockManager, publisher, cfg.Withdrawal.FeeAmount)
	networkService := service.NewNetworkService(repos.Affiliate, treeCache, cfg.Network)
	adminService := service.NewAdminService(repos.Settings)

	// Controllers
	affiliateController := controller.NewAffiliateController(affiliateService)
	purchaseController := controller.NewPurchaseController(purchaseService)
	withdrawalController := controller.NewWithdrawalController(withdrawalService)
	networkController := controller.NewNetworkController(networkService)
	adminController := controller.NewAdminController(adminService)
	healthController := controller.NewHealthController(db)

	authMiddleware := middleware.NewAuthMiddleware(
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTIssuer,
		cfg.Auth.InternalAPIKey,
		cfg.Auth.AdminAPIKey,
	)

	router := setupRouter(cfg, metrics,
		affiliateController, purchaseController, withdrawalController,
		networkController, adminController, healthController,
		authMiddleware,
	)

	scheduler := startMaintenance(db, repos)
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Forced shutdown")
	}

	if err := db.Close(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Failed to close database connections")
	}

	logrus.Info("Server stopped")
}

func buildPublisher(cfg *config.Config) external.EventPublisher {
	if !cfg.RabbitMQ.Enabled {
		return external.NewNoopPublisher()
	}

	publisher, err := external.NewRabbitPublisher(&external.PublisherConfig{
		URL:          cfg.RabbitMQ.URL,
		ExchangeName: cfg.RabbitMQ.Exchange,
	})
	if err != nil {
		logrus.WithError(err).Warn("Failed to connect to RabbitMQ, events disabled")
		return external.NewNoopPublisher()
	}
	return publisher
}

func setupRouter(
	cfg *config.Config,
	metrics monitoring.MetricsService,
	affiliateController *controller.AffiliateController,
	purchaseController *controller.PurchaseController,
	withdrawalController *controller.WithdrawalController,
	networkController *controller.NetworkController,
	adminController *controller.AdminController,
	healthController *controller.HealthController,
	authMiddleware *middleware.AuthMiddleware,
) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.SetTrustedProxies(cfg.Server.TrustedProxies)

	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(cors.Default())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.MetricsCollector(metrics))

	if cfg.Monitoring.EnableHealthCheck {
		router.GET("/health", healthController.Health)
		router.GET("/ready", healthController.Ready)
	}
	if cfg.Monitoring.EnableMetrics {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api")

	// Registration is open; everything else under /api/affiliates needs a
	// token.
	api.POST("/affiliates", affiliateController.Register)

	affiliates := api.Group("/affiliates")
	affiliates.Use(authMiddleware.JWTAuth())
	{
		affiliates.GET("/:id", affiliateController.GetAffiliate)
		affiliates.GET("/:id/balance", affiliateController.GetBalance)
		affiliates.PUT("/:id/preference", affiliateController.SetPreference)
		affiliates.PUT("/:id/pix-key", affiliateController.SetPixKey)
		affiliates.GET("/:id/network", networkController.GetNetworkTree)
		affiliates.GET("/:id/network/stats", networkController.GetLevelStats)
		affiliates.POST("/:id/withdrawals", withdrawalController.RequestWithdrawal)
		affiliates.GET("/:id/withdrawals", withdrawalController.ListWithdrawals)
	}

	purchases := api.Group("/purchases")
	purchases.Use(authMiddleware.InternalAPIAuth())
	{
		purchases.POST("", purchaseController.RecordPurchase)
		purchases.GET("/:id/distributions", purchaseController.GetDistributions)
	}

	admin := api.Group("/admin")
	admin.Use(authMiddleware.AdminAuth())
	{
		admin.GET("/commission-settings", adminController.GetCommissionSettings)
		admin.PUT("/commission-settings", adminController.UpdateCommissionSettings)
		admin.POST("/withdrawals/:id/process", withdrawalController.ProcessWithdrawal)
	}

	return router
}

// startMaintenance schedules the monthly activity reset and the redis lock
// sweep.
func startMaintenance(db *database.Database, repos *database.Repositories) *cron.Cron {
	scheduler := cron.New()

	// First day of each month: clear activity flags from previous periods.
	scheduler.AddFunc("0 0 1 * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		period := time.Now().UTC().Format("2006-01")
		cleared, err := repos.Ledger.ResetMonthlyActivity(ctx, period)
		if err != nil {
			logrus.WithError(err).Error("Monthly activity reset failed")
			return
		}
		logrus.WithField("cleared", cleared).Info("Monthly activity reset completed")
	})

	// Hourly: sweep orphaned lock keys.
	scheduler.AddFunc("0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := db.RunMaintenance(ctx); err != nil {
			logrus.WithError(err).Error("Lock sweep failed")
		}
	})

	scheduler.Start()
	return scheduler
}
