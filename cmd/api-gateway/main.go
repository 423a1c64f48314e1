package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-billing-api/api/swagger"
	"github.com/noah-isme/sma-billing-api/internal/handler"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	"github.com/noah-isme/sma-billing-api/internal/service"
	"github.com/noah-isme/sma-billing-api/pkg/cache"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/database"
	"github.com/noah-isme/sma-billing-api/pkg/logger"
)

// @title SMA Billing API
// @version 1.0.0
// @description Exam and certificate billing ledger with partial payments
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Billing.StatsCacheTTL, logr, cfg.Billing.CacheEnabled && cacheRepo.Enabled())

	billRepo := repository.NewBillRepository(db)
	ledger := service.NewLedgerService(
		billRepo,
		repository.NewDirectoryRepository(db),
		cacheSvc,
		metrics,
		validate,
		logr,
		service.LedgerConfig{TransactionTimeout: cfg.Billing.TransactionTimeout},
	)
	fees := service.NewFeeCatalogService(repository.NewFeeStructureRepository(db), cacheSvc, validate, logr, cfg.Billing.DefaultCurrency, cfg.Billing.FeeCacheTTL)
	stats := service.NewBillingStatisticsService(repository.NewBillingStatisticsRepository(db), cacheSvc, metrics, logr, service.BillingStatisticsConfig{
		RecentPayments: cfg.Billing.RecentPayments,
		CacheTTL:       cfg.Billing.StatsCacheTTL,
	})
	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Expiry: cfg.JWT.Expiration})

	checks := map[string]handler.Pinger{"postgres": db}
	if cacheRepo.Enabled() {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}

	router := newRouter(cfg, logr, routerDeps{
		tokens:  tokens,
		audit:   repository.NewAuditRepository(db),
		metrics: metrics,
		billing: handler.NewBillingHandler(ledger),
		fees:    handler.NewFeeStructureHandler(fees),
		stats:   handler.NewStatisticsHandler(stats),
		ops:     handler.NewMetricsHandler(metrics, checks),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Overdue.Enabled {
		sweeper, err := service.NewOverdueSweeper(ledger, metrics, logr, service.OverdueSweeperConfig{
			Schedule: cfg.Overdue.Schedule,
			Timeout:  cfg.Overdue.Timeout,
		})
		if err != nil {
			logr.Fatal("invalid overdue sweep configuration", zap.Error(err))
		}
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
