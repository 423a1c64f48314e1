package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/handler"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/service"
	"github.com/noah-isme/sma-billing-api/pkg/config"
	"github.com/noah-isme/sma-billing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-billing-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens  middleware.TokenValidator
	audit   middleware.AuditWriter
	metrics *service.MetricsService
	billing *handler.BillingHandler
	fees    *handler.FeeStructureHandler
	stats   *handler.StatisticsHandler
	ops     *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(deps.metrics, "/metrics", "/health"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	bursary := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleBursar}
	admins := []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}

	billing := r.Group(cfg.APIPrefix + "/billing")
	billing.Use(middleware.JWT(deps.tokens))
	{
		ledger := billing.Group("", middleware.RequireRoles(bursary...))
		ledger.POST("/exam-bills", middleware.Audit(deps.audit, logr, models.AuditActionBillCreate, models.AuditResourceBill), deps.billing.CreateExamBill)
		ledger.POST("/certificate-bills", middleware.Audit(deps.audit, logr, models.AuditActionBillCreate, models.AuditResourceBill), deps.billing.CreateCertificateBill)
		ledger.GET("/bills", deps.billing.ListBills)
		ledger.GET("/bills/:id", deps.billing.GetBill)
		ledger.POST("/bills/:id/payments", middleware.Audit(deps.audit, logr, models.AuditActionPaymentApply, models.AuditResourcePayment), deps.billing.ApplyPayment)
		ledger.GET("/bills/:id/payments", deps.billing.ListPayments)
		ledger.GET("/bills/:id/snapshot", deps.billing.Snapshot)
		ledger.GET("/overdue", deps.billing.ListOverdue)
		ledger.GET("/fee-structures", deps.fees.List)
		ledger.GET("/fee-structures/:id", deps.fees.Get)

		manage := billing.Group("", middleware.RequireRoles(admins...))
		manage.GET("/statistics", deps.stats.Get)
		manage.POST("/fee-structures", middleware.Audit(deps.audit, logr, models.AuditActionFeeStructureWrite, models.AuditResourceFeeStructure), deps.fees.Create)
		manage.PUT("/fee-structures/:id", middleware.Audit(deps.audit, logr, models.AuditActionFeeStructureWrite, models.AuditResourceFeeStructure), deps.fees.Update)
	}

	return r
}
