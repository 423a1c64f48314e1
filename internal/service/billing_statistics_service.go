package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/middleware/requestid"
)

const (
	defaultStatsDays      = 30
	maxStatsDays          = 366
	defaultRecentPayments = 10
)

type billingStatisticsRepository interface {
	BillSummary(ctx context.Context, window models.StatisticsWindow) ([]models.BillStatusSummary, error)
	PaymentMethodSummary(ctx context.Context, window models.StatisticsWindow) ([]models.PaymentMethodSummary, error)
	RecentPayments(ctx context.Context, window models.StatisticsWindow, limit int) ([]models.RecentPayment, error)
}

// BillingStatisticsConfig tunes the statistics report.
type BillingStatisticsConfig struct {
	RecentPayments int
	CacheTTL       time.Duration
}

// BillingStatisticsService aggregates both bill kinds into one report.
type BillingStatisticsService struct {
	repo    billingStatisticsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	config  BillingStatisticsConfig
	now     func() time.Time
}

// NewBillingStatisticsService constructs the statistics service.
func NewBillingStatisticsService(repo billingStatisticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg BillingStatisticsConfig) *BillingStatisticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RecentPayments <= 0 {
		cfg.RecentPayments = defaultRecentPayments
	}
	return &BillingStatisticsService{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns statistics for the trailing window of days, optionally scoped
// to a school. The boolean reports whether the result came from cache.
func (s *BillingStatisticsService) Get(ctx context.Context, days int, schoolID string) (*models.BillingStatistics, bool, error) {
	if days == 0 {
		days = defaultStatsDays
	}
	if days < 1 || days > maxStatsDays {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "days must be between 1 and 366")
	}

	key := statsCacheKey(s.cache.StatisticsGeneration(ctx), days, schoolID)
	var cached models.BillingStatistics
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	now := s.now()
	window := models.StatisticsWindow{From: now.AddDate(0, 0, -days), To: now, SchoolID: schoolID}

	start := time.Now()
	summary, err := s.repo.BillSummary(ctx, window)
	if err != nil {
		return nil, false, s.internal(ctx, "bill summary", err)
	}
	methods, err := s.repo.PaymentMethodSummary(ctx, window)
	if err != nil {
		return nil, false, s.internal(ctx, "payment method summary", err)
	}
	recent, err := s.repo.RecentPayments(ctx, window, s.config.RecentPayments)
	if err != nil {
		return nil, false, s.internal(ctx, "recent payments", err)
	}
	s.metrics.ObserveDBQuery("billing_statistics", time.Since(start))

	if summary == nil {
		summary = []models.BillStatusSummary{}
	}
	if methods == nil {
		methods = []models.PaymentMethodSummary{}
	}
	if recent == nil {
		recent = []models.RecentPayment{}
	}

	stats := &models.BillingStatistics{
		From:           window.From,
		To:             window.To,
		SchoolID:       schoolID,
		Bills:          summary,
		Totals:         models.SummarizeByKind(summary),
		PaymentMethods: methods,
		RecentPayments: recent,
		GeneratedAt:    now,
	}
	s.cache.Set(ctx, key, stats, s.config.CacheTTL)
	return stats, false, nil
}

func (s *BillingStatisticsService) internal(ctx context.Context, part string, err error) error {
	s.logger.Error("billing statistics query failed",
		zap.String("part", part),
		zap.String("request_id", requestid.FromContext(ctx)),
		zap.Error(err),
	)
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing statistics")
}
