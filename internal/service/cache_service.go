package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

// Cache key namespaces.
const (
	cacheKeyPrefix       = "billing"
	statsCacheNamespace  = "stats"
	feeCacheNamespace    = "fee"
	statsCachePattern    = cacheKeyPrefix + ":" + statsCacheNamespace + ":*"
	statsGenerationKey   = cacheKeyPrefix + ":" + statsCacheNamespace + "-generation"
	defaultCacheTTLValue = 10 * time.Minute
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTLValue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
// Backend failures are logged and reported as misses so callers fall back to the database.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes specific keys.
func (s *CacheService) Delete(ctx context.Context, keys ...string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// StatisticsGeneration returns the current statistics generation. Reports are
// cached under the generation read before they were computed, so a report
// built from data older than the last invalidation is never served.
func (s *CacheService) StatisticsGeneration(ctx context.Context) int64 {
	if !s.Enabled() {
		return 0
	}
	var generation int64
	if err := s.repo.Get(ctx, statsGenerationKey, &generation); err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache generation read failed", zap.String("key", statsGenerationKey), zap.Error(err))
		}
		return 0
	}
	return generation
}

// InvalidateStatistics moves statistics to a new generation and drops the
// reports cached so far.
func (s *CacheService) InvalidateStatistics(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	if _, err := s.repo.Incr(ctx, statsGenerationKey); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("key", statsGenerationKey), zap.Error(err))
	}
	s.Invalidate(ctx, statsCachePattern)
}

func makeCacheKey(namespace string, parts ...string) string {
	filtered := make([]string, 0, len(parts)+2)
	filtered = append(filtered, cacheKeyPrefix, namespace)
	for _, part := range parts {
		if part == "" {
			part = "all"
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, ":")
}

func statsCacheKey(generation int64, days int, schoolID string) string {
	return makeCacheKey(statsCacheNamespace, fmt.Sprintf("g%d", generation), fmt.Sprintf("%dd", days), schoolID)
}

func feeCacheKey(id string) string {
	return makeCacheKey(feeCacheNamespace, id)
}
