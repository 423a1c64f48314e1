package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type statisticsService interface {
	Get(ctx context.Context, days int, schoolID string) (*models.BillingStatistics, bool, error)
}

// StatisticsHandler serves the billing report.
type StatisticsHandler struct {
	stats statisticsService
}

// NewStatisticsHandler constructs the handler.
func NewStatisticsHandler(stats statisticsService) *StatisticsHandler {
	return &StatisticsHandler{stats: stats}
}

// Get godoc
// @Summary Billing statistics across exam and certificate bills
// @Tags Billing
// @Produce json
// @Param days query int false "Trailing window in days (1-366, default 30)"
// @Param schoolId query string false "Restrict to a school"
// @Success 200 {object} response.Envelope
// @Router /billing/statistics [get]
func (h *StatisticsHandler) Get(c *gin.Context) {
	if h.stats == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	days := parseQueryInt(c, "days", 30)
	stats, cacheHit, err := h.stats.Get(c.Request.Context(), days, strings.TrimSpace(c.Query("schoolId")))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}
