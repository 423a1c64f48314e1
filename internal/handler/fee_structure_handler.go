package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type feeCatalogService interface {
	Get(ctx context.Context, id string) (*models.FeeStructure, bool, error)
	List(ctx context.Context, filter models.FeeStructureFilter) ([]models.FeeStructure, *models.Pagination, error)
	Create(ctx context.Context, req dto.CreateFeeStructureRequest) (*models.FeeStructure, error)
	Update(ctx context.Context, id string, req dto.UpdateFeeStructureRequest) (*models.FeeStructure, error)
}

// FeeStructureHandler manages the fee catalog.
type FeeStructureHandler struct {
	fees feeCatalogService
}

// NewFeeStructureHandler constructs the handler.
func NewFeeStructureHandler(fees feeCatalogService) *FeeStructureHandler {
	return &FeeStructureHandler{fees: fees}
}

// List godoc
// @Summary List fee structures
// @Tags Fee Structures
// @Produce json
// @Param type query string false "EXAM_FEE or CERTIFICATE_FEE"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /billing/fee-structures [get]
func (h *FeeStructureHandler) List(c *gin.Context) {
	var filter models.FeeStructureFilter
	if raw := c.Query("type"); raw != "" {
		feeType := models.FeeType(raw)
		filter.Type = &feeType
	}
	filter.Active = parseBool(c.Query("active"))
	filter.Page = parseQueryInt(c, "page", 1)
	filter.PageSize = parseQueryInt(c, "limit", 20)

	fees, pagination, err := h.fees.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if fees == nil {
		fees = []models.FeeStructure{}
	}
	response.JSON(c, http.StatusOK, fees, pagination)
}

// Get godoc
// @Summary Get fee structure
// @Tags Fee Structures
// @Produce json
// @Param id path string true "Fee structure ID"
// @Success 200 {object} response.Envelope
// @Router /billing/fee-structures/{id} [get]
func (h *FeeStructureHandler) Get(c *gin.Context) {
	fee, cacheHit, err := h.fees.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, fee, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create fee structure
// @Tags Fee Structures
// @Accept json
// @Produce json
// @Param payload body dto.CreateFeeStructureRequest true "Fee structure payload"
// @Success 201 {object} response.Envelope
// @Router /billing/fee-structures [post]
func (h *FeeStructureHandler) Create(c *gin.Context) {
	var req dto.CreateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fee, err := h.fees.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, fee.ID)
	response.Created(c, fee)
}

// Update godoc
// @Summary Update fee structure
// @Tags Fee Structures
// @Accept json
// @Produce json
// @Param id path string true "Fee structure ID"
// @Param payload body dto.UpdateFeeStructureRequest true "Fee structure payload"
// @Success 200 {object} response.Envelope
// @Router /billing/fee-structures/{id} [put]
func (h *FeeStructureHandler) Update(c *gin.Context) {
	var req dto.UpdateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fee, err := h.fees.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, fee)
}
