package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/response"
)

type ledgerService interface {
	CreateExamBill(ctx context.Context, req dto.CreateExamBillRequest, actorID string) (*models.Bill, error)
	CreateCertificateBill(ctx context.Context, req dto.CreateCertificateBillRequest, actorID string) (*models.Bill, error)
	ApplyPayment(ctx context.Context, req dto.ApplyPaymentRequest, actorID string) (*models.PaymentResult, error)
	GetBill(ctx context.Context, id string) (*models.Bill, error)
	ListBills(ctx context.Context, filter models.BillFilter) ([]models.Bill, *models.Pagination, error)
	ListOverdue(ctx context.Context, filter models.OverdueFilter) ([]models.Bill, *models.Pagination, error)
	ListPayments(ctx context.Context, billID string) ([]models.Payment, error)
	Snapshot(ctx context.Context, billID string) (*models.BillSnapshot, error)
}

// BillingHandler exposes bill issuance, payments and ledger reads.
type BillingHandler struct {
	ledger ledgerService
}

// NewBillingHandler constructs the handler.
func NewBillingHandler(ledger ledgerService) *BillingHandler {
	return &BillingHandler{ledger: ledger}
}

// CreateExamBill godoc
// @Summary Issue an exam bill
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body dto.CreateExamBillRequest true "Exam bill payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /billing/exam-bills [post]
func (h *BillingHandler) CreateExamBill(c *gin.Context) {
	var req dto.CreateExamBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bill, err := h.ledger.CreateExamBill(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, bill.ID)
	response.Created(c, bill)
}

// CreateCertificateBill godoc
// @Summary Issue a certificate bill
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body dto.CreateCertificateBillRequest true "Certificate bill payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /billing/certificate-bills [post]
func (h *BillingHandler) CreateCertificateBill(c *gin.Context) {
	var req dto.CreateCertificateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	bill, err := h.ledger.CreateCertificateBill(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, bill.ID)
	response.Created(c, bill)
}

// ApplyPayment godoc
// @Summary Apply a payment to a bill
// @Description Partial payments are accepted. Amounts above the outstanding balance are rejected.
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Bill ID"
// @Param payload body dto.ApplyPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /billing/bills/{id}/payments [post]
func (h *BillingHandler) ApplyPayment(c *gin.Context) {
	var req dto.ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.BillID = c.Param("id")
	req.BillType = strings.ToUpper(strings.TrimSpace(req.BillType))
	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))

	result, err := h.ledger.ApplyPayment(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListBills godoc
// @Summary List bills of both kinds
// @Tags Billing
// @Produce json
// @Param type query string false "EXAM or CERTIFICATE"
// @Param status query string false "PENDING, PARTIALLY_PAID or COMPLETED"
// @Param studentId query string false "Filter by student"
// @Param schoolId query string false "Filter by school"
// @Param dueFrom query string false "Due on or after (YYYY-MM-DD)"
// @Param dueTo query string false "Due on or before (YYYY-MM-DD)"
// @Param search query string false "Search by bill number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "created_at, due_date, bill_no or balance"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /billing/bills [get]
func (h *BillingHandler) ListBills(c *gin.Context) {
	var filter models.BillFilter
	kind, err := parseBillKind(c.Query("type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.Kind = kind
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("status"))); raw != "" {
		status := models.BillStatus(raw)
		filter.Status = &status
	}
	if filter.DueFrom, err = parseDateParam(c.Query("dueFrom")); err != nil {
		response.Error(c, err)
		return
	}
	if filter.DueTo, err = parseDateParam(c.Query("dueTo")); err != nil {
		response.Error(c, err)
		return
	}
	filter.StudentID = strings.TrimSpace(c.Query("studentId"))
	filter.SchoolID = strings.TrimSpace(c.Query("schoolId"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page = parseQueryInt(c, "page", 1)
	filter.PageSize = parseQueryInt(c, "limit", 20)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	bills, pagination, err := h.ledger.ListBills(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bills, pagination)
}

// GetBill godoc
// @Summary Get bill detail
// @Tags Billing
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /billing/bills/{id} [get]
func (h *BillingHandler) GetBill(c *gin.Context) {
	bill, err := h.ledger.GetBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, bill)
}

// ListPayments godoc
// @Summary List payments recorded against a bill
// @Tags Billing
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Router /billing/bills/{id}/payments [get]
func (h *BillingHandler) ListPayments(c *gin.Context) {
	payments, err := h.ledger.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	response.OK(c, payments)
}

// Snapshot godoc
// @Summary Bill and payment snapshot for invoice rendering
// @Tags Billing
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {object} response.Envelope
// @Router /billing/bills/{id}/snapshot [get]
func (h *BillingHandler) Snapshot(c *gin.Context) {
	snapshot, err := h.ledger.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snapshot)
}

// ListOverdue godoc
// @Summary List overdue bills across kinds, oldest due date first
// @Tags Billing
// @Produce json
// @Param type query string false "EXAM or CERTIFICATE"
// @Param schoolId query string false "Filter by school"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /billing/overdue [get]
func (h *BillingHandler) ListOverdue(c *gin.Context) {
	kind, err := parseBillKind(c.Query("type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.OverdueFilter{
		SchoolID: strings.TrimSpace(c.Query("schoolId")),
		Kind:     kind,
		Page:     parseQueryInt(c, "page", 1),
		PageSize: parseQueryInt(c, "limit", 20),
	}
	bills, pagination, err := h.ledger.ListOverdue(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bills, pagination)
}
