package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
	"github.com/noah-isme/sma-billing-api/pkg/middleware/requestid"
)

const defaultTransactionTimeout = 10 * time.Second

type billRepository interface {
	Create(ctx context.Context, params repository.CreateBillParams) (*models.Bill, error)
	ApplyPayment(ctx context.Context, input models.PaymentInput, now time.Time) (*models.PaymentResult, error)
	FindByID(ctx context.Context, id string) (*models.Bill, error)
	List(ctx context.Context, filter models.BillFilter) ([]models.Bill, int, error)
	ListOverdue(ctx context.Context, filter models.OverdueFilter) ([]models.Bill, int, error)
	CountOverdue(ctx context.Context, now time.Time) ([]models.OverdueCount, error)
	ListPayments(ctx context.Context, billID string) ([]models.Payment, error)
}

type directoryRepository interface {
	StudentExists(ctx context.Context, id string) (bool, error)
	ExamExists(ctx context.Context, id string) (bool, error)
	CertificateExists(ctx context.Context, id string) (bool, error)
}

// LedgerConfig tunes the ledger service.
type LedgerConfig struct {
	TransactionTimeout time.Duration
}

// LedgerService issues bills, applies payments and exposes ledger reads.
// It trusts the actor id it is given; role checks belong to the caller.
type LedgerService struct {
	bills     billRepository
	directory directoryRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    LedgerConfig
	now       func() time.Time
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(bills billRepository, directory directoryRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg LedgerConfig) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TransactionTimeout <= 0 {
		cfg.TransactionTimeout = defaultTransactionTimeout
	}
	return &LedgerService{
		bills:     bills,
		directory: directory,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateExamBill issues a bill for an exam sitting, reusing the student's
// existing exam assessment when one exists.
func (s *LedgerService) CreateExamBill(ctx context.Context, req dto.CreateExamBillRequest, actorID string) (*models.Bill, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam bill payload")
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	if err := s.ensureExists(ctx, "student", req.StudentID, s.directory.StudentExists); err != nil {
		return nil, err
	}
	if err := s.ensureExists(ctx, "exam", req.ExamID, s.directory.ExamExists); err != nil {
		return nil, err
	}

	return s.createBill(ctx, repository.CreateBillParams{
		StudentID:      req.StudentID,
		Ref:            models.ExamRef(req.ExamID),
		FeeStructureID: req.FeeStructureID,
		DueDate:        dueDate,
		Description:    trimOptional(req.Description),
		ActorID:        actorID,
	})
}

// CreateCertificateBill issues a bill for certificate copies. Every call
// records a new assessment.
func (s *LedgerService) CreateCertificateBill(ctx context.Context, req dto.CreateCertificateBillRequest, actorID string) (*models.Bill, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate bill payload")
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}
	if err := s.ensureExists(ctx, "student", req.StudentID, s.directory.StudentExists); err != nil {
		return nil, err
	}
	certificateID := trimOptional(req.CertificateID)
	if certificateID != nil {
		if err := s.ensureExists(ctx, "certificate", *certificateID, s.directory.CertificateExists); err != nil {
			return nil, err
		}
	}

	return s.createBill(ctx, repository.CreateBillParams{
		StudentID:      req.StudentID,
		Ref:            models.CertificateRef(certificateID, req.Quantity),
		FeeStructureID: req.FeeStructureID,
		DueDate:        dueDate,
		Description:    trimOptional(req.Description),
		ActorID:        actorID,
	})
}

func (s *LedgerService) createBill(ctx context.Context, params repository.CreateBillParams) (*models.Bill, error) {
	if err := params.Ref.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid billable reference")
	}
	if strings.TrimSpace(params.ActorID) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}
	params.Now = s.now()

	txCtx, cancel := context.WithTimeout(ctx, s.config.TransactionTimeout)
	defer cancel()

	start := time.Now()
	bill, err := s.bills.Create(txCtx, params)
	s.metrics.ObserveDBQuery("billing_create_bill", time.Since(start))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrFeeStructureNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee structure not found")
		case errors.Is(err, repository.ErrFeeTypeMismatch):
			return nil, appErrors.Clone(appErrors.ErrValidation, "fee structure type does not match bill type")
		case errors.Is(err, repository.ErrFeeStructureInactive):
			return nil, appErrors.Clone(appErrors.ErrValidation, "fee structure is inactive")
		case errors.Is(err, repository.ErrAssessmentBilled):
			return nil, appErrors.Clone(appErrors.ErrConflict, "a bill has already been issued for this assessment")
		}
		s.log(ctx).Error("create bill failed",
			zap.String("kind", string(params.Ref.Kind)),
			zap.String("student_id", params.StudentID),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bill")
	}

	s.metrics.RecordBillCreated(bill.Kind)
	s.cache.InvalidateStatistics(ctx)
	s.log(ctx).Info("bill created",
		zap.String("bill_id", bill.ID),
		zap.String("bill_no", bill.BillNo),
		zap.String("kind", string(bill.Kind)),
		zap.String("total", bill.TotalAmount.StringFixed(models.MoneyScale)),
	)
	return bill, nil
}

// ApplyPayment records a payment against a bill and returns the new status
// and remaining balance. It is never retried automatically. The amount is
// checked only after the bill is locked, so a missing bill reports NotFound
// and a settled bill InvalidState whatever the amount.
func (s *LedgerService) ApplyPayment(ctx context.Context, req dto.ApplyPaymentRequest, actorID string) (*models.PaymentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if strings.TrimSpace(actorID) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}

	input := models.PaymentInput{
		BillID:        req.BillID,
		Kind:          models.BillKind(req.BillType),
		Amount:        req.Amount,
		Method:        models.PaymentMethod(req.Method),
		TransactionID: trimOptional(req.TransactionID),
		GatewayRef:    trimOptional(req.GatewayRef),
		Remarks:       trimOptional(req.Remarks),
		ActorID:       actorID,
	}

	txCtx, cancel := context.WithTimeout(ctx, s.config.TransactionTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.bills.ApplyPayment(txCtx, input, s.now())
	s.metrics.ObserveDBQuery("billing_apply_payment", time.Since(start))
	if err != nil {
		return nil, s.mapPaymentError(ctx, input, err)
	}

	s.metrics.RecordPayment(input.Kind, input.Method, result.Payment.Currency, result.Payment.Amount)
	s.cache.InvalidateStatistics(ctx)
	s.log(ctx).Info("payment applied",
		zap.String("bill_id", input.BillID),
		zap.String("payment_id", result.Payment.PaymentID),
		zap.String("amount", result.Payment.Amount.StringFixed(models.MoneyScale)),
		zap.String("status", string(result.BillStatus)),
	)
	return result, nil
}

func (s *LedgerService) mapPaymentError(ctx context.Context, input models.PaymentInput, err error) error {
	var mapped *appErrors.Error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		mapped = appErrors.Clone(appErrors.ErrNotFound, "bill not found")
	case errors.Is(err, models.ErrBillSettled):
		mapped = appErrors.Clone(appErrors.ErrInvalidState, "bill is already settled")
	case errors.Is(err, models.ErrNonPositiveAmount), errors.Is(err, models.ErrAmountPrecision):
		mapped = appErrors.Clone(appErrors.ErrValidation, err.Error())
	case errors.Is(err, models.ErrPaymentExceedsBalance):
		mapped = appErrors.Clone(appErrors.ErrConflict, "payment amount exceeds outstanding balance")
	}
	if mapped != nil {
		s.metrics.RecordPaymentRejected(rejectionReason(err))
		return mapped
	}

	s.log(ctx).Error("apply payment failed",
		zap.String("bill_id", input.BillID),
		zap.String("kind", string(input.Kind)),
		zap.Error(err),
	)
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply payment")
}

// GetBill returns a bill by id.
func (s *LedgerService) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	bill, err := s.bills.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bill not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bill")
	}
	return bill, nil
}

// ListBills returns bills and pagination metadata.
func (s *LedgerService) ListBills(ctx context.Context, filter models.BillFilter) ([]models.Bill, *models.Pagination, error) {
	if filter.Kind != nil && !filter.Kind.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown bill type")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown bill status")
	}
	if filter.DueFrom != nil && filter.DueTo != nil && filter.DueTo.Before(*filter.DueFrom) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "due_to must not be before due_from")
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)

	bills, total, err := s.bills.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bills")
	}
	return nonNilBills(bills), &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ListOverdue returns unsettled bills of both kinds past their due date,
// ordered by due date across kinds.
func (s *LedgerService) ListOverdue(ctx context.Context, filter models.OverdueFilter) ([]models.Bill, *models.Pagination, error) {
	if filter.Kind != nil && !filter.Kind.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown bill type")
	}
	filter.Now = s.now()
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)

	start := time.Now()
	bills, total, err := s.bills.ListOverdue(ctx, filter)
	s.metrics.ObserveDBQuery("billing_list_overdue", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue bills")
	}
	return nonNilBills(bills), &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// CountOverdue summarises overdue bills per kind as of now.
func (s *LedgerService) CountOverdue(ctx context.Context) ([]models.OverdueCount, error) {
	counts, err := s.bills.CountOverdue(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count overdue bills")
	}
	return counts, nil
}

// ListPayments returns the payments recorded against a bill.
func (s *LedgerService) ListPayments(ctx context.Context, billID string) ([]models.Payment, error) {
	if _, err := s.GetBill(ctx, billID); err != nil {
		return nil, err
	}
	payments, err := s.bills.ListPayments(ctx, billID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// Snapshot returns the read-only bill and payment view used to render invoices.
func (s *LedgerService) Snapshot(ctx context.Context, billID string) (*models.BillSnapshot, error) {
	bill, err := s.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	payments, err := s.bills.ListPayments(ctx, billID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	now := s.now()
	return &models.BillSnapshot{Bill: *bill, Payments: payments, Overdue: bill.IsOverdue(now), GeneratedAt: now}, nil
}

func (s *LedgerService) ensureExists(ctx context.Context, entity, id string, check func(context.Context, string) (bool, error)) error {
	found, err := check(ctx, id)
	if err != nil {
		s.log(ctx).Error("existence check failed", zap.String("entity", entity), zap.String("id", id), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify "+entity)
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return nil
}

func (s *LedgerService) log(ctx context.Context) *zap.Logger {
	if id := requestid.FromContext(ctx); id != "" {
		return s.logger.With(zap.String("request_id", id))
	}
	return s.logger
}

func parseDueDate(raw *string) (*time.Time, error) {
	value := trimOptional(raw)
	if value == nil {
		return nil, nil
	}
	due, err := time.ParseInLocation(dto.DateLayout, *value, time.UTC)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "due_date must use YYYY-MM-DD")
	}
	return &due, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "not_found"
	case errors.Is(err, models.ErrBillSettled):
		return "settled"
	case errors.Is(err, models.ErrPaymentExceedsBalance):
		return "exceeds_balance"
	case errors.Is(err, models.ErrAmountPrecision):
		return "precision"
	default:
		return "non_positive"
	}
}

func nonNilBills(bills []models.Bill) []models.Bill {
	if bills == nil {
		return []models.Bill{}
	}
	return bills
}

