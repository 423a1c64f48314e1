package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/database"
)

const maxPaymentIDAttempts = 5

var (
	// ErrAssessmentBilled is returned when the fee assessment already has a bill.
	ErrAssessmentBilled = errors.New("fee assessment already billed")
	// ErrPaymentIDExhausted is returned when every generated payment id collided.
	ErrPaymentIDExhausted = errors.New("could not allocate a unique payment id")
)

const billColumns = `b.id, b.bill_no, b.kind, b.assessment_id, b.student_id, b.reference_id, b.fee_structure_id,
	b.total_amount, b.paid_amount, b.balance, b.currency, b.status, b.due_date, b.description,
	b.created_by, b.created_at, b.updated_at`

const paymentColumns = `p.id, p.payment_id, p.bill_id, p.amount, p.currency, p.method, p.transaction_id, p.gateway_ref,
	p.remarks, p.status, p.paid_at, p.processed_by, p.created_at`

// CreateBillParams carries everything needed to issue a bill.
type CreateBillParams struct {
	StudentID      string
	Ref            models.BillableRef
	FeeStructureID string
	DueDate        *time.Time
	Description    *string
	ActorID        string
	Now            time.Time
}

// BillRepository persists bills, their fee assessments and payments.
type BillRepository struct {
	db           *sqlx.DB
	newPaymentID func(time.Time) (string, error)
}

// NewBillRepository constructs a BillRepository.
func NewBillRepository(db *sqlx.DB) *BillRepository {
	return &BillRepository{db: db, newPaymentID: models.NewPaymentID}
}

// Create resolves the fee structure, binds a fee assessment and issues a
// numbered bill in one transaction.
func (r *BillRepository) Create(ctx context.Context, params CreateBillParams) (bill *models.Bill, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bill transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	fee, err := getFeeStructureForShare(ctx, tx, params.FeeStructureID)
	if err != nil {
		return nil, err
	}
	if fee.Type != params.Ref.Kind.FeeType() {
		return nil, ErrFeeTypeMismatch
	}

	var assessment *models.FeeAssessment
	if params.Ref.Kind == models.BillKindExam {
		assessment, err = r.upsertExamAssessment(ctx, tx, params, fee)
	} else {
		assessment, err = r.insertAssessment(ctx, tx, params, fee)
	}
	if err != nil {
		return nil, err
	}

	seq, err := nextBillSequence(ctx, tx, params.Ref.Kind, params.Now)
	if err != nil {
		return nil, err
	}

	bill = models.NewBill(assessment, models.FormatBillNumber(params.Ref.Kind, params.Now, seq), params.Description, params.ActorID, params.Now)
	bill.ID = uuid.NewString()

	const insertQuery = `INSERT INTO bills (id, bill_no, kind, assessment_id, student_id, reference_id, fee_structure_id,
	total_amount, paid_amount, balance, currency, status, due_date, description, created_by, created_at, updated_at)
VALUES (:id, :bill_no, :kind, :assessment_id, :student_id, :reference_id, :fee_structure_id,
	:total_amount, :paid_amount, :balance, :currency, :status, :due_date, :description, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, bill); err != nil {
		if database.IsUniqueViolation(err, "bills_assessment_id_key") {
			return nil, ErrAssessmentBilled
		}
		return nil, fmt.Errorf("insert bill: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bill: %w", err)
	}
	return bill, nil
}

// upsertExamAssessment reuses the (exam, student) assessment when one exists,
// keeping the amount it was priced with. An assessment that already has a
// bill returns ErrAssessmentBilled, so the reuse branch only prices bills for
// assessments recorded outside this service (grading imports, backfills).
func (r *BillRepository) upsertExamAssessment(ctx context.Context, tx *sqlx.Tx, params CreateBillParams, fee *models.FeeStructure) (*models.FeeAssessment, error) {
	existing, err := lockExamAssessment(ctx, tx, params.Ref.ExamID, params.StudentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if !fee.Active {
			return nil, ErrFeeStructureInactive
		}
		candidate := models.NewFeeAssessment(params.StudentID, params.Ref, fee, params.DueDate, params.Now)
		candidate.ID = uuid.NewString()
		const insertQuery = `INSERT INTO fee_assessments (id, kind, student_id, exam_id, certificate_id, fee_structure_id,
	quantity, unit_amount, amount, currency, due_date, created_at)
VALUES (:id, :kind, :student_id, :exam_id, :certificate_id, :fee_structure_id,
	:quantity, :unit_amount, :amount, :currency, :due_date, :created_at)
ON CONFLICT (exam_id, student_id) WHERE kind = 'EXAM' DO NOTHING`
		if _, err := tx.NamedExecContext(ctx, insertQuery, candidate); err != nil {
			return nil, fmt.Errorf("insert exam assessment: %w", err)
		}
		if existing, err = lockExamAssessment(ctx, tx, params.Ref.ExamID, params.StudentID); err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("insert exam assessment: %w", sql.ErrNoRows)
		}
	}

	var billed bool
	const billedQuery = `SELECT EXISTS (SELECT 1 FROM bills WHERE assessment_id = $1)`
	if err := tx.GetContext(ctx, &billed, billedQuery, existing.ID); err != nil {
		return nil, fmt.Errorf("check assessment bill: %w", err)
	}
	if billed {
		return nil, ErrAssessmentBilled
	}

	if existing.DueDate == nil && params.DueDate != nil {
		existing.DueDate = params.DueDate
	}
	return existing, nil
}

func lockExamAssessment(ctx context.Context, tx *sqlx.Tx, examID, studentID string) (*models.FeeAssessment, error) {
	const query = `SELECT id, kind, student_id, exam_id, certificate_id, fee_structure_id, quantity, unit_amount, amount,
	currency, due_date, created_at
FROM fee_assessments
WHERE kind = 'EXAM' AND exam_id = $1 AND student_id = $2
FOR UPDATE`
	var assessment models.FeeAssessment
	if err := tx.GetContext(ctx, &assessment, query, examID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock exam assessment: %w", err)
	}
	return &assessment, nil
}

// insertAssessment always records a fresh assessment. Certificate requests
// are not deduplicated per (certificate, student).
func (r *BillRepository) insertAssessment(ctx context.Context, tx *sqlx.Tx, params CreateBillParams, fee *models.FeeStructure) (*models.FeeAssessment, error) {
	if !fee.Active {
		return nil, ErrFeeStructureInactive
	}
	assessment := models.NewFeeAssessment(params.StudentID, params.Ref, fee, params.DueDate, params.Now)
	assessment.ID = uuid.NewString()

	const query = `INSERT INTO fee_assessments (id, kind, student_id, exam_id, certificate_id, fee_structure_id,
	quantity, unit_amount, amount, currency, due_date, created_at)
VALUES (:id, :kind, :student_id, :exam_id, :certificate_id, :fee_structure_id,
	:quantity, :unit_amount, :amount, :currency, :due_date, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, assessment); err != nil {
		return nil, fmt.Errorf("insert certificate assessment: %w", err)
	}
	return assessment, nil
}

// ApplyPayment locks the bill, records the payment and updates the running
// totals atomically. A kind mismatch is reported as sql.ErrNoRows.
func (r *BillRepository) ApplyPayment(ctx context.Context, input models.PaymentInput, now time.Time) (result *models.PaymentResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var bill models.Bill
	lockQuery := fmt.Sprintf(`SELECT %s FROM bills b WHERE b.id = $1 FOR UPDATE`, billColumns)
	if err = tx.GetContext(ctx, &bill, lockQuery, input.BillID); err != nil {
		return nil, fmt.Errorf("lock bill: %w", err)
	}
	if bill.Kind != input.Kind {
		return nil, fmt.Errorf("lock bill: %w", sql.ErrNoRows)
	}

	if err = bill.ApplyPayment(input.Amount, now); err != nil {
		return nil, err
	}

	payment := models.Payment{
		ID:            uuid.NewString(),
		BillID:        bill.ID,
		Amount:        input.Amount,
		Currency:      bill.Currency,
		Method:        input.Method,
		TransactionID: input.TransactionID,
		GatewayRef:    input.GatewayRef,
		Remarks:       input.Remarks,
		Status:        models.PaymentStatusCompleted,
		PaidAt:        now,
		ProcessedBy:   input.ActorID,
		CreatedAt:     now,
	}
	if err = r.insertPayment(ctx, tx, &payment, now); err != nil {
		return nil, err
	}

	const updateQuery = `UPDATE bills SET paid_amount = $1, balance = $2, status = $3, updated_at = $4 WHERE id = $5`
	if _, err = tx.ExecContext(ctx, updateQuery, bill.PaidAmount, bill.Balance, bill.Status, bill.UpdatedAt, bill.ID); err != nil {
		return nil, fmt.Errorf("update bill balance: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment: %w", err)
	}
	return &models.PaymentResult{Payment: payment, BillStatus: bill.Status, RemainingBalance: bill.Balance}, nil
}

// insertPayment regenerates the payment id on collision. Nothing else has
// been written in the transaction yet when a retry happens.
func (r *BillRepository) insertPayment(ctx context.Context, tx *sqlx.Tx, payment *models.Payment, now time.Time) error {
	const query = `INSERT INTO bill_payments (id, payment_id, bill_id, amount, currency, method, transaction_id, gateway_ref,
	remarks, status, paid_at, processed_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (payment_id) DO NOTHING
RETURNING id`
	for attempt := 0; attempt < maxPaymentIDAttempts; attempt++ {
		paymentID, err := r.newPaymentID(now)
		if err != nil {
			return err
		}
		var id string
		err = tx.QueryRowxContext(ctx, query,
			payment.ID, paymentID, payment.BillID, payment.Amount, payment.Currency, payment.Method,
			payment.TransactionID, payment.GatewayRef, payment.Remarks, payment.Status,
			payment.PaidAt, payment.ProcessedBy, payment.CreatedAt,
		).Scan(&id)
		if err == nil {
			payment.PaymentID = paymentID
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("insert payment: %w", err)
		}
	}
	return ErrPaymentIDExhausted
}

// FindByID returns the bill with the given id.
func (r *BillRepository) FindByID(ctx context.Context, id string) (*models.Bill, error) {
	query := fmt.Sprintf(`SELECT %s FROM bills b WHERE b.id = $1`, billColumns)
	var bill models.Bill
	if err := r.db.GetContext(ctx, &bill, query, id); err != nil {
		return nil, fmt.Errorf("find bill: %w", err)
	}
	return &bill, nil
}

// List returns bills matching the filter along with the total count.
func (r *BillRepository) List(ctx context.Context, filter models.BillFilter) ([]models.Bill, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		conditions = append(conditions, fmt.Sprintf("b.kind = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("b.student_id = $%d", len(args)))
	}
	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("b.student_id IN (SELECT id FROM students WHERE school_id = $%d)", len(args)))
	}
	if filter.DueFrom != nil {
		args = append(args, *filter.DueFrom)
		conditions = append(conditions, fmt.Sprintf("b.due_date >= $%d", len(args)))
	}
	if filter.DueTo != nil {
		args = append(args, *filter.DueTo)
		conditions = append(conditions, fmt.Sprintf("b.due_date < $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToUpper(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("UPPER(b.bill_no) LIKE $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"created_at": "b.created_at",
		"due_date":   "b.due_date",
		"bill_no":    "b.bill_no",
		"balance":    "b.balance",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "b.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM bills b WHERE %s ORDER BY %s %s, b.bill_no %s LIMIT %d OFFSET %d`,
		billColumns, where, column, order, order, size, (page-1)*size)
	var bills []models.Bill
	if err := r.db.SelectContext(ctx, &bills, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM bills b WHERE %s`, where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}
	return bills, total, nil
}

// ListOverdue returns unsettled bills of both kinds whose due date has
// passed. Kinds are merged and ordered before pagination so page boundaries
// follow the global due date order.
func (r *BillRepository) ListOverdue(ctx context.Context, filter models.OverdueFilter) ([]models.Bill, int, error) {
	conditions, args := overdueConditions(filter.Now)
	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		conditions = append(conditions, fmt.Sprintf("b.kind = $%d", len(args)))
	}
	if filter.SchoolID != "" {
		args = append(args, filter.SchoolID)
		conditions = append(conditions, fmt.Sprintf("b.student_id IN (SELECT id FROM students WHERE school_id = $%d)", len(args)))
	}
	where := strings.Join(conditions, " AND ")
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM bills b WHERE %s ORDER BY b.due_date ASC, b.bill_no ASC LIMIT %d OFFSET %d`,
		billColumns, where, size, (page-1)*size)
	var bills []models.Bill
	if err := r.db.SelectContext(ctx, &bills, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list overdue bills: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM bills b WHERE %s`, where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count overdue bills: %w", err)
	}
	return bills, total, nil
}

// CountOverdue summarises overdue bills per kind.
func (r *BillRepository) CountOverdue(ctx context.Context, now time.Time) ([]models.OverdueCount, error) {
	conditions, args := overdueConditions(now)
	query := fmt.Sprintf(`SELECT b.kind, COUNT(*) AS bill_count, COALESCE(SUM(b.balance), 0) AS outstanding
FROM bills b
WHERE %s
GROUP BY b.kind
ORDER BY b.kind`, strings.Join(conditions, " AND "))
	var counts []models.OverdueCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count overdue bills: %w", err)
	}
	return counts, nil
}

// overdueConditions matches open bills due strictly before now. The status
// set comes from models.OpenBillStatuses, the same one Bill.IsOverdue uses.
func overdueConditions(now time.Time) ([]string, []interface{}) {
	open := models.OpenBillStatuses()
	args := make([]interface{}, 0, len(open)+1)
	placeholders := make([]string, 0, len(open))
	for _, status := range open {
		args = append(args, status)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	args = append(args, now)
	return []string{
		fmt.Sprintf("b.status IN (%s)", strings.Join(placeholders, ", ")),
		"b.due_date IS NOT NULL",
		fmt.Sprintf("b.due_date < $%d", len(args)),
	}, args
}

// ListPayments returns the payments recorded against a bill, oldest first.
func (r *BillRepository) ListPayments(ctx context.Context, billID string) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM bill_payments p WHERE p.bill_id = $1 ORDER BY p.created_at ASC, p.payment_id ASC`, paymentColumns)
	payments := make([]models.Payment, 0)
	if err := r.db.SelectContext(ctx, &payments, query, billID); err != nil {
		return nil, fmt.Errorf("list bill payments: %w", err)
	}
	return payments, nil
}
