package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places money amounts carry.
const MoneyScale int32 = 2

var (
	// ErrBillSettled is returned when a payment targets a completed bill.
	ErrBillSettled = errors.New("bill already settled")
	// ErrNonPositiveAmount is returned for zero or negative payment amounts.
	ErrNonPositiveAmount = errors.New("payment amount must be positive")
	// ErrAmountPrecision is returned when an amount has more than two decimal places.
	ErrAmountPrecision = errors.New("payment amount has more than two decimal places")
	// ErrPaymentExceedsBalance is returned when a payment is larger than the outstanding balance.
	ErrPaymentExceedsBalance = errors.New("payment amount exceeds outstanding balance")
)

// Bill is a monetary obligation issued to a student for one fee assessment.
type Bill struct {
	ID             string          `db:"id" json:"id"`
	BillNo         string          `db:"bill_no" json:"bill_no"`
	Kind           BillKind        `db:"kind" json:"kind"`
	AssessmentID   string          `db:"assessment_id" json:"assessment_id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	ReferenceID    *string         `db:"reference_id" json:"reference_id,omitempty"`
	FeeStructureID string          `db:"fee_structure_id" json:"fee_structure_id"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaidAmount     decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	Currency       string          `db:"currency" json:"currency"`
	Status         BillStatus      `db:"status" json:"status"`
	DueDate        *time.Time      `db:"due_date" json:"due_date,omitempty"`
	Description    *string         `db:"description" json:"description,omitempty"`
	CreatedBy      string          `db:"created_by" json:"created_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// NewBill issues a pending bill for the assessment. Total and balance both
// start at the assessed amount.
func NewBill(assessment *FeeAssessment, billNo string, description *string, actorID string, now time.Time) *Bill {
	amount := assessment.Amount.Round(MoneyScale)
	return &Bill{
		BillNo:         billNo,
		Kind:           assessment.Kind,
		AssessmentID:   assessment.ID,
		StudentID:      assessment.StudentID,
		ReferenceID:    assessment.ReferenceID(),
		FeeStructureID: assessment.FeeStructureID,
		TotalAmount:    amount,
		PaidAmount:     decimal.Zero,
		Balance:        amount,
		Currency:       assessment.Currency,
		Status:         DeriveBillStatus(decimal.Zero, amount),
		DueDate:        assessment.DueDate,
		Description:    description,
		CreatedBy:      actorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// DeriveBillStatus computes the settlement status from paid and total amounts.
func DeriveBillStatus(paid, total decimal.Decimal) BillStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return BillStatusCompleted
	case paid.IsPositive():
		return BillStatusPartiallyPaid
	default:
		return BillStatusPending
	}
}

// ValidatePaymentAmount checks sign and precision of a payment amount.
func ValidatePaymentAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !amount.Equal(amount.Round(MoneyScale)) {
		return ErrAmountPrecision
	}
	return nil
}

// ApplyPayment adds amount to the paid total and recomputes balance and
// status. The bill is left untouched when an error is returned.
func (b *Bill) ApplyPayment(amount decimal.Decimal, now time.Time) error {
	if b.Status == BillStatusCompleted {
		return ErrBillSettled
	}
	if err := ValidatePaymentAmount(amount); err != nil {
		return err
	}
	if amount.GreaterThan(b.Balance) {
		return ErrPaymentExceedsBalance
	}

	paid := b.PaidAmount.Add(amount)
	b.PaidAmount = paid
	b.Balance = b.TotalAmount.Sub(paid)
	b.Status = DeriveBillStatus(paid, b.TotalAmount)
	b.UpdatedAt = now
	return nil
}

// IsOverdue reports whether the bill is unsettled and past its due date.
func (b *Bill) IsOverdue(now time.Time) bool {
	if !b.Status.Open() || b.DueDate == nil {
		return false
	}
	return b.DueDate.Before(now)
}

// BillFilter captures filtering criteria for listing bills.
type BillFilter struct {
	Kind      *BillKind
	Status    *BillStatus
	StudentID string
	SchoolID  string
	DueFrom   *time.Time
	DueTo     *time.Time
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// OverdueFilter scopes overdue bill listings.
type OverdueFilter struct {
	SchoolID string
	Kind     *BillKind
	Now      time.Time
	Page     int
	PageSize int
}

// BillSnapshot is the read-only view handed to document generation.
type BillSnapshot struct {
	Bill        Bill      `json:"bill"`
	Payments    []Payment `json:"payments"`
	Overdue     bool      `json:"overdue"`
	GeneratedAt time.Time `json:"generated_at"`
}
