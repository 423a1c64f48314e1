package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// FeeType classifies fee structures by the bill kind they price.
type FeeType string

const (
	FeeTypeExam        FeeType = "EXAM_FEE"
	FeeTypeCertificate FeeType = "CERTIFICATE_FEE"
)

// MaxCertificateQuantity bounds the copies billed in one certificate bill.
const MaxCertificateQuantity = 1000

// ErrInvalidBillableRef is returned when a billable reference is incomplete.
var ErrInvalidBillableRef = errors.New("invalid billable reference")

// FeeStructure is catalog reference data resolving a fee to an amount and currency.
type FeeStructure struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Type        FeeType         `db:"type" json:"type"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Currency    string          `db:"currency" json:"currency"`
	Description *string         `db:"description" json:"description,omitempty"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// FeeStructureFilter narrows fee catalog listings.
type FeeStructureFilter struct {
	Type     *FeeType
	Active   *bool
	Page     int
	PageSize int
}

// BillableRef identifies what a bill is issued for: an exam sitting or a
// certificate request.
type BillableRef struct {
	Kind          BillKind
	ExamID        string
	CertificateID *string
	Quantity      int
}

// ExamRef builds the reference for an exam fee.
func ExamRef(examID string) BillableRef {
	return BillableRef{Kind: BillKindExam, ExamID: examID, Quantity: 1}
}

// CertificateRef builds the reference for a certificate fee. A zero quantity means one copy.
func CertificateRef(certificateID *string, quantity int) BillableRef {
	if quantity == 0 {
		quantity = 1
	}
	return BillableRef{Kind: BillKindCertificate, CertificateID: certificateID, Quantity: quantity}
}

// Validate checks the reference is complete for its kind.
func (r BillableRef) Validate() error {
	switch r.Kind {
	case BillKindExam:
		if r.ExamID == "" {
			return ErrInvalidBillableRef
		}
	case BillKindCertificate:
		if r.Quantity < 1 || r.Quantity > MaxCertificateQuantity {
			return ErrInvalidBillableRef
		}
	default:
		return ErrInvalidBillableRef
	}
	return nil
}

// FeeAssessment binds a fee structure to a student and an exam or certificate,
// fixing the amount owed.
type FeeAssessment struct {
	ID             string          `db:"id" json:"id"`
	Kind           BillKind        `db:"kind" json:"kind"`
	StudentID      string          `db:"student_id" json:"student_id"`
	ExamID         *string         `db:"exam_id" json:"exam_id,omitempty"`
	CertificateID  *string         `db:"certificate_id" json:"certificate_id,omitempty"`
	FeeStructureID string          `db:"fee_structure_id" json:"fee_structure_id"`
	Quantity       int             `db:"quantity" json:"quantity"`
	UnitAmount     decimal.Decimal `db:"unit_amount" json:"unit_amount"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Currency       string          `db:"currency" json:"currency"`
	DueDate        *time.Time      `db:"due_date" json:"due_date,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// NewFeeAssessment prices the reference against the fee structure.
func NewFeeAssessment(studentID string, ref BillableRef, fee *FeeStructure, dueDate *time.Time, now time.Time) *FeeAssessment {
	quantity := ref.Quantity
	if quantity < 1 {
		quantity = 1
	}
	assessment := &FeeAssessment{
		Kind:           ref.Kind,
		StudentID:      studentID,
		FeeStructureID: fee.ID,
		Quantity:       quantity,
		UnitAmount:     fee.Amount,
		Amount:         fee.Amount.Mul(decimal.NewFromInt(int64(quantity))).Round(MoneyScale),
		Currency:       fee.Currency,
		DueDate:        dueDate,
		CreatedAt:      now,
	}
	if ref.Kind == BillKindExam {
		examID := ref.ExamID
		assessment.ExamID = &examID
	} else {
		assessment.CertificateID = ref.CertificateID
	}
	return assessment
}

// ReferenceID returns the exam or certificate the assessment was issued for.
func (a *FeeAssessment) ReferenceID() *string {
	if a.Kind == BillKindExam {
		return a.ExamID
	}
	return a.CertificateID
}
