package dto

import "github.com/shopspring/decimal"

// DateLayout is the accepted format for due dates.
const DateLayout = "2006-01-02"

// CreateExamBillRequest issues a bill for an exam sitting.
type CreateExamBillRequest struct {
	StudentID      string  `json:"student_id" validate:"required,max=64"`
	ExamID         string  `json:"exam_id" validate:"required,max=64"`
	FeeStructureID string  `json:"fee_structure_id" validate:"required,max=64"`
	DueDate        *string `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description    *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// CreateCertificateBillRequest issues a bill for certificate copies.
type CreateCertificateBillRequest struct {
	StudentID      string  `json:"student_id" validate:"required,max=64"`
	CertificateID  *string `json:"certificate_id,omitempty" validate:"omitempty,max=64"`
	FeeStructureID string  `json:"fee_structure_id" validate:"required,max=64"`
	Quantity       int     `json:"quantity,omitempty" validate:"omitempty,min=1,max=1000"`
	DueDate        *string `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Description    *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// ApplyPaymentRequest records a payment against a bill. Amount accepts a JSON
// number or a decimal string.
type ApplyPaymentRequest struct {
	BillID        string          `json:"-" validate:"required"`
	BillType      string          `json:"bill_type" validate:"required,oneof=EXAM CERTIFICATE"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"150000.00"`
	Method        string          `json:"method" validate:"required,oneof=CASH BANK_TRANSFER CARD MOBILE_MONEY ONLINE_GATEWAY"`
	TransactionID *string         `json:"transaction_id,omitempty" validate:"omitempty,max=128"`
	GatewayRef    *string         `json:"gateway_ref,omitempty" validate:"omitempty,max=128"`
	Remarks       *string         `json:"remarks,omitempty" validate:"omitempty,max=500"`
}

// CreateFeeStructureRequest adds a fee to the catalog.
type CreateFeeStructureRequest struct {
	Name        string          `json:"name" validate:"required,max=150"`
	Type        string          `json:"type" validate:"required,oneof=EXAM_FEE CERTIFICATE_FEE"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"string" example:"250000.00"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=500"`
	Active      *bool           `json:"active,omitempty"`
}

// UpdateFeeStructureRequest changes catalog fields. Existing assessments keep
// the amount they were priced with.
type UpdateFeeStructureRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=150"`
	Amount      *decimal.Decimal `json:"amount,omitempty" swaggertype:"string"`
	Currency    *string          `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=500"`
	Active      *bool            `json:"active,omitempty"`
}
