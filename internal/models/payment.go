package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a completed payment recorded against a bill.
type Payment struct {
	ID            string          `db:"id" json:"id"`
	PaymentID     string          `db:"payment_id" json:"payment_id"`
	BillID        string          `db:"bill_id" json:"bill_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	Method        PaymentMethod   `db:"method" json:"method"`
	TransactionID *string         `db:"transaction_id" json:"transaction_id,omitempty"`
	GatewayRef    *string         `db:"gateway_ref" json:"gateway_ref,omitempty"`
	Remarks       *string         `db:"remarks" json:"remarks,omitempty"`
	Status        PaymentStatus   `db:"status" json:"status"`
	PaidAt        time.Time       `db:"paid_at" json:"paid_at"`
	ProcessedBy   string          `db:"processed_by" json:"processed_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// PaymentInput carries the caller supplied payment details.
type PaymentInput struct {
	BillID        string
	Kind          BillKind
	Amount        decimal.Decimal
	Method        PaymentMethod
	TransactionID *string
	GatewayRef    *string
	Remarks       *string
	ActorID       string
}

// PaymentResult is returned after a payment has been applied.
type PaymentResult struct {
	Payment          Payment         `json:"payment"`
	BillStatus       BillStatus      `json:"bill_status"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}
