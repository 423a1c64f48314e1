package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatisticsWindow scopes a statistics query.
type StatisticsWindow struct {
	From     time.Time
	To       time.Time
	SchoolID string
}

// BillStatusSummary aggregates bills of one kind and status.
type BillStatusSummary struct {
	Kind        BillKind        `db:"kind" json:"kind"`
	Status      BillStatus      `db:"status" json:"status"`
	Currency    string          `db:"currency" json:"currency"`
	Count       int             `db:"bill_count" json:"count"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaidAmount  decimal.Decimal `db:"paid_amount" json:"paid_amount"`
}

// KindTotals rolls status summaries up per bill kind and currency.
type KindTotals struct {
	Kind        BillKind        `json:"kind"`
	Currency    string          `json:"currency"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// PaymentMethodSummary aggregates payments per method across both bill kinds.
type PaymentMethodSummary struct {
	Method      PaymentMethod   `db:"method" json:"method"`
	Currency    string          `db:"currency" json:"currency"`
	Count       int             `db:"payment_count" json:"count"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
}

// RecentPayment is a payment joined with the bill it settled.
type RecentPayment struct {
	PaymentID string          `db:"payment_id" json:"payment_id"`
	BillID    string          `db:"bill_id" json:"bill_id"`
	BillNo    string          `db:"bill_no" json:"bill_no"`
	Kind      BillKind        `db:"kind" json:"kind"`
	StudentID string          `db:"student_id" json:"student_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Currency  string          `db:"currency" json:"currency"`
	Method    PaymentMethod   `db:"method" json:"method"`
	PaidAt    time.Time       `db:"paid_at" json:"paid_at"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// BillingStatistics is the time-windowed billing report.
type BillingStatistics struct {
	From           time.Time              `json:"from"`
	To             time.Time              `json:"to"`
	SchoolID       string                 `json:"school_id,omitempty"`
	Bills          []BillStatusSummary    `json:"bills"`
	Totals         []KindTotals           `json:"totals"`
	PaymentMethods []PaymentMethodSummary `json:"payment_methods"`
	RecentPayments []RecentPayment        `json:"recent_payments"`
	GeneratedAt    time.Time              `json:"generated_at"`
}

// SummarizeByKind rolls status rows into per kind and currency totals, in
// first-seen order.
func SummarizeByKind(rows []BillStatusSummary) []KindTotals {
	type key struct {
		kind     BillKind
		currency string
	}
	index := make(map[key]int)
	totals := make([]KindTotals, 0)
	for _, row := range rows {
		k := key{kind: row.Kind, currency: row.Currency}
		i, ok := index[k]
		if !ok {
			i = len(totals)
			index[k] = i
			totals = append(totals, KindTotals{
				Kind:        row.Kind,
				Currency:    row.Currency,
				TotalAmount: decimal.Zero,
				PaidAmount:  decimal.Zero,
			})
		}
		totals[i].Count += row.Count
		totals[i].TotalAmount = totals[i].TotalAmount.Add(row.TotalAmount)
		totals[i].PaidAmount = totals[i].PaidAmount.Add(row.PaidAmount)
	}
	for i := range totals {
		totals[i].Outstanding = totals[i].TotalAmount.Sub(totals[i].PaidAmount)
	}
	return totals
}

// OverdueCount is the number of overdue bills and their outstanding balance per kind.
type OverdueCount struct {
	Kind        BillKind        `db:"kind" json:"kind"`
	Count       int             `db:"bill_count" json:"count"`
	Outstanding decimal.Decimal `db:"outstanding" json:"outstanding"`
}
