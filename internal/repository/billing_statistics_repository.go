package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

// BillingStatisticsRepository runs the aggregate queries behind billing reports.
type BillingStatisticsRepository struct {
	db *sqlx.DB
}

// NewBillingStatisticsRepository constructs the repository.
func NewBillingStatisticsRepository(db *sqlx.DB) *BillingStatisticsRepository {
	return &BillingStatisticsRepository{db: db}
}

// BillSummary counts and sums bills created in the window per kind, status and currency.
func (r *BillingStatisticsRepository) BillSummary(ctx context.Context, window models.StatisticsWindow) ([]models.BillStatusSummary, error) {
	query, args := scopeBills(`SELECT b.kind, b.status, b.currency, COUNT(*) AS bill_count,
	COALESCE(SUM(b.total_amount), 0) AS total_amount, COALESCE(SUM(b.paid_amount), 0) AS paid_amount
FROM bills b
WHERE b.created_at >= $1 AND b.created_at <= $2`, window)
	query += "\nGROUP BY b.kind, b.status, b.currency\nORDER BY b.kind, b.status, b.currency"

	rows := make([]models.BillStatusSummary, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("summarise bills: %w", err)
	}
	return rows, nil
}

// PaymentMethodSummary aggregates payments of both bill kinds per method.
func (r *BillingStatisticsRepository) PaymentMethodSummary(ctx context.Context, window models.StatisticsWindow) ([]models.PaymentMethodSummary, error) {
	query, args := scopeBills(`SELECT p.method, p.currency, COUNT(*) AS payment_count, COALESCE(SUM(p.amount), 0) AS total_amount
FROM bill_payments p
JOIN bills b ON b.id = p.bill_id
WHERE p.created_at >= $1 AND p.created_at <= $2`, window)
	query += "\nGROUP BY p.method, p.currency\nORDER BY total_amount DESC, p.method"

	rows := make([]models.PaymentMethodSummary, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("summarise payment methods: %w", err)
	}
	return rows, nil
}

// RecentPayments returns the newest payments across both bill kinds. Both
// kinds live in one table so a single ordered query yields the global top N.
func (r *BillingStatisticsRepository) RecentPayments(ctx context.Context, window models.StatisticsWindow, limit int) ([]models.RecentPayment, error) {
	query, args := scopeBills(`SELECT p.payment_id, p.bill_id, b.bill_no, b.kind, b.student_id, p.amount, p.currency, p.method,
	p.paid_at, p.created_at
FROM bill_payments p
JOIN bills b ON b.id = p.bill_id
WHERE p.created_at >= $1 AND p.created_at <= $2`, window)
	args = append(args, limit)
	query += fmt.Sprintf("\nORDER BY p.created_at DESC, p.payment_id DESC\nLIMIT $%d", len(args))

	rows := make([]models.RecentPayment, 0)
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list recent payments: %w", err)
	}
	return rows, nil
}

func scopeBills(base string, window models.StatisticsWindow) (string, []interface{}) {
	args := []interface{}{window.From, window.To}
	if window.SchoolID != "" {
		args = append(args, window.SchoolID)
		base += fmt.Sprintf(" AND b.student_id IN (SELECT id FROM students WHERE school_id = $%d)", len(args))
	}
	return base, args
}
