package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

func statsWindow(school string) models.StatisticsWindow {
	to := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	return models.StatisticsWindow{From: to.AddDate(0, 0, -30), To: to, SchoolID: school}
}

func TestBillingStatisticsRepositoryBillSummary(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	window := statsWindow("school-1")

	mock.ExpectQuery(regexp.QuoteMeta("AND b.student_id IN (SELECT id FROM students WHERE school_id = $3)\nGROUP BY b.kind, b.status, b.currency")).
		WithArgs(window.From, window.To, "school-1").
		WillReturnRows(sqlmock.NewRows([]string{"kind", "status", "currency", "bill_count", "total_amount", "paid_amount"}).
			AddRow("EXAM", "PENDING", "IDR", 3, "450000.00", "0").
			AddRow("CERTIFICATE", "COMPLETED", "IDR", 1, "25000.00", "25000.00"))

	rows, err := NewBillingStatisticsRepository(db).BillSummary(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.BillKindExam, rows[0].Kind)
	assert.Equal(t, 3, rows[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingStatisticsRepositoryPaymentMethods(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	window := statsWindow("")

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY p.method, p.currency")).
		WithArgs(window.From, window.To).
		WillReturnRows(sqlmock.NewRows([]string{"method", "currency", "payment_count", "total_amount"}).
			AddRow("CASH", "IDR", 4, "600000.00"))

	rows, err := NewBillingStatisticsRepository(db).PaymentMethodSummary(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.PaymentMethodCash, rows[0].Method)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingStatisticsRepositoryRecentPaymentsSingleOrderedQuery(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	window := statsWindow("school-1")
	created := window.To.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY p.created_at DESC, p.payment_id DESC\nLIMIT $4")).
		WithArgs(window.From, window.To, "school-1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"payment_id", "bill_id", "bill_no", "kind", "student_id", "amount", "currency", "method", "paid_at", "created_at"}).
			AddRow("PAY2", "bill-2", "CERT2024040001", "CERTIFICATE", "student-2", "25000.00", "IDR", "CARD", created, created).
			AddRow("PAY1", "bill-1", "EXAM2024040003", "EXAM", "student-1", "200000.00", "IDR", "CASH", created.Add(-time.Minute), created.Add(-time.Minute)))

	rows, err := NewBillingStatisticsRepository(db).RecentPayments(context.Background(), window, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.BillKindCertificate, rows[0].Kind)
	assert.Equal(t, models.BillKindExam, rows[1].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}
