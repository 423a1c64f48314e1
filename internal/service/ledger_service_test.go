package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

var ledgerNow = time.Date(2024, 4, 15, 9, 30, 0, 0, time.UTC)

// fakeBillRepo keeps bills in memory and serialises writes the way the row
// locks do in Postgres.
type fakeBillRepo struct {
	mu          sync.Mutex
	fees        map[string]*models.FeeStructure
	bills       map[string]*models.Bill
	payments    map[string][]models.Payment
	assessments map[string]string
	sequences   map[string]int64
	createErr   error
	applyErr    error
	listErr     error
	lastFilter  models.BillFilter
	lastOverdue models.OverdueFilter
	overdue     []models.OverdueCount
}

func newFakeBillRepo() *fakeBillRepo {
	return &fakeBillRepo{
		fees: map[string]*models.FeeStructure{
			"fee-exam": {ID: "fee-exam", Name: "Final exam", Type: models.FeeTypeExam, Amount: decimal.RequireFromString("500.00"), Currency: "IDR", Active: true},
			"fee-cert": {ID: "fee-cert", Name: "Certificate copy", Type: models.FeeTypeCertificate, Amount: decimal.RequireFromString("25.50"), Currency: "IDR", Active: true},
		},
		bills:       map[string]*models.Bill{},
		payments:    map[string][]models.Payment{},
		assessments: map[string]string{},
		sequences:   map[string]int64{},
	}
}

func (f *fakeBillRepo) Create(ctx context.Context, params repository.CreateBillParams) (*models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	fee, ok := f.fees[params.FeeStructureID]
	if !ok {
		return nil, repository.ErrFeeStructureNotFound
	}
	if fee.Type != params.Ref.Kind.FeeType() {
		return nil, repository.ErrFeeTypeMismatch
	}
	if params.Ref.Kind == models.BillKindExam {
		key := params.StudentID + "/" + params.Ref.ExamID
		if _, billed := f.assessments[key]; billed {
			return nil, repository.ErrAssessmentBilled
		}
		if !fee.Active {
			return nil, repository.ErrFeeStructureInactive
		}
		f.assessments[key] = key
	} else if !fee.Active {
		return nil, repository.ErrFeeStructureInactive
	}

	assessment := models.NewFeeAssessment(params.StudentID, params.Ref, fee, params.DueDate, params.Now)
	assessment.ID = fmt.Sprintf("assessment-%d", len(f.bills)+1)
	seqKey := string(params.Ref.Kind) + models.BillingPeriod(params.Now)
	f.sequences[seqKey]++
	bill := models.NewBill(assessment, models.FormatBillNumber(params.Ref.Kind, params.Now, f.sequences[seqKey]), params.Description, params.ActorID, params.Now)
	bill.ID = fmt.Sprintf("bill-%d", len(f.bills)+1)
	f.bills[bill.ID] = bill
	copied := *bill
	return &copied, nil
}

func (f *fakeBillRepo) ApplyPayment(ctx context.Context, input models.PaymentInput, now time.Time) (*models.PaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	bill, ok := f.bills[input.BillID]
	if !ok || bill.Kind != input.Kind {
		return nil, fmt.Errorf("lock bill: %w", sql.ErrNoRows)
	}
	if err := bill.ApplyPayment(input.Amount, now); err != nil {
		return nil, err
	}
	payment := models.Payment{
		ID:          fmt.Sprintf("row-%d", len(f.payments[bill.ID])+1),
		PaymentID:   fmt.Sprintf("PAY%d%08d", now.UnixMilli(), len(f.payments[bill.ID])+1),
		BillID:      bill.ID,
		Amount:      input.Amount,
		Currency:    bill.Currency,
		Method:      input.Method,
		Status:      models.PaymentStatusCompleted,
		PaidAt:      now,
		ProcessedBy: input.ActorID,
		CreatedAt:   now,
	}
	f.payments[bill.ID] = append(f.payments[bill.ID], payment)
	return &models.PaymentResult{Payment: payment, BillStatus: bill.Status, RemainingBalance: bill.Balance}, nil
}

func (f *fakeBillRepo) FindByID(ctx context.Context, id string) (*models.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bill, ok := f.bills[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *bill
	return &copied, nil
}

func (f *fakeBillRepo) List(ctx context.Context, filter models.BillFilter) ([]models.Bill, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	return nil, 0, nil
}

func (f *fakeBillRepo) ListOverdue(ctx context.Context, filter models.OverdueFilter) ([]models.Bill, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOverdue = filter
	var out []models.Bill
	for _, bill := range f.bills {
		if bill.IsOverdue(filter.Now) {
			out = append(out, *bill)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, len(out), nil
}

func (f *fakeBillRepo) CountOverdue(ctx context.Context, now time.Time) ([]models.OverdueCount, error) {
	return f.overdue, nil
}

func (f *fakeBillRepo) ListPayments(ctx context.Context, billID string) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Payment{}, f.payments[billID]...), nil
}

type fakeDirectory struct {
	missing map[string]bool
	err     error
}

func (d *fakeDirectory) exists(id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return !d.missing[id], nil
}

func (d *fakeDirectory) StudentExists(ctx context.Context, id string) (bool, error) {
	return d.exists(id)
}

func (d *fakeDirectory) ExamExists(ctx context.Context, id string) (bool, error) {
	return d.exists(id)
}

func (d *fakeDirectory) CertificateExists(ctx context.Context, id string) (bool, error) {
	return d.exists(id)
}

func newTestLedger(repo *fakeBillRepo, dir *fakeDirectory) *LedgerService {
	if dir == nil {
		dir = &fakeDirectory{}
	}
	svc := NewLedgerService(repo, dir, nil, nil, nil, nil, LedgerConfig{})
	svc.now = func() time.Time { return ledgerNow }
	return svc
}

func strPtr(v string) *string { return &v }

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func assertAppError(t *testing.T, err error, target *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, target), "expected %s, got %v", target.Code, err)
}

func TestLedgerServiceCreateExamBill(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)

	bill, err := svc.CreateExamBill(context.Background(), dto.CreateExamBillRequest{
		StudentID:      "student-1",
		ExamID:         "exam-1",
		FeeStructureID: "fee-exam",
		DueDate:        strPtr("2024-05-01"),
		Description:    strPtr("  Semester finals  "),
	}, "bursar-1")
	require.NoError(t, err)

	assert.Equal(t, "EXAM2024040001", bill.BillNo)
	assert.Equal(t, models.BillStatusPending, bill.Status)
	assert.True(t, bill.TotalAmount.Equal(dec("500")))
	assert.True(t, bill.Balance.Equal(bill.TotalAmount))
	assert.True(t, bill.PaidAmount.IsZero())
	require.NotNil(t, bill.DueDate)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *bill.DueDate)
	assert.Equal(t, "Semester finals", *bill.Description)
	assert.Equal(t, "bursar-1", bill.CreatedBy)
}

func TestLedgerServiceCreateExamBillRejectsSecondBillForAssessment(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)
	req := dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"}

	_, err := svc.CreateExamBill(context.Background(), req, "bursar-1")
	require.NoError(t, err)

	_, err = svc.CreateExamBill(context.Background(), req, "bursar-1")
	assertAppError(t, err, appErrors.ErrConflict)
}

func TestLedgerServiceCreateCertificateBillMultipliesQuantity(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)

	bill, err := svc.CreateCertificateBill(context.Background(), dto.CreateCertificateBillRequest{
		StudentID:      "student-1",
		FeeStructureID: "fee-cert",
		Quantity:       3,
	}, "bursar-1")
	require.NoError(t, err)
	assert.Equal(t, "CERT2024040001", bill.BillNo)
	assert.True(t, bill.TotalAmount.Equal(dec("76.50")), bill.TotalAmount.String())
	assert.Nil(t, bill.ReferenceID)

	second, err := svc.CreateCertificateBill(context.Background(), dto.CreateCertificateBillRequest{
		StudentID:      "student-1",
		FeeStructureID: "fee-cert",
	}, "bursar-1")
	require.NoError(t, err)
	assert.Equal(t, "CERT2024040002", second.BillNo)
	assert.True(t, second.TotalAmount.Equal(dec("25.50")))
}

func TestLedgerServiceCreateBillErrors(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(*fakeBillRepo, *fakeDirectory)
		req    dto.CreateExamBillRequest
		actor  string
		expect *appErrors.Error
	}{
		{
			name:   "missing student id",
			req:    dto.CreateExamBillRequest{ExamID: "exam-1", FeeStructureID: "fee-exam"},
			actor:  "bursar-1",
			expect: appErrors.ErrValidation,
		},
		{
			name:   "bad due date",
			req:    dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam", DueDate: strPtr("01/05/2024")},
			actor:  "bursar-1",
			expect: appErrors.ErrValidation,
		},
		{
			name:   "unknown student",
			setup:  func(_ *fakeBillRepo, d *fakeDirectory) { d.missing = map[string]bool{"student-1": true} },
			req:    dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"},
			actor:  "bursar-1",
			expect: appErrors.ErrNotFound,
		},
		{
			name:   "unknown exam",
			setup:  func(_ *fakeBillRepo, d *fakeDirectory) { d.missing = map[string]bool{"exam-1": true} },
			req:    dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"},
			actor:  "bursar-1",
			expect: appErrors.ErrNotFound,
		},
		{
			name:   "directory failure",
			setup:  func(_ *fakeBillRepo, d *fakeDirectory) { d.err = errors.New("db down") },
			req:    dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"},
			actor:  "bursar-1",
			expect: appErrors.ErrInternal,
		},
		{
			name:   "unknown fee",
			req:    dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-missing"},
			actor:  "bursar-1",
			expect: appErrors.ErrNotFound,
		},
		{
			name:   "fee type mismatch",
			req:    dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-cert"},
			actor:  "bursar-1",
			expect: appErrors.ErrValidation,
		},
		{
			name:   "inactive fee",
			setup:  func(r *fakeBillRepo, _ *fakeDirectory) { r.fees["fee-exam"].Active = false },
			req:    dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"},
			actor:  "bursar-1",
			expect: appErrors.ErrValidation,
		},
		{
			name:   "missing actor",
			req:    dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"},
			actor:  " ",
			expect: appErrors.ErrUnauthorized,
		},
		{
			name:   "persistence failure",
			setup:  func(r *fakeBillRepo, _ *fakeDirectory) { r.createErr = errors.New("connection reset") },
			req:    dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"},
			actor:  "bursar-1",
			expect: appErrors.ErrInternal,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeBillRepo()
			dir := &fakeDirectory{}
			if tc.setup != nil {
				tc.setup(repo, dir)
			}
			_, err := newTestLedger(repo, dir).CreateExamBill(context.Background(), tc.req, tc.actor)
			assertAppError(t, err, tc.expect)
			assert.Empty(t, repo.bills)
		})
	}
}

func TestLedgerServicePaymentLifecycle(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)
	ctx := context.Background()

	bill, err := svc.CreateExamBill(ctx, dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"}, "bursar-1")
	require.NoError(t, err)

	pay := func(amount string) (*models.PaymentResult, error) {
		return svc.ApplyPayment(ctx, dto.ApplyPaymentRequest{
			BillID:   bill.ID,
			BillType: "EXAM",
			Amount:   dec(amount),
			Method:   "CASH",
		}, "bursar-1")
	}

	first, err := pay("200")
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusPartiallyPaid, first.BillStatus)
	assert.True(t, first.RemainingBalance.Equal(dec("300")))
	assert.Equal(t, models.PaymentStatusCompleted, first.Payment.Status)

	second, err := pay("300")
	require.NoError(t, err)
	assert.Equal(t, models.BillStatusCompleted, second.BillStatus)
	assert.True(t, second.RemainingBalance.IsZero())

	_, err = pay("1")
	assertAppError(t, err, appErrors.ErrInvalidState)

	stored, err := svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.Equal(dec("500")))
	assert.True(t, stored.Balance.Add(stored.PaidAmount).Equal(stored.TotalAmount))

	payments, err := svc.ListPayments(ctx, bill.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestLedgerServiceApplyPaymentRejections(t *testing.T) {
	cases := []struct {
		name   string
		req    func(billID string) dto.ApplyPaymentRequest
		actor  string
		expect *appErrors.Error
	}{
		{
			name:   "overpayment",
			req:    func(id string) dto.ApplyPaymentRequest { return dto.ApplyPaymentRequest{BillID: id, BillType: "EXAM", Amount: dec("500.01"), Method: "CASH"} },
			actor:  "bursar-1",
			expect: appErrors.ErrConflict,
		},
		{
			name:   "zero amount",
			req:    func(id string) dto.ApplyPaymentRequest { return dto.ApplyPaymentRequest{BillID: id, BillType: "EXAM", Amount: decimal.Zero, Method: "CASH"} },
			actor:  "bursar-1",
			expect: appErrors.ErrValidation,
		},
		{
			name:   "negative amount",
			req:    func(id string) dto.ApplyPaymentRequest { return dto.ApplyPaymentRequest{BillID: id, BillType: "EXAM", Amount: dec("-5"), Method: "CASH"} },
			actor:  "bursar-1",
			expect: appErrors.ErrValidation,
		},
		{
			name:   "three decimals",
			req:    func(id string) dto.ApplyPaymentRequest { return dto.ApplyPaymentRequest{BillID: id, BillType: "EXAM", Amount: dec("10.005"), Method: "CASH"} },
			actor:  "bursar-1",
			expect: appErrors.ErrValidation,
		},
		{
			name:   "unknown method",
			req:    func(id string) dto.ApplyPaymentRequest { return dto.ApplyPaymentRequest{BillID: id, BillType: "EXAM", Amount: dec("10"), Method: "CHEQUE"} },
			actor:  "bursar-1",
			expect: appErrors.ErrValidation,
		},
		{
			name:   "wrong bill kind",
			req:    func(id string) dto.ApplyPaymentRequest { return dto.ApplyPaymentRequest{BillID: id, BillType: "CERTIFICATE", Amount: dec("10"), Method: "CASH"} },
			actor:  "bursar-1",
			expect: appErrors.ErrNotFound,
		},
		{
			name:   "unknown bill",
			req:    func(string) dto.ApplyPaymentRequest { return dto.ApplyPaymentRequest{BillID: "bill-404", BillType: "EXAM", Amount: dec("10"), Method: "CASH"} },
			actor:  "bursar-1",
			expect: appErrors.ErrNotFound,
		},
		{
			name:   "missing actor",
			req:    func(id string) dto.ApplyPaymentRequest { return dto.ApplyPaymentRequest{BillID: id, BillType: "EXAM", Amount: dec("10"), Method: "CASH"} },
			actor:  "",
			expect: appErrors.ErrUnauthorized,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeBillRepo()
			svc := newTestLedger(repo, nil)
			bill, err := svc.CreateExamBill(context.Background(), dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"}, "bursar-1")
			require.NoError(t, err)

			_, err = svc.ApplyPayment(context.Background(), tc.req(bill.ID), tc.actor)
			assertAppError(t, err, tc.expect)

			stored, err := svc.GetBill(context.Background(), bill.ID)
			require.NoError(t, err)
			assert.Equal(t, models.BillStatusPending, stored.Status)
			assert.True(t, stored.PaidAmount.IsZero())
			assert.Empty(t, repo.payments[bill.ID])
		})
	}
}

func TestLedgerServiceApplyPaymentInternalError(t *testing.T) {
	repo := newFakeBillRepo()
	repo.applyErr = errors.New("deadlock detected")
	svc := newTestLedger(repo, nil)

	_, err := svc.ApplyPayment(context.Background(), dto.ApplyPaymentRequest{BillID: "bill-1", BillType: "EXAM", Amount: dec("10"), Method: "CARD"}, "bursar-1")
	assertAppError(t, err, appErrors.ErrInternal)
	assert.Equal(t, "failed to apply payment", appErrors.FromError(err).Message)
}

// The concurrency tests below run against fakeBillRepo, whose mutex stands in
// for the bill_sequences upsert lock and SELECT ... FOR UPDATE. They check the
// service keeps no racy state of its own; the Postgres locking itself needs an
// integration test against a real database.
func TestLedgerServiceConcurrentCreatesAgainstSerializedRepo(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)

	const n = 25
	var wg sync.WaitGroup
	numbers := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bill, err := svc.CreateCertificateBill(context.Background(), dto.CreateCertificateBillRequest{StudentID: "student-1", FeeStructureID: "fee-cert"}, "bursar-1")
			if assert.NoError(t, err) {
				numbers <- bill.BillNo
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[string]bool{}
	for no := range numbers {
		assert.False(t, seen[no], "duplicate bill number %s", no)
		seen[no] = true
	}
	require.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		assert.True(t, seen[fmt.Sprintf("CERT202404%04d", i)], "missing sequence %d", i)
	}
}

func TestLedgerServiceConcurrentPaymentsAgainstSerializedRepo(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)
	bill, err := svc.CreateExamBill(context.Background(), dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"}, "bursar-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.ApplyPayment(context.Background(), dto.ApplyPaymentRequest{BillID: bill.ID, BillType: "EXAM", Amount: dec("100"), Method: "CASH"}, "bursar-1")
		}()
	}
	wg.Wait()

	stored, err := svc.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidAmount.Equal(dec("500")))
	assert.Equal(t, models.BillStatusCompleted, stored.Status)
	assert.Len(t, repo.payments[bill.ID], 5)
}

func TestLedgerServiceListBillsValidatesFilter(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)

	badKind := models.BillKind("TUITION")
	_, _, err := svc.ListBills(context.Background(), models.BillFilter{Kind: &badKind})
	assertAppError(t, err, appErrors.ErrValidation)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, _, err = svc.ListBills(context.Background(), models.BillFilter{DueFrom: &from, DueTo: &to})
	assertAppError(t, err, appErrors.ErrValidation)

	bills, pagination, err := svc.ListBills(context.Background(), models.BillFilter{PageSize: 500})
	require.NoError(t, err)
	assert.NotNil(t, bills)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 20, repo.lastFilter.PageSize)

	repo.listErr = errors.New("boom")
	_, _, err = svc.ListBills(context.Background(), models.BillFilter{})
	assertAppError(t, err, appErrors.ErrInternal)
}

func TestLedgerServiceListOverdueOrdersAcrossKinds(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateExamBill(ctx, dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam", DueDate: strPtr("2024-04-10")}, "bursar-1")
	require.NoError(t, err)
	cert, err := svc.CreateCertificateBill(ctx, dto.CreateCertificateBillRequest{StudentID: "student-2", FeeStructureID: "fee-cert", DueDate: strPtr("2024-04-01")}, "bursar-1")
	require.NoError(t, err)
	_, err = svc.CreateExamBill(ctx, dto.CreateExamBillRequest{StudentID: "student-3", ExamID: "exam-1", FeeStructureID: "fee-exam", DueDate: strPtr("2024-06-01")}, "bursar-1")
	require.NoError(t, err)

	bills, pagination, err := svc.ListOverdue(ctx, models.OverdueFilter{})
	require.NoError(t, err)
	require.Len(t, bills, 2)
	assert.Equal(t, cert.ID, bills[0].ID)
	assert.Equal(t, models.BillKindExam, bills[1].Kind)
	assert.Equal(t, 2, pagination.TotalCount)
	assert.Equal(t, ledgerNow, repo.lastOverdue.Now)
}

func TestLedgerServiceSnapshotAndMissingBill(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, "bill-404")
	assertAppError(t, err, appErrors.ErrNotFound)
	_, err = svc.ListPayments(ctx, "bill-404")
	assertAppError(t, err, appErrors.ErrNotFound)

	bill, err := svc.CreateCertificateBill(ctx, dto.CreateCertificateBillRequest{StudentID: "student-1", FeeStructureID: "fee-cert"}, "bursar-1")
	require.NoError(t, err)
	_, err = svc.ApplyPayment(ctx, dto.ApplyPaymentRequest{BillID: bill.ID, BillType: "CERTIFICATE", Amount: dec("10.50"), Method: "MOBILE_MONEY"}, "bursar-1")
	require.NoError(t, err)

	snapshot, err := svc.Snapshot(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, bill.BillNo, snapshot.Bill.BillNo)
	assert.Len(t, snapshot.Payments, 1)
	assert.False(t, snapshot.Overdue)
	assert.Equal(t, ledgerNow, snapshot.GeneratedAt)
}

func TestLedgerServiceApplyPaymentPrecedence(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)
	ctx := context.Background()

	bill, err := svc.CreateExamBill(ctx, dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam"}, "bursar-1")
	require.NoError(t, err)
	_, err = svc.ApplyPayment(ctx, dto.ApplyPaymentRequest{BillID: bill.ID, BillType: "EXAM", Amount: dec("500"), Method: "CASH"}, "bursar-1")
	require.NoError(t, err)

	cases := []struct {
		name   string
		req    dto.ApplyPaymentRequest
		expect *appErrors.Error
	}{
		{
			name:   "missing bill with negative amount",
			req:    dto.ApplyPaymentRequest{BillID: "missing", BillType: "EXAM", Amount: dec("-5"), Method: "CASH"},
			expect: appErrors.ErrNotFound,
		},
		{
			name:   "settled bill with zero amount",
			req:    dto.ApplyPaymentRequest{BillID: bill.ID, BillType: "EXAM", Amount: decimal.Zero, Method: "CASH"},
			expect: appErrors.ErrInvalidState,
		},
		{
			name:   "settled bill with bad precision",
			req:    dto.ApplyPaymentRequest{BillID: bill.ID, BillType: "EXAM", Amount: dec("0.001"), Method: "CASH"},
			expect: appErrors.ErrInvalidState,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ApplyPayment(ctx, tc.req, "bursar-1")
			assertAppError(t, err, tc.expect)
		})
	}
	assert.Len(t, repo.payments[bill.ID], 1)
}

func TestLedgerServiceSettledBillLeavesOverdueList(t *testing.T) {
	repo := newFakeBillRepo()
	svc := newTestLedger(repo, nil)
	ctx := context.Background()

	bill, err := svc.CreateExamBill(ctx, dto.CreateExamBillRequest{StudentID: "student-1", ExamID: "exam-1", FeeStructureID: "fee-exam", DueDate: strPtr("2024-04-01")}, "bursar-1")
	require.NoError(t, err)

	overdue, _, err := svc.ListOverdue(ctx, models.OverdueFilter{})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	snapshot, err := svc.Snapshot(ctx, bill.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Overdue)

	_, err = svc.ApplyPayment(ctx, dto.ApplyPaymentRequest{BillID: bill.ID, BillType: "EXAM", Amount: dec("200"), Method: "CASH"}, "bursar-1")
	require.NoError(t, err)
	overdue, _, err = svc.ListOverdue(ctx, models.OverdueFilter{})
	require.NoError(t, err)
	require.Len(t, overdue, 1, "partially paid bills stay overdue")

	_, err = svc.ApplyPayment(ctx, dto.ApplyPaymentRequest{BillID: bill.ID, BillType: "EXAM", Amount: dec("300"), Method: "CASH"}, "bursar-1")
	require.NoError(t, err)

	overdue, pagination, err := svc.ListOverdue(ctx, models.OverdueFilter{})
	require.NoError(t, err)
	assert.Empty(t, overdue)
	assert.Zero(t, pagination.TotalCount)
	snapshot, err = svc.Snapshot(ctx, bill.ID)
	require.NoError(t, err)
	assert.False(t, snapshot.Overdue)
	assert.Equal(t, models.BillStatusCompleted, snapshot.Bill.Status)
}
