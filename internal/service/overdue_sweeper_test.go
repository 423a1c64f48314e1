package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

type stubOverdueCounter struct {
	counts []models.OverdueCount
	err    error
	calls  int32
}

func (s *stubOverdueCounter) CountOverdue(ctx context.Context) ([]models.OverdueCount, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.counts, s.err
}

func TestOverdueSweeperPublishesGauges(t *testing.T) {
	counter := &stubOverdueCounter{counts: []models.OverdueCount{
		{Kind: models.BillKindExam, Count: 3, Outstanding: dec("1250.00")},
	}}
	metrics := NewMetricsService()
	sweeper, err := NewOverdueSweeper(counter, metrics, nil, OverdueSweeperConfig{})
	require.NoError(t, err)

	counts, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Len(t, counts, 1)

	expected := `
# HELP billing_overdue_bills Unsettled bills past their due date, by kind
# TYPE billing_overdue_bills gauge
billing_overdue_bills{kind="CERTIFICATE"} 0
billing_overdue_bills{kind="EXAM"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "billing_overdue_bills"))
}

func TestOverdueSweeperRejectsBadSchedule(t *testing.T) {
	_, err := NewOverdueSweeper(&stubOverdueCounter{}, nil, nil, OverdueSweeperConfig{Schedule: "every tuesday"})
	require.Error(t, err)
}

func TestOverdueSweeperPropagatesCounterError(t *testing.T) {
	sweeper, err := NewOverdueSweeper(&stubOverdueCounter{err: errors.New("db down")}, nil, nil, OverdueSweeperConfig{Schedule: "@every 1h"})
	require.NoError(t, err)

	_, err = sweeper.Sweep(context.Background())
	require.Error(t, err)
}

func TestOverdueSweeperTriggerRunsThroughQueue(t *testing.T) {
	counter := &stubOverdueCounter{}
	sweeper, err := NewOverdueSweeper(counter, nil, nil, OverdueSweeperConfig{Schedule: "@every 1h"})
	require.NoError(t, err)

	sweeper.Start(context.Background())
	sweeper.trigger()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&counter.calls) == 1 }, time.Second, 10*time.Millisecond)
	sweeper.Stop()
}
