package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
	"github.com/zeitwerk/zeitwerk-backend/pkg/messaging"
)

func (env *testEnv) reconcileWeek(t *testing.T, hoursByWeekday []float64) {
	t.Helper()
	ctx := context.Background()
	for i, hours := range hoursByWeekday {
		if hours > 0 {
			env.addEntry(testEmployeeID, monday.AddDate(0, 0, i), hours)
		}
	}
	require.NoError(t, env.reconciler.RefreshPeriodBalances(ctx, testEmployeeID, monday, monday.AddDate(0, 0, 6)))
}

func TestRefreshPeriodBalancesWritesAllGranularities(t *testing.T) {
	env := newTestEnv()
	env.reconcileWeek(t, []float64{10, 8, 8, 8, 6})

	ctx := context.Background()

	day, err := env.snapshots.Get(ctx, testEmployeeID, repository.PeriodDay, "2025-01-06")
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.True(t, day.TargetHours.Equal(decimal.NewFromInt(8)))
	assert.True(t, day.ActualHours.Equal(decimal.NewFromInt(10)))
	assert.True(t, day.OvertimeHours.Equal(decimal.NewFromInt(2)))

	week, err := env.snapshots.Get(ctx, testEmployeeID, repository.PeriodWeek, "2025-W02")
	require.NoError(t, err)
	require.NotNil(t, week)
	assert.True(t, week.TargetHours.Equal(decimal.NewFromInt(40)))
	assert.True(t, week.ActualHours.Equal(decimal.NewFromInt(40)))
	assert.True(t, week.OvertimeHours.IsZero())

	month, err := env.snapshots.Get(ctx, testEmployeeID, repository.PeriodMonth, "2025-01")
	require.NoError(t, err)
	require.NotNil(t, month)
}

func TestRefreshPeriodBalancesIsIdempotent(t *testing.T) {
	env := newTestEnv()
	env.reconcileWeek(t, []float64{8, 8, 8, 8, 8})

	before := len(env.snapshots.snapshots)
	require.NoError(t, env.reconciler.RefreshPeriodBalances(context.Background(), testEmployeeID, monday, monday.AddDate(0, 0, 6)))
	assert.Equal(t, before, len(env.snapshots.snapshots))
}

func TestRefreshPeriodBalancesRecordsCarryover(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	jan1 := date(2025, time.January, 1)

	require.NoError(t, env.ledgerSvc.Append(ctx, testEmployeeID, []*repository.Transaction{{
		EmployeeID:      testEmployeeID,
		TransactionDate: jan1,
		TransactionType: repository.TxTypeCarryover,
		Hours:           decimal.RequireFromString("12.5"),
		ReferenceType:   repository.RefTypeRollover,
		ReferenceID:     "2025",
	}}))
	require.NoError(t, env.reconciler.RefreshPeriodBalances(ctx, testEmployeeID, jan1, jan1))

	month, err := env.snapshots.Get(ctx, testEmployeeID, repository.PeriodMonth, "2025-01")
	require.NoError(t, err)
	require.NotNil(t, month)

	// the carryover is reported separately, never as period overtime: January
	// has 23 scheduled days and nothing worked, so overtime is -184 exactly
	assert.True(t, month.OvertimeHours.Equal(decimal.NewFromInt(-184)), "overtime %s", month.OvertimeHours)
	require.NotNil(t, month.CarryoverHours)
	assert.True(t, month.CarryoverHours.Equal(decimal.RequireFromString("12.5")))
}

func TestRefreshPeriodBalancesSweepsInactiveDays(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// no entries at all: the scheduled debit must still reach the ledger
	require.NoError(t, env.reconciler.RefreshPeriodBalances(ctx, testEmployeeID, monday, monday))

	day, err := env.snapshots.Get(ctx, testEmployeeID, repository.PeriodDay, "2025-01-06")
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.True(t, day.TargetHours.Equal(decimal.NewFromInt(8)))
	assert.True(t, day.ActualHours.IsZero())
	assert.True(t, day.OvertimeHours.Equal(decimal.NewFromInt(-8)), "overtime %s", day.OvertimeHours)
	assert.False(t, day.VerificationPending)

	sum, err := env.ledger.SumForPeriod(ctx, testEmployeeID, monday, monday, true)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(-8)), "ledger sum %s", sum)
}

// skewedLedger misreports period sums, standing in for a divergent read path
type skewedLedger struct {
	*fakeLedgerStore
	skew decimal.Decimal
}

func (s *skewedLedger) SumForPeriod(ctx context.Context, employeeID string, from, to time.Time, excludeCarryover bool) (decimal.Decimal, error) {
	sum, err := s.fakeLedgerStore.SumForPeriod(ctx, employeeID, from, to, excludeCarryover)
	return sum.Add(s.skew), err
}

func TestRefreshPeriodBalancesFlagsCalculatorDisagreement(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	log := logger.New("test", "test")
	skewed := &skewedLedger{fakeLedgerStore: env.ledger, skew: decimal.NewFromInt(4)}
	reconciler := NewReconciler(env.aggregator, env.ledgerSvc, skewed, env.snapshots, env.publisher, log, 0.01)

	env.addEntry(testEmployeeID, monday, 8)
	err := reconciler.RefreshPeriodBalances(ctx, testEmployeeID, monday, monday)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrIntegrity), "want integrity error, got %v", err)

	flagged, getErr := env.snapshots.Get(ctx, testEmployeeID, repository.PeriodDay, "2025-01-06")
	require.NoError(t, getErr)
	require.NotNil(t, flagged)
	assert.True(t, flagged.VerificationPending)

	// the disagreeing value stays stored for inspection
	assert.True(t, flagged.OvertimeHours.Equal(decimal.NewFromInt(4)), "overtime %s", flagged.OvertimeHours)

	env.publisher.AssertEventPublished(t, messaging.EventIntegrityFlagged)
}

func TestVerifyPeriodConsistent(t *testing.T) {
	env := newTestEnv()
	env.reconcileWeek(t, []float64{9, 8, 8, 8, 8})

	err := env.reconciler.VerifyPeriod(context.Background(), testEmployeeID, repository.PeriodMonth, "2025-01")
	assert.NoError(t, err)
}

func TestVerifyPeriodFlagsDisagreement(t *testing.T) {
	env := newTestEnv()
	env.reconcileWeek(t, []float64{9, 8, 8, 8, 8})
	ctx := context.Background()

	// tamper with the stored snapshot to simulate drift
	pb := env.snapshots.snapshots[snapKey(testEmployeeID, repository.PeriodMonth, "2025-01")]
	require.NotNil(t, pb)
	pb.OvertimeHours = pb.OvertimeHours.Add(decimal.NewFromInt(5))

	err := env.reconciler.VerifyPeriod(ctx, testEmployeeID, repository.PeriodMonth, "2025-01")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrIntegrity))

	flagged, getErr := env.snapshots.Get(ctx, testEmployeeID, repository.PeriodMonth, "2025-01")
	require.NoError(t, getErr)
	assert.True(t, flagged.VerificationPending)

	// the stored value stays untouched for inspection
	assert.True(t, flagged.OvertimeHours.Equal(pb.OvertimeHours))

	env.publisher.AssertEventPublished(t, messaging.EventIntegrityFlagged)
}

func TestVerifyPeriodToleratesRoundingNoise(t *testing.T) {
	env := newTestEnv()
	env.reconcileWeek(t, []float64{8, 8, 8, 8, 8})
	ctx := context.Background()

	pb := env.snapshots.snapshots[snapKey(testEmployeeID, repository.PeriodWeek, "2025-W02")]
	require.NotNil(t, pb)
	pb.OvertimeHours = pb.OvertimeHours.Add(decimal.RequireFromString("0.01"))

	assert.NoError(t, env.reconciler.VerifyPeriod(ctx, testEmployeeID, repository.PeriodWeek, "2025-W02"))
}

func TestVerifyPeriodUnknownSnapshot(t *testing.T) {
	env := newTestEnv()

	err := env.reconciler.VerifyPeriod(context.Background(), testEmployeeID, repository.PeriodMonth, "2030-01")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestVerifyMonthsCoversAllSnapshots(t *testing.T) {
	env := newTestEnv()
	env.reconcileWeek(t, []float64{8, 8, 8, 8, 8})
	ctx := context.Background()

	require.NoError(t, env.reconciler.VerifyMonths(ctx, testEmployeeID))

	pb := env.snapshots.snapshots[snapKey(testEmployeeID, repository.PeriodMonth, "2025-01")]
	pb.OvertimeHours = decimal.NewFromInt(99)

	err := env.reconciler.VerifyMonths(ctx, testEmployeeID)
	assert.True(t, stderrors.Is(err, errors.ErrIntegrity))
}

func TestPeriodRangeDecoding(t *testing.T) {
	tests := []struct {
		periodType string
		periodKey  string
		wantFrom   time.Time
		wantTo     time.Time
	}{
		{repository.PeriodDay, "2025-01-06", date(2025, time.January, 6), date(2025, time.January, 6)},
		{repository.PeriodWeek, "2025-W02", date(2025, time.January, 6), date(2025, time.January, 12)},
		{repository.PeriodWeek, "2025-W01", date(2024, time.December, 30), date(2025, time.January, 5)},
		{repository.PeriodMonth, "2025-02", date(2025, time.February, 1), date(2025, time.February, 28)},
	}

	for _, tt := range tests {
		from, to, err := periodRange(tt.periodType, tt.periodKey)
		require.NoError(t, err, tt.periodKey)
		assert.True(t, from.Equal(tt.wantFrom), "%s from %s", tt.periodKey, from)
		assert.True(t, to.Equal(tt.wantTo), "%s to %s", tt.periodKey, to)
	}

	_, _, err := periodRange(repository.PeriodWeek, "garbage")
	assert.Error(t, err)

	_, _, err = periodRange("quarter", "2025-Q1")
	assert.Error(t, err)
}
