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
	"github.com/zeitwerk/zeitwerk-backend/pkg/messaging"
)

func seedClosingBalance(t *testing.T, env *testEnv, employeeID, hours string) {
	t.Helper()
	require.NoError(t, env.ledgerSvc.Append(context.Background(), employeeID, []*repository.Transaction{{
		EmployeeID:      employeeID,
		TransactionDate: date(2024, time.December, 31),
		TransactionType: repository.TxTypeCorrection,
		Hours:           decimal.RequireFromString(hours),
		ReferenceType:   repository.RefTypeCorrection,
		ReferenceID:     newTestID(9000),
	}}))
}

func TestPerformRolloverWritesCarryover(t *testing.T) {
	env := newTestEnv()
	svc := env.rolloverService()
	ctx := context.Background()

	seedClosingBalance(t, env, testEmployeeID, "37.5")

	report, err := svc.PerformRollover(ctx, 2025, "hr-admin")
	require.NoError(t, err)
	assert.Equal(t, []string{testEmployeeID}, report.Succeeded)

	chain := env.ledger.chain(testEmployeeID)
	require.Len(t, chain, 2)

	carryover := chain[1]
	assert.Equal(t, repository.TxTypeCarryover, carryover.TransactionType)
	assert.Equal(t, repository.RefTypeRollover, carryover.ReferenceType)
	assert.Equal(t, "2025", carryover.ReferenceID)
	assert.True(t, carryover.TransactionDate.Equal(date(2025, time.January, 1)))
	assert.True(t, carryover.Hours.Equal(decimal.RequireFromString("37.5")))

	// the carryover restates the closing balance instead of adding to it
	balance, err := env.ledgerSvc.CurrentBalance(ctx, testEmployeeID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("37.5")), "balance %s", balance)

	env.publisher.AssertEventPublished(t, messaging.EventYearEndRolloverCompleted)
}

func TestPerformRolloverIsIdempotent(t *testing.T) {
	env := newTestEnv()
	svc := env.rolloverService()
	ctx := context.Background()

	seedClosingBalance(t, env, testEmployeeID, "12")

	_, err := svc.PerformRollover(ctx, 2025, "hr-admin")
	require.NoError(t, err)
	_, err = svc.PerformRollover(ctx, 2025, "hr-admin")
	require.NoError(t, err)

	assert.Len(t, env.ledger.chain(testEmployeeID), 2)

	balance, err := env.ledgerSvc.CurrentBalance(ctx, testEmployeeID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(12)))
}

func TestPerformRolloverZeroBalanceStillMarks(t *testing.T) {
	env := newTestEnv()
	svc := env.rolloverService()
	ctx := context.Background()

	_, err := svc.PerformRollover(ctx, 2025, "hr-admin")
	require.NoError(t, err)

	// the zero carryover row marks the year as rolled over
	chain := env.ledger.chain(testEmployeeID)
	require.Len(t, chain, 1)
	assert.Equal(t, repository.TxTypeCarryover, chain[0].TransactionType)
	assert.True(t, chain[0].Hours.IsZero())
}

func TestPerformRolloverVacationCarryoverCapped(t *testing.T) {
	env := newTestEnv()
	svc := env.rolloverService()
	ctx := context.Background()

	require.NoError(t, env.vacation.Upsert(ctx, &repository.VacationBalance{
		EmployeeID:        testEmployeeID,
		Year:              2024,
		AnnualEntitlement: decimal.NewFromInt(30),
		Taken:             decimal.NewFromInt(5),
	}))

	_, err := svc.PerformRollover(ctx, 2025, "hr-admin")
	require.NoError(t, err)

	vb, err := env.vacation.Get(ctx, testEmployeeID, 2025)
	require.NoError(t, err)
	require.NotNil(t, vb)
	assert.True(t, vb.AnnualEntitlement.Equal(decimal.NewFromInt(30)))
	assert.True(t, vb.CarryoverFromPrevious.Equal(decimal.NewFromInt(10)), "carryover %s", vb.CarryoverFromPrevious)
	assert.True(t, vb.Taken.IsZero())
}

func TestPerformRolloverKeepsExistingVacationYear(t *testing.T) {
	env := newTestEnv()
	svc := env.rolloverService()
	ctx := context.Background()

	require.NoError(t, env.vacation.Upsert(ctx, &repository.VacationBalance{
		EmployeeID:        testEmployeeID,
		Year:              2025,
		AnnualEntitlement: decimal.NewFromInt(30),
		Taken:             decimal.NewFromInt(3),
	}))

	_, err := svc.PerformRollover(ctx, 2025, "hr-admin")
	require.NoError(t, err)

	vb, err := env.vacation.Get(ctx, testEmployeeID, 2025)
	require.NoError(t, err)
	assert.True(t, vb.Taken.Equal(decimal.NewFromInt(3)))
}

func TestPerformRolloverNoVacationHistory(t *testing.T) {
	env := newTestEnv()
	svc := env.rolloverService()
	ctx := context.Background()

	_, err := svc.PerformRollover(ctx, 2025, "hr-admin")
	require.NoError(t, err)

	vb, err := env.vacation.Get(ctx, testEmployeeID, 2025)
	require.NoError(t, err)
	require.NotNil(t, vb)
	assert.True(t, vb.CarryoverFromPrevious.IsZero())
}

func TestPerformRolloverImplausibleYear(t *testing.T) {
	env := newTestEnv()
	svc := env.rolloverService()

	_, err := svc.PerformRollover(context.Background(), 1999, "hr-admin")
	assert.True(t, stderrors.Is(err, errors.ErrBadRequest))

	_, err = svc.PerformRollover(context.Background(), 2101, "hr-admin")
	assert.True(t, stderrors.Is(err, errors.ErrBadRequest))
}

func TestNewYearStartsFromCarryover(t *testing.T) {
	env := newTestEnv()
	svc := env.rolloverService()
	ctx := context.Background()

	seedClosingBalance(t, env, testEmployeeID, "37.5")
	_, err := svc.PerformRollover(ctx, 2025, "hr-admin")
	require.NoError(t, err)

	// new year activity builds on top of the carryover
	env.addEntry(testEmployeeID, monday, 10)
	require.NoError(t, env.ledgerSvc.ReconcileDay(ctx, testEmployeeID, monday))

	balance, err := env.ledgerSvc.CurrentBalance(ctx, testEmployeeID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("39.5")), "balance %s", balance)

	// period sums exclude the carryover, the running balance includes it
	janSum, err := env.ledger.SumForPeriod(ctx, testEmployeeID, date(2025, time.January, 1), date(2025, time.January, 31), true)
	require.NoError(t, err)
	assert.True(t, janSum.Equal(decimal.NewFromInt(2)), "january sum %s", janSum)
}
