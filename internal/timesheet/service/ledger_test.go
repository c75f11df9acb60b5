package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/pkg/messaging"
)

func TestDeriveDayRows(t *testing.T) {
	env := newTestEnv()
	entry := env.addEntry(testEmployeeID, monday, 8)
	absence := env.addAbsence(testEmployeeID, repository.AbsenceTypeSick, repository.AbsenceStatusApproved, monday, monday)

	schedule, err := env.resolver.Resolve(context.Background(), testEmployeeID, monday, monday)
	require.NoError(t, err)

	rows := deriveDayRows(schedule, monday, env.entries.entries, env.absences.absences)
	require.Len(t, rows, 3)

	assert.Equal(t, repository.TxTypeEarned, rows[0].TransactionType)
	assert.Equal(t, repository.RefTypeTimeEntry, rows[0].ReferenceType)
	assert.Equal(t, entry.ID, rows[0].ReferenceID)
	assert.True(t, rows[0].Hours.Equal(decimal.NewFromInt(8)))

	assert.Equal(t, repository.TxTypeEarned, rows[1].TransactionType)
	assert.Equal(t, repository.RefTypeWorkday, rows[1].ReferenceType)
	assert.Equal(t, "2025-01-06", rows[1].ReferenceID)
	assert.True(t, rows[1].Hours.Equal(decimal.NewFromInt(-8)))

	assert.Equal(t, repository.TxTypeSickCredit, rows[2].TransactionType)
	assert.Equal(t, repository.RefTypeAbsence, rows[2].ReferenceType)
	assert.Equal(t, absence.ID, rows[2].ReferenceID)
	assert.True(t, rows[2].Hours.Equal(decimal.NewFromInt(8)))
}

func TestDeriveDayRowsZeroTargetDay(t *testing.T) {
	env := newTestEnv()
	saturday := monday.AddDate(0, 0, 5)
	env.addAbsence(testEmployeeID, repository.AbsenceTypeVacation, repository.AbsenceStatusApproved, saturday, saturday)

	schedule, err := env.resolver.Resolve(context.Background(), testEmployeeID, saturday, saturday)
	require.NoError(t, err)

	// no target debit and no absence credit on an unscheduled day
	rows := deriveDayRows(schedule, saturday, nil, env.absences.absences)
	assert.Empty(t, rows)
}

func TestDeriveDayRowsOutsideEmployment(t *testing.T) {
	env := newTestEnv()
	before := date(2023, time.December, 29)

	schedule, err := env.resolver.Resolve(context.Background(), testEmployeeID, before, before)
	require.NoError(t, err)

	assert.Nil(t, deriveDayRows(schedule, before, nil, nil))
}

func TestDeriveDayRowsSkipsZeroNetEntry(t *testing.T) {
	env := newTestEnv()
	start := time.Date(2025, time.January, 6, 8, 0, 0, 0, time.UTC)
	env.entries.entries = append(env.entries.entries, &repository.TimeEntry{
		ID:           newTestID(1),
		EmployeeID:   testEmployeeID,
		EntryDate:    monday,
		StartTime:    start,
		EndTime:      start.Add(30 * time.Minute),
		BreakMinutes: 30,
	})

	schedule, err := env.resolver.Resolve(context.Background(), testEmployeeID, monday, monday)
	require.NoError(t, err)

	rows := deriveDayRows(schedule, monday, env.entries.entries, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, repository.RefTypeWorkday, rows[0].ReferenceType)
}

func TestReconcileDayIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addEntry(testEmployeeID, monday, 9)

	require.NoError(t, env.ledgerSvc.ReconcileDay(ctx, testEmployeeID, monday))
	require.NoError(t, env.ledgerSvc.ReconcileDay(ctx, testEmployeeID, monday))

	chain := env.ledger.chain(testEmployeeID)
	require.Len(t, chain, 2)

	balance, err := env.ledgerSvc.CurrentBalance(ctx, testEmployeeID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(1)), "balance %s", balance)
}

func TestReconcileRangeBuildsWeek(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		env.addEntry(testEmployeeID, monday.AddDate(0, 0, i), 8)
	}

	require.NoError(t, env.ledgerSvc.ReconcileRange(ctx, testEmployeeID, monday, monday.AddDate(0, 0, 6)))

	// one earned row and one workday debit per weekday
	chain := env.ledger.chain(testEmployeeID)
	assert.Len(t, chain, 10)

	// the whole week commits as one swap
	assert.Equal(t, 1, env.ledger.replaceRanges)

	balance, err := env.ledgerSvc.CurrentBalance(ctx, testEmployeeID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "balance %s", balance)
}

func TestChainInvariant(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addEntry(testEmployeeID, monday, 10)
	env.addEntry(testEmployeeID, monday.AddDate(0, 0, 1), 6)

	require.NoError(t, env.ledgerSvc.ReconcileRange(ctx, testEmployeeID, monday, monday.AddDate(0, 0, 1)))
	require.NoError(t, env.ledgerSvc.Append(ctx, testEmployeeID, []*repository.Transaction{{
		EmployeeID:      testEmployeeID,
		TransactionDate: monday.AddDate(0, 0, 2),
		TransactionType: repository.TxTypeCorrection,
		Hours:           decimal.RequireFromString("-1.25"),
		ReferenceType:   repository.RefTypeCorrection,
		ReferenceID:     newTestID(42),
	}}))

	chain := env.ledger.chain(testEmployeeID)
	require.NotEmpty(t, chain)

	prev := decimal.Zero
	for _, tx := range chain {
		assert.True(t, tx.BalanceBefore.Equal(prev), "balance before %s, want %s", tx.BalanceBefore, prev)
		assert.True(t, tx.BalanceAfter.Equal(tx.BalanceBefore.Add(tx.Hours)))
		prev = tx.BalanceAfter
	}
	assert.True(t, prev.Equal(decimal.RequireFromString("-1.25")), "final balance %s", prev)
}

func TestRecomputeBalancesRebuildsDerivedRows(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// bounded employment window keeps the rebuild deterministic
	termination := date(2025, time.January, 10)
	employeeID := newTestID(2)
	env.employees.employees[employeeID] = &repository.Employee{
		ID:              employeeID,
		FirstName:       "Jonas",
		LastName:        "Weber",
		WeeklyHours:     decimal.NewFromInt(40),
		HolidayRegion:   "DE-BY",
		HireDate:        monday,
		TerminationDate: &termination,
		Status:          "active",
	}

	env.addEntry(employeeID, monday, 10)
	env.addEntry(employeeID, monday.AddDate(0, 0, 1), 8)
	env.addEntry(employeeID, monday.AddDate(0, 0, 2), 8)

	require.NoError(t, env.ledgerSvc.Append(ctx, employeeID, []*repository.Transaction{{
		EmployeeID:      employeeID,
		TransactionDate: monday,
		TransactionType: repository.TxTypeCorrection,
		Hours:           decimal.RequireFromString("2.5"),
		ReferenceType:   repository.RefTypeCorrection,
		ReferenceID:     newTestID(43),
	}}))

	require.NoError(t, env.ledgerSvc.ReconcileRange(ctx, employeeID, monday, termination))
	before, err := env.ledgerSvc.CurrentBalance(ctx, employeeID)
	require.NoError(t, err)

	balance, err := env.ledgerSvc.RecomputeBalances(ctx, employeeID, "test")
	require.NoError(t, err)

	// worked 26 against a 40 hour week, plus the preserved correction
	assert.True(t, balance.Equal(decimal.RequireFromString("-11.5")), "balance %s", balance)

	// a full rebuild with unchanged data preserves the incremental balance
	assert.True(t, balance.Equal(before), "before %s after %s", before, balance)

	// rebuilding again yields the same chain
	again, err := env.ledgerSvc.RecomputeBalances(ctx, employeeID, "test")
	require.NoError(t, err)
	assert.True(t, again.Equal(balance))

	var corrections int
	for _, tx := range env.ledger.chain(employeeID) {
		if tx.TransactionType == repository.TxTypeCorrection {
			corrections++
		}
	}
	assert.Equal(t, 1, corrections)

	env.publisher.AssertEventPublished(t, messaging.EventBalanceRecalculated)
}

func TestBalanceAsOfMidWeek(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addEntry(testEmployeeID, monday, 10)
	env.addEntry(testEmployeeID, monday.AddDate(0, 0, 1), 7)

	require.NoError(t, env.ledgerSvc.ReconcileRange(ctx, testEmployeeID, monday, monday.AddDate(0, 0, 1)))

	asOf, err := env.ledgerSvc.BalanceAsOf(ctx, testEmployeeID, monday)
	require.NoError(t, err)
	assert.True(t, asOf.Equal(decimal.NewFromInt(2)), "as of monday %s", asOf)

	current, err := env.ledgerSvc.CurrentBalance(ctx, testEmployeeID)
	require.NoError(t, err)
	assert.True(t, current.Equal(decimal.NewFromInt(1)), "current %s", current)
}
