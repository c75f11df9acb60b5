package repository_test

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
	"github.com/zeitwerk/zeitwerk-backend/pkg/testutil"
)

// integrationSuite boots the shared PostgreSQL container and resets the
// schema. Tests calling it are skipped in short mode.
func integrationSuite(t *testing.T) *testutil.IntegrationSuite {
	t.Helper()
	testutil.SkipIfShort(t)

	ctx := context.Background()
	suite, err := testutil.NewIntegrationSuite(ctx)
	require.NoError(t, err)
	suite.Reset(t, ctx)

	return suite
}

func createTestEmployee(t *testing.T, suite *testutil.IntegrationSuite) *repository.Employee {
	t.Helper()

	fixture := suite.Fixtures.Employee(
		testutil.WithEmployeeName("Anna", "Schmidt"),
		testutil.WithHireDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	)
	emp := &repository.Employee{
		ID:             fixture.ID,
		EmployeeNumber: fixture.EmployeeNumber,
		FirstName:      fixture.FirstName,
		LastName:       fixture.LastName,
		Email:          fixture.Email,
		WeeklyHours:    fixture.WeeklyHours,
		HolidayRegion:  "DE-BY",
		HireDate:       fixture.HireDate,
		Status:         fixture.Status,
	}

	repo := repository.NewEmployeeRepository(suite.DB)
	require.NoError(t, repo.Create(context.Background(), emp))

	return emp
}

func TestLedgerRepository_AppendAndReplay(t *testing.T) {
	suite := integrationSuite(t)
	ctx := context.Background()

	emp := createTestEmployee(t, suite)
	repo := repository.NewLedgerRepository(suite.DB)
	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	rows := []*repository.Transaction{
		{
			EmployeeID:      emp.ID,
			TransactionDate: day,
			TransactionType: repository.TxTypeEarned,
			Hours:           decimal.RequireFromString("8.5"),
			ReferenceType:   repository.RefTypeTimeEntry,
			ReferenceID:     "11111111-1111-1111-1111-111111111111",
		},
		{
			EmployeeID:      emp.ID,
			TransactionDate: day,
			TransactionType: repository.TxTypeEarned,
			Hours:           decimal.NewFromInt(-8),
			ReferenceType:   repository.RefTypeWorkday,
			ReferenceID:     "2025-01-06",
		},
	}
	require.NoError(t, repo.AppendRows(ctx, emp.ID, rows))

	balance, err := repo.CurrentBalance(ctx, emp.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("0.5")), "balance %s", balance)

	page, err := repo.History(ctx, emp.ID, repository.HistoryFilter{}, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Transactions, 2)

	// newest first, balances linked
	assert.True(t, page.Transactions[0].BalanceAfter.Equal(balance))
	assert.True(t, page.Transactions[1].BalanceBefore.IsZero())
}

func TestLedgerRepository_NaturalKeyConflict(t *testing.T) {
	suite := integrationSuite(t)
	ctx := context.Background()

	emp := createTestEmployee(t, suite)
	repo := repository.NewLedgerRepository(suite.DB)

	row := func() *repository.Transaction {
		return &repository.Transaction{
			EmployeeID:      emp.ID,
			TransactionDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			TransactionType: repository.TxTypeCarryover,
			Hours:           decimal.NewFromInt(10),
			ReferenceType:   repository.RefTypeRollover,
			ReferenceID:     "2025",
		}
	}

	require.NoError(t, repo.AppendRows(ctx, emp.ID, []*repository.Transaction{row()}))

	err := repo.AppendRows(ctx, emp.ID, []*repository.Transaction{row()})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrConflict), "duplicate natural key: %v", err)
}

func TestLedgerRepository_ReplaceDayRowsPreservesCorrections(t *testing.T) {
	suite := integrationSuite(t)
	ctx := context.Background()

	emp := createTestEmployee(t, suite)
	repo := repository.NewLedgerRepository(suite.DB)
	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AppendRows(ctx, emp.ID, []*repository.Transaction{{
		EmployeeID:      emp.ID,
		TransactionDate: day,
		TransactionType: repository.TxTypeCorrection,
		Hours:           decimal.NewFromInt(2),
		ReferenceType:   repository.RefTypeCorrection,
		ReferenceID:     "22222222-2222-2222-2222-222222222222",
	}}))

	derived := []*repository.Transaction{{
		EmployeeID:      emp.ID,
		TransactionDate: day,
		TransactionType: repository.TxTypeEarned,
		Hours:           decimal.NewFromInt(1),
		ReferenceType:   repository.RefTypeWorkday,
		ReferenceID:     "2025-01-06",
	}}
	require.NoError(t, repo.ReplaceDayRows(ctx, emp.ID, day, derived))

	balance, err := repo.CurrentBalance(ctx, emp.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(3)), "balance %s", balance)
}

func TestLedgerRepository_ReplaceRangeRollsBackOnFailure(t *testing.T) {
	suite := integrationSuite(t)
	ctx := context.Background()

	emp := createTestEmployee(t, suite)
	repo := repository.NewLedgerRepository(suite.DB)
	monday := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	seed := []*repository.Transaction{{
		EmployeeID:      emp.ID,
		TransactionDate: monday,
		TransactionType: repository.TxTypeEarned,
		Hours:           decimal.NewFromInt(2),
		ReferenceType:   repository.RefTypeWorkday,
		ReferenceID:     "2025-01-06",
	}}
	require.NoError(t, repo.AppendRows(ctx, emp.ID, seed))

	// the second row violates the transaction_type check constraint, so
	// the whole swap must roll back
	replacement := []*repository.Transaction{
		{
			EmployeeID:      emp.ID,
			TransactionDate: monday,
			TransactionType: repository.TxTypeEarned,
			Hours:           decimal.NewFromInt(5),
			ReferenceType:   repository.RefTypeWorkday,
			ReferenceID:     "2025-01-06",
		},
		{
			EmployeeID:      emp.ID,
			TransactionDate: tuesday,
			TransactionType: "bogus",
			Hours:           decimal.NewFromInt(1),
			ReferenceType:   repository.RefTypeWorkday,
			ReferenceID:     "2025-01-07",
		},
	}
	require.Error(t, repo.ReplaceRange(ctx, emp.ID, monday, tuesday, replacement))

	balance, err := repo.CurrentBalance(ctx, emp.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(2)), "balance %s", balance)

	page, err := repo.History(ctx, emp.ID, repository.HistoryFilter{}, 10, "")
	require.NoError(t, err)
	require.Len(t, page.Transactions, 1)
	assert.True(t, page.Transactions[0].Hours.Equal(decimal.NewFromInt(2)))
}

func TestLedgerRepository_HistoryFilters(t *testing.T) {
	suite := integrationSuite(t)
	ctx := context.Background()

	emp := createTestEmployee(t, suite)
	repo := repository.NewLedgerRepository(suite.DB)

	rows := []*repository.Transaction{
		{
			EmployeeID:      emp.ID,
			TransactionDate: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			TransactionType: repository.TxTypeEarned,
			Hours:           decimal.NewFromInt(1),
			ReferenceType:   repository.RefTypeWorkday,
			ReferenceID:     "2025-01-06",
		},
		{
			EmployeeID:      emp.ID,
			TransactionDate: time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
			TransactionType: repository.TxTypeCorrection,
			Hours:           decimal.NewFromInt(2),
			ReferenceType:   repository.RefTypeCorrection,
			ReferenceID:     "33333333-3333-3333-3333-333333333333",
		},
		{
			EmployeeID:      emp.ID,
			TransactionDate: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
			TransactionType: repository.TxTypeEarned,
			Hours:           decimal.NewFromInt(3),
			ReferenceType:   repository.RefTypeWorkday,
			ReferenceID:     "2025-02-03",
		},
	}
	require.NoError(t, repo.AppendRows(ctx, emp.ID, rows))

	byType, err := repo.History(ctx, emp.ID, repository.HistoryFilter{
		TransactionType: repository.TxTypeCorrection,
	}, 10, "")
	require.NoError(t, err)
	require.Len(t, byType.Transactions, 1)
	assert.Equal(t, repository.TxTypeCorrection, byType.Transactions[0].TransactionType)

	january, err := repo.History(ctx, emp.ID, repository.HistoryFilter{
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}, 10, "")
	require.NoError(t, err)
	require.Len(t, january.Transactions, 2)
}

func TestSnapshotRepository_UpsertAndFlag(t *testing.T) {
	suite := integrationSuite(t)
	ctx := context.Background()

	emp := createTestEmployee(t, suite)
	repo := repository.NewSnapshotRepository(suite.DB)

	pb := &repository.PeriodBalance{
		EmployeeID:    emp.ID,
		PeriodType:    repository.PeriodMonth,
		PeriodKey:     "2025-01",
		TargetHours:   decimal.NewFromInt(184),
		ActualHours:   decimal.NewFromInt(180),
		OvertimeHours: decimal.NewFromInt(-4),
	}
	require.NoError(t, repo.Upsert(ctx, pb))

	pb.ActualHours = decimal.NewFromInt(186)
	pb.OvertimeHours = decimal.NewFromInt(2)
	require.NoError(t, repo.Upsert(ctx, pb))

	stored, err := repo.Get(ctx, emp.ID, repository.PeriodMonth, "2025-01")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.OvertimeHours.Equal(decimal.NewFromInt(2)))
	assert.False(t, stored.VerificationPending)

	require.NoError(t, repo.FlagVerificationPending(ctx, emp.ID, repository.PeriodMonth, "2025-01"))

	flagged, err := repo.Get(ctx, emp.ID, repository.PeriodMonth, "2025-01")
	require.NoError(t, err)
	assert.True(t, flagged.VerificationPending)
}
