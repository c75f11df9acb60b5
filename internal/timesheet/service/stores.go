package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
)

// Store interfaces implemented by the sqlx repositories. Services depend on
// these so the calculation engine can be exercised against in-memory stores.

// EmployeeStore provides employee and schedule access
type EmployeeStore interface {
	GetByID(ctx context.Context, id string) (*repository.Employee, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
	GetScheduleOverrides(ctx context.Context, employeeID string) ([]*repository.ScheduleOverride, error)
}

// EntryStore provides time entry access
type EntryStore interface {
	GetByID(ctx context.Context, id string) (*repository.TimeEntry, error)
	ListByEmployeeAndDate(ctx context.Context, employeeID string, day time.Time) ([]*repository.TimeEntry, error)
	ListByEmployeeBetween(ctx context.Context, employeeID string, from, to time.Time) ([]*repository.TimeEntry, error)
}

// AbsenceStore provides absence access
type AbsenceStore interface {
	GetByID(ctx context.Context, id string) (*repository.Absence, error)
	ListApprovedCovering(ctx context.Context, employeeID string, from, to time.Time) ([]*repository.Absence, error)
}

// HolidayStore provides public holiday lookup
type HolidayStore interface {
	HolidaySet(ctx context.Context, region string, from, to time.Time) (map[string]bool, error)
}

// LedgerStore provides atomic ledger mutations and reads
type LedgerStore interface {
	ReplaceRange(ctx context.Context, employeeID string, from, to time.Time, rows []*repository.Transaction) error
	RebuildDerived(ctx context.Context, employeeID string, derived []*repository.Transaction) (decimal.Decimal, int, error)
	AppendRows(ctx context.Context, employeeID string, rows []*repository.Transaction) error
	RemoveByReference(ctx context.Context, employeeID, refType, refID string) error
	ExistsByNaturalKey(ctx context.Context, employeeID string, date time.Time, txType, refType, refID string) (bool, error)
	CurrentBalance(ctx context.Context, employeeID string) (decimal.Decimal, error)
	BalanceAsOf(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, error)
	SumForPeriod(ctx context.Context, employeeID string, from, to time.Time, excludeCarryover bool) (decimal.Decimal, error)
	SumCorrections(ctx context.Context, employeeID string, from, to time.Time) (decimal.Decimal, error)
	History(ctx context.Context, employeeID string, filter repository.HistoryFilter, limit int, cursor string) (*repository.HistoryPage, error)
}

// SnapshotStore provides period balance cache access
type SnapshotStore interface {
	Upsert(ctx context.Context, pb *repository.PeriodBalance) error
	Get(ctx context.Context, employeeID, periodType, periodKey string) (*repository.PeriodBalance, error)
	ListForEmployee(ctx context.Context, employeeID, periodType string) ([]*repository.PeriodBalance, error)
	FlagVerificationPending(ctx context.Context, employeeID, periodType, periodKey string) error
	DeleteForEmployee(ctx context.Context, employeeID string) error
}

// CorrectionStore provides correction audit record access
type CorrectionStore interface {
	Create(ctx context.Context, c *repository.Correction) error
	GetByID(ctx context.Context, id string) (*repository.Correction, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]*repository.Correction, error)
	MarkReversed(ctx context.Context, id string) error
}

// VacationStore provides vacation balance access
type VacationStore interface {
	Get(ctx context.Context, employeeID string, year int) (*repository.VacationBalance, error)
	Upsert(ctx context.Context, vb *repository.VacationBalance) error
	AddTaken(ctx context.Context, employeeID string, year int, days decimal.Decimal) error
}

// EventPublisher publishes domain events. Implemented by events.Publisher and
// by testutil.MockPublisher in tests.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}
