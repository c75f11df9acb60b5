package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
	"github.com/zeitwerk/zeitwerk-backend/pkg/testutil"
)

const testEmployeeID = "11111111-1111-1111-1111-111111111111"

// testEnv wires the calculation engine against in-memory stores
type testEnv struct {
	employees *fakeEmployeeStore
	entries   *fakeEntryStore
	absences  *fakeAbsenceStore
	holidays  *fakeHolidayStore
	ledger    *fakeLedgerStore
	snapshots *fakeSnapshotStore
	vacation  *fakeVacationStore
	publisher *testutil.MockPublisher

	resolver    *ScheduleResolver
	targets     *TargetCalculator
	aggregator  *ActualAggregator
	ledgerSvc   *LedgerService
	reconciler  *Reconciler
	corrections *fakeCorrectionStore
}

func newTestEnv() *testEnv {
	env := &testEnv{
		employees:   newFakeEmployeeStore(),
		entries:     &fakeEntryStore{},
		absences:    &fakeAbsenceStore{},
		holidays:    &fakeHolidayStore{},
		ledger:      &fakeLedgerStore{},
		snapshots:   newFakeSnapshotStore(),
		vacation:    newFakeVacationStore(),
		publisher:   testutil.NewMockPublisher(),
		corrections: &fakeCorrectionStore{},
	}

	log := logger.New("test", "test")
	env.resolver = NewScheduleResolver(env.employees, env.holidays)
	env.targets = NewTargetCalculator(env.resolver)
	env.aggregator = NewActualAggregator(env.entries, env.absences, env.ledger, env.resolver)
	env.ledgerSvc = NewLedgerService(env.resolver, env.entries, env.absences, env.ledger, env.publisher, log)
	env.reconciler = NewReconciler(env.aggregator, env.ledgerSvc, env.ledger, env.snapshots, env.publisher, log, 0.01)

	env.employees.employees[testEmployeeID] = &repository.Employee{
		ID:            testEmployeeID,
		FirstName:     "Anna",
		LastName:      "Schmidt",
		WeeklyHours:   decimal.NewFromInt(40),
		HolidayRegion: "DE-BY",
		HireDate:      date(2024, 1, 1),
		Status:        "active",
	}

	return env
}

func (env *testEnv) correctionService() *CorrectionService {
	log := logger.New("test", "test")
	return NewCorrectionService(env.employees, env.corrections, env.ledgerSvc, env.publisher, log)
}

func (env *testEnv) rolloverService() *RolloverService {
	log := logger.New("test", "test")
	return NewRolloverService(env.employees, env.ledgerSvc, env.ledger, env.vacation, env.publisher, log, 30, 10)
}

func (env *testEnv) setOverrides(employeeID string, hoursByWeekday map[int]float64) {
	var overrides []*repository.ScheduleOverride
	for weekday, hours := range hoursByWeekday {
		overrides = append(overrides, &repository.ScheduleOverride{
			EmployeeID: employeeID,
			Weekday:    weekday,
			Hours:      decimal.NewFromFloat(hours),
		})
	}
	env.employees.overrides[employeeID] = overrides
}

func (env *testEnv) addEntry(employeeID string, day time.Time, hours float64) *repository.TimeEntry {
	start := time.Date(day.Year(), day.Month(), day.Day(), 8, 0, 0, 0, time.UTC)
	entry := &repository.TimeEntry{
		ID:           newTestID(len(env.entries.entries)),
		EmployeeID:   employeeID,
		EntryDate:    repository.Midnight(day),
		StartTime:    start,
		EndTime:      start.Add(time.Duration(hours*60) * time.Minute).Add(30 * time.Minute),
		BreakMinutes: 30,
	}
	env.entries.entries = append(env.entries.entries, entry)
	return entry
}

func (env *testEnv) addAbsence(employeeID, absenceType, status string, from, to time.Time) *repository.Absence {
	absence := &repository.Absence{
		ID:          newTestID(1000 + len(env.absences.absences)),
		EmployeeID:  employeeID,
		AbsenceType: absenceType,
		StartDate:   repository.Midnight(from),
		EndDate:     repository.Midnight(to),
		Status:      status,
	}
	env.absences.absences = append(env.absences.absences, absence)
	return absence
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func newTestID(n int) string {
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
}
