package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
	"github.com/zeitwerk/zeitwerk-backend/pkg/messaging"
)

// LedgerService owns all mutations of the overtime ledger. Every write path
// goes through the per-employee lock, swaps the affected rows atomically and
// replays the running balances.
//
// Ledger rows carry overtime deltas, so the sum over any period equals actual
// minus target for that period. Per employment day:
//   - each time entry adds one earned row with its net hours
//   - a scheduled day adds one earned debit of minus the daily target
//   - an approved absence adds one credit row of plus the daily target
//
// Correction and carryover rows are never derived here; they enter through
// CorrectionService and RolloverService and survive rebuilds.
type LedgerService struct {
	locks     *employeeLocks
	resolver  *ScheduleResolver
	entries   EntryStore
	absences  AbsenceStore
	ledger    LedgerStore
	publisher EventPublisher
	log       *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(resolver *ScheduleResolver, entries EntryStore, absences AbsenceStore, ledger LedgerStore, publisher EventPublisher, log *logger.Logger) *LedgerService {
	return &LedgerService{
		locks:     newEmployeeLocks(),
		resolver:  resolver,
		entries:   entries,
		absences:  absences,
		ledger:    ledger,
		publisher: publisher,
		log:       log,
	}
}

// deriveDayRows builds the derived ledger rows of one calendar day
func deriveDayRows(schedule *DaySchedule, day time.Time, entries []*repository.TimeEntry, absences []*repository.Absence) []*repository.Transaction {
	emp := schedule.Employee()
	if !emp.EmployedOn(day) {
		return nil
	}

	date := repository.Midnight(day)
	var rows []*repository.Transaction

	for _, entry := range entries {
		net := entry.NetHours()
		if net.IsZero() {
			continue
		}
		rows = append(rows, &repository.Transaction{
			EmployeeID:      emp.ID,
			TransactionDate: date,
			TransactionType: repository.TxTypeEarned,
			Hours:           net,
			ReferenceType:   repository.RefTypeTimeEntry,
			ReferenceID:     entry.ID,
		})
	}

	target := schedule.DailyTarget(day)
	if target.IsZero() {
		return rows
	}

	// Scheduled-day debit: the target is owed regardless of attendance
	rows = append(rows, &repository.Transaction{
		EmployeeID:      emp.ID,
		TransactionDate: date,
		TransactionType: repository.TxTypeEarned,
		Hours:           target.Neg(),
		ReferenceType:   repository.RefTypeWorkday,
		ReferenceID:     date.Format("2006-01-02"),
	})

	// At most one absence covers a day; overlaps are rejected on creation
	for _, absence := range absences {
		if !absence.Covers(day) {
			continue
		}
		rows = append(rows, &repository.Transaction{
			EmployeeID:      emp.ID,
			TransactionDate: date,
			TransactionType: absence.CreditType(),
			Hours:           target,
			ReferenceType:   repository.RefTypeAbsence,
			ReferenceID:     absence.ID,
		})
		break
	}

	return rows
}

// ReconcileDay rebuilds the derived rows of one employee day from the current
// entries, absences and schedule.
func (s *LedgerService) ReconcileDay(ctx context.Context, employeeID string, day time.Time) error {
	return s.ReconcileRange(ctx, employeeID, day, day)
}

// ReconcileRange rebuilds every employment day in [from, to] under one lock.
// The whole range is swapped as one atomic unit, so approving or withdrawing
// a multi-day absence is never left half applied.
func (s *LedgerService) ReconcileRange(ctx context.Context, employeeID string, from, to time.Time) error {
	unlock := s.locks.Lock(employeeID)
	defer unlock()

	schedule, err := s.resolver.Resolve(ctx, employeeID, from, to)
	if err != nil {
		return err
	}

	absences, err := s.absences.ListApprovedCovering(ctx, employeeID, from, to)
	if err != nil {
		return err
	}

	entries, err := s.entries.ListByEmployeeBetween(ctx, employeeID, from, to)
	if err != nil {
		return err
	}

	entriesByDay := make(map[string][]*repository.TimeEntry)
	for _, e := range entries {
		key := repository.Midnight(e.EntryDate).Format("2006-01-02")
		entriesByDay[key] = append(entriesByDay[key], e)
	}

	var rows []*repository.Transaction
	for _, day := range schedule.EmploymentDays(from, to) {
		dayEntries := entriesByDay[day.Format("2006-01-02")]
		rows = append(rows, deriveDayRows(schedule, day, dayEntries, absences)...)
	}

	return s.ledger.ReplaceRange(ctx, employeeID, from, to, rows)
}

// RecomputeBalances drops all derived rows of an employee and rebuilds the
// ledger from entries, absences and the current schedule. Corrections and
// carryover are preserved. The rebuild always applies today's schedule to
// past days.
func (s *LedgerService) RecomputeBalances(ctx context.Context, employeeID, triggeredBy string) (decimal.Decimal, error) {
	unlock := s.locks.Lock(employeeID)
	defer unlock()

	schedule, from, to, err := s.recomputeWindow(ctx, employeeID)
	if err != nil {
		return decimal.Zero, err
	}

	entries, err := s.entries.ListByEmployeeBetween(ctx, employeeID, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	absences, err := s.absences.ListApprovedCovering(ctx, employeeID, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	entriesByDay := make(map[string][]*repository.TimeEntry)
	for _, e := range entries {
		key := repository.Midnight(e.EntryDate).Format("2006-01-02")
		entriesByDay[key] = append(entriesByDay[key], e)
	}

	var derived []*repository.Transaction
	for _, day := range schedule.EmploymentDays(from, to) {
		dayEntries := entriesByDay[day.Format("2006-01-02")]
		derived = append(derived, deriveDayRows(schedule, day, dayEntries, absences)...)
	}

	balance, count, err := s.ledger.RebuildDerived(ctx, employeeID, derived)
	if err != nil {
		return decimal.Zero, err
	}

	s.log.WithEmployeeID(employeeID).Info().
		Str("balance", balance.String()).
		Int("transactions", count).
		Str("triggered_by", triggeredBy).
		Msg("Ledger rebuilt")

	if err := s.publisher.Publish(ctx, messaging.EventBalanceRecalculated, messaging.BalanceRecalculatedEvent{
		EmployeeID:     employeeID,
		CurrentBalance: balance.String(),
		Transactions:   count,
		TriggeredBy:    triggeredBy,
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish balance recalculated event")
	}

	return balance, nil
}

// recomputeWindow spans hire date through the end of the current year, so
// future approved absences within the year derive their rows too. Termination
// clips the window via EmploymentDays.
func (s *LedgerService) recomputeWindow(ctx context.Context, employeeID string) (*DaySchedule, time.Time, time.Time, error) {
	now := time.Now().UTC()
	yearEnd := time.Date(now.Year(), 12, 31, 0, 0, 0, 0, time.UTC)

	emp, err := s.resolver.employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	from := repository.Midnight(emp.HireDate)
	schedule, err := s.resolver.ResolveForEmployee(ctx, emp, from, yearEnd)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	return schedule, from, yearEnd, nil
}

// Append inserts rows and replays the chain under the employee lock. Used by
// the correction and rollover services.
func (s *LedgerService) Append(ctx context.Context, employeeID string, rows []*repository.Transaction) error {
	unlock := s.locks.Lock(employeeID)
	defer unlock()

	return s.ledger.AppendRows(ctx, employeeID, rows)
}

// Remove deletes all rows of a reference and replays the chain
func (s *LedgerService) Remove(ctx context.Context, employeeID, refType, refID string) error {
	unlock := s.locks.Lock(employeeID)
	defer unlock()

	return s.ledger.RemoveByReference(ctx, employeeID, refType, refID)
}

// CurrentBalance returns the employee's overall overtime balance
func (s *LedgerService) CurrentBalance(ctx context.Context, employeeID string) (decimal.Decimal, error) {
	return s.ledger.CurrentBalance(ctx, employeeID)
}

// BalanceAsOf returns the cumulative balance up to and including a date
func (s *LedgerService) BalanceAsOf(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, error) {
	return s.ledger.BalanceAsOf(ctx, employeeID, asOf)
}

// History returns a filtered page of the transaction history, newest first
func (s *LedgerService) History(ctx context.Context, employeeID string, filter repository.HistoryFilter, limit int, cursor string) (*repository.HistoryPage, error) {
	return s.ledger.History(ctx, employeeID, filter, limit, cursor)
}
