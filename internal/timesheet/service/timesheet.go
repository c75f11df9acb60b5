package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
	"github.com/zeitwerk/zeitwerk-backend/pkg/messaging"
)

// TimesheetService orchestrates time entry and absence changes. Every change
// reconciles the affected ledger days and refreshes the period snapshots, so
// reads never recompute independently.
type TimesheetService struct {
	entries    *repository.TimeEntryRepository
	absences   *repository.AbsenceRepository
	vacation   VacationStore
	resolver   *ScheduleResolver
	ledger     *LedgerService
	reconciler *Reconciler
	snapshots  SnapshotStore
	publisher  EventPublisher
	log        *logger.Logger
}

// NewTimesheetService creates a new timesheet service
func NewTimesheetService(entries *repository.TimeEntryRepository, absences *repository.AbsenceRepository, vacation VacationStore, resolver *ScheduleResolver, ledger *LedgerService, reconciler *Reconciler, snapshots SnapshotStore, publisher EventPublisher, log *logger.Logger) *TimesheetService {
	return &TimesheetService{
		entries:    entries,
		absences:   absences,
		vacation:   vacation,
		resolver:   resolver,
		ledger:     ledger,
		reconciler: reconciler,
		snapshots:  snapshots,
		publisher:  publisher,
		log:        log,
	}
}

// CreateEntry records a work span and reconciles the day
func (s *TimesheetService) CreateEntry(ctx context.Context, entry *repository.TimeEntry) error {
	if !entry.EndTime.After(entry.StartTime) {
		return errors.BadRequest("end_time must be after start_time")
	}
	if entry.BreakMinutes < 0 {
		return errors.BadRequest("break_minutes must not be negative")
	}

	schedule, err := s.resolver.Resolve(ctx, entry.EmployeeID, entry.EntryDate, entry.EntryDate)
	if err != nil {
		return err
	}
	if !schedule.Employee().EmployedOn(entry.EntryDate) {
		return errors.BadRequest("entry date is outside the employment window")
	}

	if err := s.checkAbsenceConflict(ctx, entry.EmployeeID, entry.EntryDate); err != nil {
		return err
	}

	if err := s.entries.Create(ctx, entry); err != nil {
		return err
	}

	if err := s.onTimeEntryChanged(ctx, entry.EmployeeID, entry.EntryDate); err != nil {
		return err
	}

	s.publishEntryEvent(ctx, messaging.EventTimeEntryCreated, entry)
	return nil
}

// UpdateEntry rewrites a work span and reconciles both affected days
func (s *TimesheetService) UpdateEntry(ctx context.Context, entry *repository.TimeEntry) error {
	if !entry.EndTime.After(entry.StartTime) {
		return errors.BadRequest("end_time must be after start_time")
	}

	existing, err := s.entries.GetByID(ctx, entry.ID)
	if err != nil {
		return err
	}

	if err := s.entries.Update(ctx, entry); err != nil {
		return err
	}

	oldDay := repository.Midnight(existing.EntryDate)
	newDay := repository.Midnight(entry.EntryDate)
	if err := s.onTimeEntryChanged(ctx, entry.EmployeeID, oldDay); err != nil {
		return err
	}
	if !newDay.Equal(oldDay) {
		if err := s.onTimeEntryChanged(ctx, entry.EmployeeID, newDay); err != nil {
			return err
		}
	}

	s.publishEntryEvent(ctx, messaging.EventTimeEntryUpdated, entry)
	return nil
}

// DeleteEntry removes a work span and reconciles the day
func (s *TimesheetService) DeleteEntry(ctx context.Context, id string) error {
	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.entries.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.onTimeEntryChanged(ctx, entry.EmployeeID, entry.EntryDate); err != nil {
		return err
	}

	s.publishEntryEvent(ctx, messaging.EventTimeEntryDeleted, entry)
	return nil
}

// GetEntry returns one time entry
func (s *TimesheetService) GetEntry(ctx context.Context, id string) (*repository.TimeEntry, error) {
	return s.entries.GetByID(ctx, id)
}

// ListEntries returns the time entries of an employee in [from, to]
func (s *TimesheetService) ListEntries(ctx context.Context, employeeID string, from, to time.Time) ([]*repository.TimeEntry, error) {
	return s.entries.ListByEmployeeBetween(ctx, employeeID, from, to)
}

// checkAbsenceConflict rejects a time entry on a day covered by an approved
// absence. Conflicts are prevented here, never masked by the aggregator.
func (s *TimesheetService) checkAbsenceConflict(ctx context.Context, employeeID string, day time.Time) error {
	covering, err := s.absences.ListApprovedCovering(ctx, employeeID, day, day)
	if err != nil {
		return err
	}
	for _, a := range covering {
		if a.Covers(day) {
			return errors.Conflict("an approved absence covers this day")
		}
	}
	return nil
}

// onTimeEntryChanged refreshes the snapshots of the changed day. The refresh
// sweeps the ledger rows of every touched period itself.
func (s *TimesheetService) onTimeEntryChanged(ctx context.Context, employeeID string, day time.Time) error {
	return s.reconciler.RefreshPeriodBalances(ctx, employeeID, day, day)
}

// CreateAbsence files an absence request. Pending requests never touch the
// ledger; only approval does.
func (s *TimesheetService) CreateAbsence(ctx context.Context, absence *repository.Absence) error {
	if absence.EndDate.Before(absence.StartDate) {
		return errors.BadRequest("end_date must not be before start_date")
	}

	overlapping, err := s.absences.CountOverlapping(ctx, absence.EmployeeID, absence.StartDate, absence.EndDate, "")
	if err != nil {
		return err
	}
	if overlapping > 0 {
		return errors.Conflict("an overlapping absence request already exists")
	}

	if absence.Status == "" {
		absence.Status = repository.AbsenceStatusPending
	}
	if err := s.absences.Create(ctx, absence); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, messaging.EventAbsenceCreated, messaging.AbsenceCreatedEvent{
		AbsenceID:   absence.ID,
		EmployeeID:  absence.EmployeeID,
		AbsenceType: absence.AbsenceType,
		StartDate:   repository.Midnight(absence.StartDate),
		EndDate:     repository.Midnight(absence.EndDate),
		Status:      absence.Status,
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish absence event")
	}

	return nil
}

// GetAbsence returns one absence request
func (s *TimesheetService) GetAbsence(ctx context.Context, id string) (*repository.Absence, error) {
	return s.absences.GetByID(ctx, id)
}

// ApproveAbsence approves a pending request and reconciles the covered days
func (s *TimesheetService) ApproveAbsence(ctx context.Context, id, reviewerID string) (*repository.Absence, error) {
	existing, err := s.absences.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != repository.AbsenceStatusPending {
		return nil, errors.Conflict("only pending absences can be approved")
	}

	absence, err := s.absences.UpdateStatus(ctx, id, repository.AbsenceStatusApproved, reviewerID, nil)
	if err != nil {
		return nil, err
	}

	if err := s.onAbsenceStatusChanged(ctx, absence); err != nil {
		return nil, err
	}

	if absence.AbsenceType == repository.AbsenceTypeVacation {
		if err := s.bookVacationDays(ctx, absence); err != nil {
			return nil, err
		}
	}

	if err := s.publisher.Publish(ctx, messaging.EventAbsenceApproved, messaging.AbsenceApprovedEvent{
		AbsenceID:  absence.ID,
		EmployeeID: absence.EmployeeID,
		ReviewerID: reviewerID,
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish absence event")
	}

	return absence, nil
}

// RejectAbsence rejects a pending request. The ledger is untouched.
func (s *TimesheetService) RejectAbsence(ctx context.Context, id, reviewerID, reason string) (*repository.Absence, error) {
	existing, err := s.absences.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != repository.AbsenceStatusPending {
		return nil, errors.Conflict("only pending absences can be rejected")
	}

	absence, err := s.absences.UpdateStatus(ctx, id, repository.AbsenceStatusRejected, reviewerID, &reason)
	if err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, messaging.EventAbsenceRejected, messaging.AbsenceRejectedEvent{
		AbsenceID:  absence.ID,
		EmployeeID: absence.EmployeeID,
		ReviewerID: reviewerID,
		Reason:     reason,
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish absence event")
	}

	return absence, nil
}

// DeleteAbsence withdraws a request. An approved absence's ledger effect is
// removed by re-deriving the covered days without it.
func (s *TimesheetService) DeleteAbsence(ctx context.Context, id string) error {
	absence, err := s.absences.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.absences.Delete(ctx, id); err != nil {
		return err
	}

	if absence.Status == repository.AbsenceStatusApproved {
		if err := s.onAbsenceStatusChanged(ctx, absence); err != nil {
			return err
		}
		if absence.AbsenceType == repository.AbsenceTypeVacation {
			if err := s.unbookVacationDays(ctx, absence); err != nil {
				return err
			}
		}
	}

	if err := s.publisher.Publish(ctx, messaging.EventAbsenceDeleted, messaging.AbsenceDeletedEvent{
		AbsenceID:  absence.ID,
		EmployeeID: absence.EmployeeID,
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish absence event")
	}

	return nil
}

// onAbsenceStatusChanged re-derives every covered day and refreshes snapshots
func (s *TimesheetService) onAbsenceStatusChanged(ctx context.Context, absence *repository.Absence) error {
	return s.reconciler.RefreshPeriodBalances(ctx, absence.EmployeeID, absence.StartDate, absence.EndDate)
}

// bookVacationDays charges the vacation account with the working days the
// absence covers. Days with zero target cost nothing.
func (s *TimesheetService) bookVacationDays(ctx context.Context, absence *repository.Absence) error {
	days, err := s.vacationDays(ctx, absence)
	if err != nil {
		return err
	}
	if days.IsZero() {
		return nil
	}
	return s.vacation.AddTaken(ctx, absence.EmployeeID, absence.StartDate.Year(), days)
}

func (s *TimesheetService) unbookVacationDays(ctx context.Context, absence *repository.Absence) error {
	days, err := s.vacationDays(ctx, absence)
	if err != nil {
		return err
	}
	if days.IsZero() {
		return nil
	}
	return s.vacation.AddTaken(ctx, absence.EmployeeID, absence.StartDate.Year(), days.Neg())
}

func (s *TimesheetService) vacationDays(ctx context.Context, absence *repository.Absence) (decimal.Decimal, error) {
	if absence.DaysRequired != nil {
		return *absence.DaysRequired, nil
	}

	schedule, err := s.resolver.Resolve(ctx, absence.EmployeeID, absence.StartDate, absence.EndDate)
	if err != nil {
		return decimal.Zero, err
	}

	days := decimal.Zero
	for _, day := range schedule.EmploymentDays(absence.StartDate, absence.EndDate) {
		if schedule.DailyTarget(day).IsPositive() {
			days = days.Add(decimal.NewFromInt(1))
		}
	}
	return days, nil
}

// EnsureBalances refreshes every snapshot from the hire date through the
// given date inclusive.
func (s *TimesheetService) EnsureBalances(ctx context.Context, employeeID string, through time.Time) error {
	emp, err := s.resolver.employees.GetByID(ctx, employeeID)
	if err != nil {
		return err
	}
	return s.reconciler.RefreshPeriodBalances(ctx, employeeID, repository.Midnight(emp.HireDate), through)
}

// ForceRecalculate is the repair action: it drops the cached snapshots,
// rebuilds the ledger from source data and rebuilds the snapshots.
func (s *TimesheetService) ForceRecalculate(ctx context.Context, employeeID, triggeredBy string) (decimal.Decimal, error) {
	if err := s.snapshots.DeleteForEmployee(ctx, employeeID); err != nil {
		return decimal.Zero, err
	}

	balance, err := s.ledger.RecomputeBalances(ctx, employeeID, triggeredBy)
	if err != nil {
		return decimal.Zero, err
	}

	schedule, err := s.resolver.Resolve(ctx, employeeID, time.Now().UTC(), time.Now().UTC())
	if err != nil {
		return decimal.Zero, err
	}
	now := time.Now().UTC()
	yearEnd := time.Date(now.Year(), 12, 31, 0, 0, 0, 0, time.UTC)
	hire := schedule.Employee().HireDate

	if err := s.reconciler.RefreshPeriodBalances(ctx, employeeID, hire, yearEnd); err != nil {
		return decimal.Zero, err
	}

	return balance, nil
}

// RecalculateAll runs ForceRecalculate for every active employee. Failures
// are collected per employee and never abort the batch.
func (s *TimesheetService) RecalculateAll(ctx context.Context, triggeredBy string) (*errors.BatchReport, error) {
	ids, err := s.resolver.employees.ListActiveIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &errors.BatchReport{}
	for _, employeeID := range ids {
		if _, err := s.ForceRecalculate(ctx, employeeID, triggeredBy); err != nil {
			s.log.WithEmployeeID(employeeID).WithError(err).Error().
				Msg("Recalculation failed for employee")
			report.AddFailure(employeeID, err)
			continue
		}
		report.AddSuccess(employeeID)
	}

	if report.HasFailures() {
		return report, errors.PartialBatch(report)
	}
	return report, nil
}

func (s *TimesheetService) publishEntryEvent(ctx context.Context, eventType string, entry *repository.TimeEntry) {
	if err := s.publisher.Publish(ctx, eventType, messaging.TimeEntryChangedEvent{
		TimeEntryID: entry.ID,
		EmployeeID:  entry.EmployeeID,
		EntryDate:   repository.Midnight(entry.EntryDate),
		NetHours:    entry.NetHours().String(),
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish time entry event")
	}
}
