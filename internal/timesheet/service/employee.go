package service

import (
	"context"

	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
	"github.com/zeitwerk/zeitwerk-backend/pkg/messaging"
)

// EmployeeService manages employee master data. Contract changes (weekly
// hours, schedule overrides, termination) trigger a full ledger rebuild, so
// the current schedule always applies to already-elapsed days.
type EmployeeService struct {
	employees *repository.EmployeeRepository
	ledger    *LedgerService
	publisher EventPublisher
	log       *logger.Logger
}

// NewEmployeeService creates a new employee service
func NewEmployeeService(employees *repository.EmployeeRepository, ledger *LedgerService, publisher EventPublisher, log *logger.Logger) *EmployeeService {
	return &EmployeeService{
		employees: employees,
		ledger:    ledger,
		publisher: publisher,
		log:       log,
	}
}

// Create registers a new employee
func (s *EmployeeService) Create(ctx context.Context, emp *repository.Employee) error {
	if emp.WeeklyHours.IsNegative() {
		return errors.BadRequest("weekly_hours must not be negative")
	}
	if emp.TerminationDate != nil && emp.TerminationDate.Before(emp.HireDate) {
		return errors.BadRequest("termination_date must not be before hire_date")
	}
	if emp.Status == "" {
		emp.Status = "active"
	}

	if err := s.employees.Create(ctx, emp); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, messaging.EventEmployeeCreated, messaging.EmployeeCreatedEvent{
		EmployeeID: emp.ID,
		Name:       emp.FullName(),
		HireDate:   repository.Midnight(emp.HireDate),
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish employee event")
	}

	return nil
}

// Get returns one employee
func (s *EmployeeService) Get(ctx context.Context, id string) (*repository.Employee, error) {
	return s.employees.GetByID(ctx, id)
}

// List returns all employees
func (s *EmployeeService) List(ctx context.Context) ([]*repository.Employee, error) {
	return s.employees.List(ctx)
}

// Update rewrites an employee's master data. A change to the contract
// rebuilds the ledger.
func (s *EmployeeService) Update(ctx context.Context, emp *repository.Employee, actorID string) error {
	existing, err := s.employees.GetByID(ctx, emp.ID)
	if err != nil {
		return err
	}
	if emp.TerminationDate != nil && emp.TerminationDate.Before(emp.HireDate) {
		return errors.BadRequest("termination_date must not be before hire_date")
	}

	if err := s.employees.Update(ctx, emp); err != nil {
		return err
	}

	if contractChanged(existing, emp) {
		if _, err := s.ledger.RecomputeBalances(ctx, emp.ID, actorID); err != nil {
			return err
		}
	}

	if err := s.publisher.Publish(ctx, messaging.EventEmployeeUpdated, messaging.EmployeeUpdatedEvent{
		EmployeeID: emp.ID,
		Fields:     changedFields(existing, emp),
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish employee event")
	}

	return nil
}

// Delete soft deletes an employee
func (s *EmployeeService) Delete(ctx context.Context, id string) error {
	if err := s.employees.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, messaging.EventEmployeeDeleted, messaging.EmployeeDeletedEvent{
		EmployeeID: id,
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish employee event")
	}

	return nil
}

// GetScheduleOverrides returns the explicit weekday targets of an employee
func (s *EmployeeService) GetScheduleOverrides(ctx context.Context, employeeID string) ([]*repository.ScheduleOverride, error) {
	return s.employees.GetScheduleOverrides(ctx, employeeID)
}

// ReplaceScheduleOverrides swaps the weekday targets and rebuilds the ledger
func (s *EmployeeService) ReplaceScheduleOverrides(ctx context.Context, employeeID string, overrides []*repository.ScheduleOverride, actorID string) error {
	for _, o := range overrides {
		if o.Weekday < 0 || o.Weekday > 6 {
			return errors.BadRequest("weekday must be between 0 and 6")
		}
		if o.Hours.IsNegative() {
			return errors.BadRequest("override hours must not be negative")
		}
	}

	if err := s.employees.ReplaceScheduleOverrides(ctx, employeeID, overrides); err != nil {
		return err
	}

	_, err := s.ledger.RecomputeBalances(ctx, employeeID, actorID)
	return err
}

func contractChanged(before, after *repository.Employee) bool {
	if !before.WeeklyHours.Equal(after.WeeklyHours) {
		return true
	}
	if !repository.Midnight(before.HireDate).Equal(repository.Midnight(after.HireDate)) {
		return true
	}
	if (before.TerminationDate == nil) != (after.TerminationDate == nil) {
		return true
	}
	if before.TerminationDate != nil && after.TerminationDate != nil &&
		!repository.Midnight(*before.TerminationDate).Equal(repository.Midnight(*after.TerminationDate)) {
		return true
	}
	return before.HolidayRegion != after.HolidayRegion
}

func changedFields(before, after *repository.Employee) map[string]any {
	fields := make(map[string]any)
	if before.FirstName != after.FirstName || before.LastName != after.LastName {
		fields["name"] = after.FullName()
	}
	if !before.WeeklyHours.Equal(after.WeeklyHours) {
		fields["weekly_hours"] = after.WeeklyHours.String()
	}
	if before.Status != after.Status {
		fields["status"] = after.Status
	}
	if before.HolidayRegion != after.HolidayRegion {
		fields["holiday_region"] = after.HolidayRegion
	}
	return fields
}
