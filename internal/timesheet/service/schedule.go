package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
)

var five = decimal.NewFromInt(5)

// ScheduleResolver resolves the scheduled hours for any employee and day.
// Precedence: outside employment window and public holidays resolve to zero,
// then explicit weekday overrides, then the default weekly distribution.
type ScheduleResolver struct {
	employees EmployeeStore
	holidays  HolidayStore
}

// NewScheduleResolver creates a new schedule resolver
func NewScheduleResolver(employees EmployeeStore, holidays HolidayStore) *ScheduleResolver {
	return &ScheduleResolver{
		employees: employees,
		holidays:  holidays,
	}
}

// DaySchedule holds the resolved targets for a date range, loaded once so day
// lookups are O(1).
type DaySchedule struct {
	employee  *repository.Employee
	overrides map[int]decimal.Decimal // weekday -> hours; nil when no overrides
	holidays  map[string]bool
}

// Resolve loads everything needed to answer daily targets in [from, to]
func (s *ScheduleResolver) Resolve(ctx context.Context, employeeID string, from, to time.Time) (*DaySchedule, error) {
	emp, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	return s.ResolveForEmployee(ctx, emp, from, to)
}

// ResolveForEmployee is Resolve with an already-loaded employee
func (s *ScheduleResolver) ResolveForEmployee(ctx context.Context, emp *repository.Employee, from, to time.Time) (*DaySchedule, error) {
	rows, err := s.employees.GetScheduleOverrides(ctx, emp.ID)
	if err != nil {
		return nil, err
	}

	var overrides map[int]decimal.Decimal
	if len(rows) > 0 {
		overrides = make(map[int]decimal.Decimal, len(rows))
		for _, row := range rows {
			overrides[row.Weekday] = row.Hours
		}
	}

	holidaySet, err := s.holidays.HolidaySet(ctx, emp.HolidayRegion, from, to)
	if err != nil {
		return nil, err
	}

	return &DaySchedule{
		employee:  emp,
		overrides: overrides,
		holidays:  holidaySet,
	}, nil
}

// DailyTarget returns the scheduled hours for one calendar day
func (d *DaySchedule) DailyTarget(day time.Time) decimal.Decimal {
	if !d.employee.EmployedOn(day) {
		return decimal.Zero
	}
	if d.holidays[repository.Midnight(day).Format("2006-01-02")] {
		return decimal.Zero
	}

	weekday := int(day.Weekday())

	// Any override row switches the employee to explicit weekday targets;
	// weekdays without a row are zero-hours days.
	if d.overrides != nil {
		if hours, ok := d.overrides[weekday]; ok {
			return hours
		}
		return decimal.Zero
	}

	// Default distribution: weekly hours spread over Monday through Friday
	if weekday == int(time.Saturday) || weekday == int(time.Sunday) {
		return decimal.Zero
	}
	return d.employee.WeeklyHours.Div(five).Round(2)
}

// Employee returns the employee the schedule was resolved for
func (d *DaySchedule) Employee() *repository.Employee {
	return d.employee
}

// EmploymentDays returns the calendar days in [from, to] clipped to the
// employment window, in ascending order.
func (d *DaySchedule) EmploymentDays(from, to time.Time) []time.Time {
	start := repository.Midnight(from)
	end := repository.Midnight(to)

	hire := repository.Midnight(d.employee.HireDate)
	if start.Before(hire) {
		start = hire
	}
	if d.employee.TerminationDate != nil {
		term := repository.Midnight(*d.employee.TerminationDate)
		if end.After(term) {
			end = term
		}
	}

	var days []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}
