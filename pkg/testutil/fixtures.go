package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EmployeeFixture represents test employee data
type EmployeeFixture struct {
	ID              string
	EmployeeNumber  string
	FirstName       string
	LastName        string
	Email           string
	WeeklyHours     decimal.Decimal
	HireDate        time.Time
	TerminationDate *time.Time
	Status          string
	CreatedAt       time.Time
}

// TimeEntryFixture represents test time entry data
type TimeEntryFixture struct {
	ID            string
	EmployeeID    string
	EntryDate     time.Time
	StartTime     time.Time
	EndTime       time.Time
	BreakMinutes  int
	CreatedAt     time.Time
}

// AbsenceFixture represents test absence data
type AbsenceFixture struct {
	ID          string
	EmployeeID  string
	AbsenceType string
	StartDate   time.Time
	EndDate     time.Time
	Status      string
	CreatedAt   time.Time
}

// HolidayFixture represents test public holiday data
type HolidayFixture struct {
	ID          string
	HolidayDate time.Time
	Name        string
	Region      string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Employee creates an employee fixture with defaults
func (f *FixtureFactory) Employee(opts ...func(*EmployeeFixture)) EmployeeFixture {
	seq := f.nextSeq()

	emp := EmployeeFixture{
		ID:             uuid.New().String(),
		EmployeeNumber: fmt.Sprintf("EMP-%04d", seq),
		FirstName:      fmt.Sprintf("Employee%d", seq),
		LastName:       "Test",
		Email:          fmt.Sprintf("employee%d@test.zeitwerk.de", seq),
		WeeklyHours:    decimal.NewFromInt(40),
		HireDate:       time.Now().AddDate(-1, 0, 0),
		Status:         "active",
		CreatedAt:      time.Now(),
	}

	for _, opt := range opts {
		opt(&emp)
	}

	return emp
}

// WithEmployeeName sets the employee's first and last name
func WithEmployeeName(first, last string) func(*EmployeeFixture) {
	return func(e *EmployeeFixture) {
		e.FirstName = first
		e.LastName = last
	}
}

// WithWeeklyHours sets the employee's contractual weekly hours
func WithWeeklyHours(hours float64) func(*EmployeeFixture) {
	return func(e *EmployeeFixture) {
		e.WeeklyHours = decimal.NewFromFloat(hours)
	}
}

// WithHireDate sets the employee's hire date
func WithHireDate(hireDate time.Time) func(*EmployeeFixture) {
	return func(e *EmployeeFixture) {
		e.HireDate = hireDate
	}
}

// WithTerminationDate sets the employee's termination date
func WithTerminationDate(terminationDate time.Time) func(*EmployeeFixture) {
	return func(e *EmployeeFixture) {
		e.TerminationDate = &terminationDate
	}
}

// WithEmployeeStatus sets the employee's status
func WithEmployeeStatus(status string) func(*EmployeeFixture) {
	return func(e *EmployeeFixture) {
		e.Status = status
	}
}

// TimeEntry creates a time entry fixture with defaults (8h day, 30min break)
func (f *FixtureFactory) TimeEntry(employeeID string, day time.Time, opts ...func(*TimeEntryFixture)) TimeEntryFixture {
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	entry := TimeEntryFixture{
		ID:           uuid.New().String(),
		EmployeeID:   employeeID,
		EntryDate:    date,
		StartTime:    date.Add(8 * time.Hour),
		EndTime:      date.Add(16*time.Hour + 30*time.Minute),
		BreakMinutes: 30,
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&entry)
	}

	return entry
}

// WithTimes sets the entry start and end clock times (hours from midnight)
func WithTimes(startHour, endHour float64) func(*TimeEntryFixture) {
	return func(e *TimeEntryFixture) {
		e.StartTime = e.EntryDate.Add(time.Duration(startHour * float64(time.Hour)))
		e.EndTime = e.EntryDate.Add(time.Duration(endHour * float64(time.Hour)))
	}
}

// WithBreakMinutes sets the entry break duration
func WithBreakMinutes(minutes int) func(*TimeEntryFixture) {
	return func(e *TimeEntryFixture) {
		e.BreakMinutes = minutes
	}
}

// Absence creates an absence fixture with defaults (approved vacation)
func (f *FixtureFactory) Absence(employeeID string, start, end time.Time, opts ...func(*AbsenceFixture)) AbsenceFixture {
	absence := AbsenceFixture{
		ID:          uuid.New().String(),
		EmployeeID:  employeeID,
		AbsenceType: "vacation",
		StartDate:   start,
		EndDate:     end,
		Status:      "approved",
		CreatedAt:   time.Now(),
	}

	for _, opt := range opts {
		opt(&absence)
	}

	return absence
}

// WithAbsenceType sets the absence type
func WithAbsenceType(absenceType string) func(*AbsenceFixture) {
	return func(a *AbsenceFixture) {
		a.AbsenceType = absenceType
	}
}

// WithAbsenceStatus sets the absence status
func WithAbsenceStatus(status string) func(*AbsenceFixture) {
	return func(a *AbsenceFixture) {
		a.Status = status
	}
}

// Holiday creates a public holiday fixture
func (f *FixtureFactory) Holiday(date time.Time, name string) HolidayFixture {
	return HolidayFixture{
		ID:          uuid.New().String(),
		HolidayDate: time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
		Name:        name,
		Region:      "DE-BY",
	}
}

// DefaultTestEmployees returns a set of standard test employees
func DefaultTestEmployees(factory *FixtureFactory) []EmployeeFixture {
	return []EmployeeFixture{
		factory.Employee(WithEmployeeName("Max", "Mueller")),
		factory.Employee(WithEmployeeName("Anna", "Schmidt"), WithWeeklyHours(30)),
		factory.Employee(WithEmployeeName("Hans", "Weber"), WithWeeklyHours(20)),
		factory.Employee(WithEmployeeName("Lisa", "Fischer"), WithEmployeeStatus("terminated")),
	}
}
