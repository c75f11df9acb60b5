package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/pkg/database"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
)

// Employee represents an employee with a work contract
type Employee struct {
	ID              string          `db:"id" json:"id"`
	EmployeeNumber  string          `db:"employee_number" json:"employee_number"`
	FirstName       string          `db:"first_name" json:"first_name"`
	LastName        string          `db:"last_name" json:"last_name"`
	Email           string          `db:"email" json:"email"`
	WeeklyHours     decimal.Decimal `db:"weekly_hours" json:"weekly_hours"`
	HolidayRegion   string          `db:"holiday_region" json:"holiday_region"`
	HireDate        time.Time       `db:"hire_date" json:"hire_date"`
	TerminationDate *time.Time      `db:"termination_date" json:"termination_date,omitempty"`
	Status          string          `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time      `db:"deleted_at" json:"-"`
	CreatedBy       *string         `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy       *string         `db:"updated_by" json:"updated_by,omitempty"`
}

// FullName returns the employee's full name
func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}

// EmployedOn reports whether the employee is within their employment window
// on the given calendar day.
func (e *Employee) EmployedOn(day time.Time) bool {
	d := Midnight(day)
	if d.Before(Midnight(e.HireDate)) {
		return false
	}
	if e.TerminationDate != nil && d.After(Midnight(*e.TerminationDate)) {
		return false
	}
	return true
}

// ScheduleOverride is an explicit per-weekday target for an employee.
// Presence of any override row switches the employee from the default
// weekly-hours/5 distribution to explicit weekday targets.
type ScheduleOverride struct {
	ID         string          `db:"id" json:"id"`
	EmployeeID string          `db:"employee_id" json:"employee_id"`
	Weekday    int             `db:"weekday" json:"weekday"` // 0=Sunday .. 6=Saturday
	Hours      decimal.Decimal `db:"hours" json:"hours"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Midnight truncates a timestamp to its calendar day in UTC.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EmployeeRepository handles employee persistence
type EmployeeRepository struct {
	db *database.DB
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *database.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// Create creates a new employee
func (r *EmployeeRepository) Create(ctx context.Context, emp *Employee) error {
	if emp.ID == "" {
		emp.ID = uuid.New().String()
	}

	query := `
		INSERT INTO employees (
			id, employee_number, first_name, last_name, email, weekly_hours,
			holiday_region, hire_date, termination_date, status, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		emp.ID, emp.EmployeeNumber, emp.FirstName, emp.LastName, emp.Email, emp.WeeklyHours,
		emp.HolidayRegion, emp.HireDate, emp.TerminationDate, emp.Status, emp.CreatedBy,
	).Scan(&emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets an employee by ID
func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*Employee, error) {
	var emp Employee

	query := `
		SELECT id, employee_number, first_name, last_name, email, weekly_hours,
		       holiday_region, hire_date, termination_date, status,
		       created_at, updated_at, deleted_at, created_by, updated_by
		FROM employees
		WHERE id = $1 AND deleted_at IS NULL
	`
	err := r.db.GetContext(ctx, &emp, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("employee")
		}
		return nil, err
	}

	return &emp, nil
}

// List returns all non-deleted employees
func (r *EmployeeRepository) List(ctx context.Context) ([]*Employee, error) {
	var employees []*Employee

	query := `
		SELECT id, employee_number, first_name, last_name, email, weekly_hours,
		       holiday_region, hire_date, termination_date, status,
		       created_at, updated_at, deleted_at, created_by, updated_by
		FROM employees
		WHERE deleted_at IS NULL
		ORDER BY last_name, first_name
	`
	if err := r.db.SelectContext(ctx, &employees, query); err != nil {
		return nil, err
	}

	return employees, nil
}

// ListActiveIDs returns the IDs of all active employees, for batch operations
func (r *EmployeeRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string

	query := `
		SELECT id FROM employees
		WHERE deleted_at IS NULL AND status = 'active'
		ORDER BY employee_number
	`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, err
	}

	return ids, nil
}

// Update updates an employee
func (r *EmployeeRepository) Update(ctx context.Context, emp *Employee) error {
	query := `
		UPDATE employees
		SET first_name = $2, last_name = $3, email = $4, weekly_hours = $5,
		    holiday_region = $6, hire_date = $7, termination_date = $8,
		    status = $9, updated_by = $10, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		emp.ID, emp.FirstName, emp.LastName, emp.Email, emp.WeeklyHours,
		emp.HolidayRegion, emp.HireDate, emp.TerminationDate, emp.Status, emp.UpdatedBy,
	).Scan(&emp.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("employee")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// Delete soft deletes an employee
func (r *EmployeeRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE employees
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NotFound("employee")
	}

	return nil
}

// GetScheduleOverrides returns the explicit weekday targets for an employee.
// An empty slice means the employee is on the default distribution.
func (r *EmployeeRepository) GetScheduleOverrides(ctx context.Context, employeeID string) ([]*ScheduleOverride, error) {
	var overrides []*ScheduleOverride

	query := `
		SELECT id, employee_id, weekday, hours, created_at, updated_at
		FROM work_schedules
		WHERE employee_id = $1
		ORDER BY weekday
	`
	if err := r.db.SelectContext(ctx, &overrides, query, employeeID); err != nil {
		return nil, err
	}

	return overrides, nil
}

// ReplaceScheduleOverrides replaces all weekday targets for an employee.
// Passing an empty slice returns the employee to the default distribution.
func (r *EmployeeRepository) ReplaceScheduleOverrides(ctx context.Context, employeeID string, overrides []*ScheduleOverride) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM work_schedules WHERE employee_id = $1`, employeeID); err != nil {
			return err
		}

		for _, ov := range overrides {
			if ov.ID == "" {
				ov.ID = uuid.New().String()
			}
			ov.EmployeeID = employeeID

			query := `
				INSERT INTO work_schedules (id, employee_id, weekday, hours)
				VALUES ($1, $2, $3, $4)
				RETURNING created_at, updated_at
			`
			err := tx.QueryRowxContext(ctx, query, ov.ID, ov.EmployeeID, ov.Weekday, ov.Hours).
				Scan(&ov.CreatedAt, &ov.UpdatedAt)
			if err != nil {
				if appErr := database.MapPQError(err); appErr != nil {
					return appErr
				}
				return err
			}
		}

		return nil
	})
}
