package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/pkg/database"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
)

// TimeEntry represents a recorded work span on a calendar day.
// Multiple entries per employee and day are allowed (split shifts).
type TimeEntry struct {
	ID           string     `db:"id" json:"id"`
	EmployeeID   string     `db:"employee_id" json:"employee_id"`
	EntryDate    time.Time  `db:"entry_date" json:"entry_date"`
	StartTime    time.Time  `db:"start_time" json:"start_time"`
	EndTime      time.Time  `db:"end_time" json:"end_time"`
	BreakMinutes int        `db:"break_minutes" json:"break_minutes"`
	Location     *string    `db:"location" json:"location,omitempty"`
	Note         *string    `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
	CreatedBy    *string    `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy    *string    `db:"updated_by" json:"updated_by,omitempty"`
}

// NetHours returns the worked hours of the entry: the span minus breaks,
// clamped at zero, rounded to two decimal places.
func (e *TimeEntry) NetHours() decimal.Decimal {
	minutes := int(e.EndTime.Sub(e.StartTime).Minutes()) - e.BreakMinutes
	if minutes < 0 {
		minutes = 0
	}
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(2)
}

// TimeEntryRepository handles time entry persistence
type TimeEntryRepository struct {
	db *database.DB
}

// NewTimeEntryRepository creates a new time entry repository
func NewTimeEntryRepository(db *database.DB) *TimeEntryRepository {
	return &TimeEntryRepository{db: db}
}

// Create creates a new time entry
func (r *TimeEntryRepository) Create(ctx context.Context, entry *TimeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO time_entries (
			id, employee_id, entry_date, start_time, end_time,
			break_minutes, location, note, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.EmployeeID, entry.EntryDate, entry.StartTime, entry.EndTime,
		entry.BreakMinutes, entry.Location, entry.Note, entry.CreatedBy,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a time entry by ID
func (r *TimeEntryRepository) GetByID(ctx context.Context, id string) (*TimeEntry, error) {
	var entry TimeEntry

	query := `
		SELECT id, employee_id, entry_date, start_time, end_time, break_minutes,
		       location, note, created_at, updated_at, deleted_at, created_by, updated_by
		FROM time_entries
		WHERE id = $1 AND deleted_at IS NULL
	`
	err := r.db.GetContext(ctx, &entry, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("time entry")
		}
		return nil, err
	}

	return &entry, nil
}

// Update updates a time entry
func (r *TimeEntryRepository) Update(ctx context.Context, entry *TimeEntry) error {
	query := `
		UPDATE time_entries
		SET entry_date = $2, start_time = $3, end_time = $4, break_minutes = $5,
		    location = $6, note = $7, updated_by = $8, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.EntryDate, entry.StartTime, entry.EndTime, entry.BreakMinutes,
		entry.Location, entry.Note, entry.UpdatedBy,
	).Scan(&entry.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("time entry")
		}
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// Delete soft deletes a time entry
func (r *TimeEntryRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE time_entries
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
		return errors.NotFound("time entry")
	}

	return nil
}

// ListByEmployeeAndDate returns all entries of an employee on a calendar day
func (r *TimeEntryRepository) ListByEmployeeAndDate(ctx context.Context, employeeID string, day time.Time) ([]*TimeEntry, error) {
	var entries []*TimeEntry

	query := `
		SELECT id, employee_id, entry_date, start_time, end_time, break_minutes,
		       location, note, created_at, updated_at, deleted_at, created_by, updated_by
		FROM time_entries
		WHERE employee_id = $1 AND entry_date = $2 AND deleted_at IS NULL
		ORDER BY start_time
	`
	if err := r.db.SelectContext(ctx, &entries, query, employeeID, Midnight(day)); err != nil {
		return nil, err
	}

	return entries, nil
}

// ListByEmployeeBetween returns all entries of an employee in [from, to]
func (r *TimeEntryRepository) ListByEmployeeBetween(ctx context.Context, employeeID string, from, to time.Time) ([]*TimeEntry, error) {
	var entries []*TimeEntry

	query := `
		SELECT id, employee_id, entry_date, start_time, end_time, break_minutes,
		       location, note, created_at, updated_at, deleted_at, created_by, updated_by
		FROM time_entries
		WHERE employee_id = $1 AND entry_date BETWEEN $2 AND $3 AND deleted_at IS NULL
		ORDER BY entry_date, start_time
	`
	if err := r.db.SelectContext(ctx, &entries, query, employeeID, Midnight(from), Midnight(to)); err != nil {
		return nil, err
	}

	return entries, nil
}
