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

// Absence statuses
const (
	AbsenceStatusPending  = "pending"
	AbsenceStatusApproved = "approved"
	AbsenceStatusRejected = "rejected"
)

// Absence types
const (
	AbsenceTypeVacation     = "vacation"
	AbsenceTypeSick         = "sick"
	AbsenceTypeUnpaid       = "unpaid"
	AbsenceTypeOvertimeComp = "overtime_comp"
	AbsenceTypeSpecial      = "special"
)

// Absence represents an absence request spanning one or more calendar days
type Absence struct {
	ID              string           `db:"id" json:"id"`
	EmployeeID      string           `db:"employee_id" json:"employee_id"`
	AbsenceType     string           `db:"absence_type" json:"absence_type"`
	StartDate       time.Time        `db:"start_date" json:"start_date"`
	EndDate         time.Time        `db:"end_date" json:"end_date"`
	DaysRequired    *decimal.Decimal `db:"days_required" json:"days_required,omitempty"`
	Status          string           `db:"status" json:"status"`
	Reason          *string          `db:"reason" json:"reason,omitempty"`
	ReviewedBy      *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RequestedAt     time.Time        `db:"requested_at" json:"requested_at"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time       `db:"deleted_at" json:"-"`
	CreatedBy       *string          `db:"created_by" json:"created_by,omitempty"`
}

// IsPaid reports whether an approved absence of this type credits the daily
// target back to the employee.
func (a *Absence) IsPaid() bool {
	return a.AbsenceType != AbsenceTypeUnpaid
}

// Covers reports whether the absence spans the given calendar day.
func (a *Absence) Covers(day time.Time) bool {
	d := Midnight(day)
	return !d.Before(Midnight(a.StartDate)) && !d.After(Midnight(a.EndDate))
}

// CreditType returns the ledger transaction type for an approved absence.
func (a *Absence) CreditType() string {
	switch a.AbsenceType {
	case AbsenceTypeVacation:
		return "vacation_credit"
	case AbsenceTypeSick:
		return "sick_credit"
	case AbsenceTypeOvertimeComp:
		return "overtime_comp_credit"
	case AbsenceTypeSpecial:
		return "special_credit"
	case AbsenceTypeUnpaid:
		return "unpaid_adjustment"
	default:
		return ""
	}
}

// AbsenceRepository handles absence persistence
type AbsenceRepository struct {
	db *database.DB
}

// NewAbsenceRepository creates a new absence repository
func NewAbsenceRepository(db *database.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

// Create creates a new absence request
func (r *AbsenceRepository) Create(ctx context.Context, absence *Absence) error {
	if absence.ID == "" {
		absence.ID = uuid.New().String()
	}
	if absence.Status == "" {
		absence.Status = AbsenceStatusPending
	}

	query := `
		INSERT INTO absences (
			id, employee_id, absence_type, start_date, end_date, days_required,
			status, reason, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING requested_at, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		absence.ID, absence.EmployeeID, absence.AbsenceType, absence.StartDate, absence.EndDate,
		absence.DaysRequired, absence.Status, absence.Reason, absence.CreatedBy,
	).Scan(&absence.RequestedAt, &absence.CreatedAt, &absence.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets an absence by ID
func (r *AbsenceRepository) GetByID(ctx context.Context, id string) (*Absence, error) {
	var absence Absence

	query := `
		SELECT id, employee_id, absence_type, start_date, end_date, days_required,
		       status, reason, reviewed_by, reviewed_at, rejection_reason, requested_at,
		       created_at, updated_at, deleted_at, created_by
		FROM absences
		WHERE id = $1 AND deleted_at IS NULL
	`
	err := r.db.GetContext(ctx, &absence, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("absence")
		}
		return nil, err
	}

	return &absence, nil
}

// UpdateStatus transitions an absence's review status
func (r *AbsenceRepository) UpdateStatus(ctx context.Context, id, status, reviewerID string, rejectionReason *string) (*Absence, error) {
	query := `
		UPDATE absences
		SET status = $2, reviewed_by = $3, reviewed_at = NOW(),
		    rejection_reason = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING id
	`
	var updatedID string
	err := r.db.QueryRowxContext(ctx, query, id, status, reviewerID, rejectionReason).Scan(&updatedID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("absence")
		}
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// Delete soft deletes an absence
func (r *AbsenceRepository) Delete(ctx context.Context, id string) error {
	query := `
		UPDATE absences
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
		return errors.NotFound("absence")
	}

	return nil
}

// ListApprovedCovering returns approved absences of an employee overlapping [from, to]
func (r *AbsenceRepository) ListApprovedCovering(ctx context.Context, employeeID string, from, to time.Time) ([]*Absence, error) {
	var absences []*Absence

	query := `
		SELECT id, employee_id, absence_type, start_date, end_date, days_required,
		       status, reason, reviewed_by, reviewed_at, rejection_reason, requested_at,
		       created_at, updated_at, deleted_at, created_by
		FROM absences
		WHERE employee_id = $1 AND status = 'approved' AND deleted_at IS NULL
		  AND start_date <= $3 AND end_date >= $2
		ORDER BY start_date
	`
	if err := r.db.SelectContext(ctx, &absences, query, employeeID, Midnight(from), Midnight(to)); err != nil {
		return nil, err
	}

	return absences, nil
}

// CountOverlapping counts non-rejected absences of an employee overlapping
// [from, to], excluding the given absence ID. Used as the booking precondition.
func (r *AbsenceRepository) CountOverlapping(ctx context.Context, employeeID string, from, to time.Time, excludeID string) (int, error) {
	var count int

	query := `
		SELECT COUNT(*) FROM absences
		WHERE employee_id = $1 AND status != 'rejected' AND deleted_at IS NULL
		  AND start_date <= $3 AND end_date >= $2
		  AND id != $4
	`
	err := r.db.GetContext(ctx, &count, query, employeeID, Midnight(from), Midnight(to), excludeID)
	if err != nil {
		return 0, err
	}

	return count, nil
}
