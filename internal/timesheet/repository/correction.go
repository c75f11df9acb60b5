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

// Correction is the audit record of a manual balance adjustment. Deleting a
// correction reverses its ledger effect but this row survives (soft delete).
type Correction struct {
	ID             string          `db:"id" json:"id"`
	EmployeeID     string          `db:"employee_id" json:"employee_id"`
	CorrectionDate time.Time       `db:"correction_date" json:"correction_date"`
	Hours          decimal.Decimal `db:"hours" json:"hours"`
	CorrectionType string          `db:"correction_type" json:"correction_type"`
	Reason         string          `db:"reason" json:"reason"`
	CreatedBy      *string         `db:"created_by" json:"created_by,omitempty"`
	ApprovedBy     *string         `db:"approved_by" json:"approved_by,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	DeletedAt      *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
}

// CorrectionRepository handles correction persistence
type CorrectionRepository struct {
	db *database.DB
}

// NewCorrectionRepository creates a new correction repository
func NewCorrectionRepository(db *database.DB) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

// Create creates a new correction record
func (r *CorrectionRepository) Create(ctx context.Context, c *Correction) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CorrectionType == "" {
		c.CorrectionType = "manual"
	}

	query := `
		INSERT INTO corrections (
			id, employee_id, correction_date, hours, correction_type,
			reason, created_by, approved_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		c.ID, c.EmployeeID, Midnight(c.CorrectionDate), c.Hours, c.CorrectionType,
		c.Reason, c.CreatedBy, c.ApprovedBy,
	).Scan(&c.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// GetByID gets a correction by ID, including soft-deleted ones
func (r *CorrectionRepository) GetByID(ctx context.Context, id string) (*Correction, error) {
	var c Correction

	query := `
		SELECT id, employee_id, correction_date, hours, correction_type,
		       reason, created_by, approved_by, created_at, deleted_at
		FROM corrections
		WHERE id = $1
	`
	err := r.db.GetContext(ctx, &c, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("correction")
		}
		return nil, err
	}

	return &c, nil
}

// ListByEmployee returns all corrections of an employee, including reversed
// ones. The audit trail is complete by design.
func (r *CorrectionRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*Correction, error) {
	var corrections []*Correction

	query := `
		SELECT id, employee_id, correction_date, hours, correction_type,
		       reason, created_by, approved_by, created_at, deleted_at
		FROM corrections
		WHERE employee_id = $1
		ORDER BY correction_date DESC, created_at DESC
	`
	if err := r.db.SelectContext(ctx, &corrections, query, employeeID); err != nil {
		return nil, err
	}

	return corrections, nil
}

// MarkReversed soft deletes a correction. The row stays for audit.
func (r *CorrectionRepository) MarkReversed(ctx context.Context, id string) error {
	query := `
		UPDATE corrections
		SET deleted_at = NOW()
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
		return errors.NotFound("correction")
	}

	return nil
}
