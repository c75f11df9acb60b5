package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/pkg/database"
)

// VacationBalance tracks vacation entitlement for one employee and year
type VacationBalance struct {
	ID                    string          `db:"id" json:"id"`
	EmployeeID            string          `db:"employee_id" json:"employee_id"`
	Year                  int             `db:"year" json:"year"`
	AnnualEntitlement     decimal.Decimal `db:"annual_entitlement" json:"annual_entitlement"`
	CarryoverFromPrevious decimal.Decimal `db:"carryover_from_previous" json:"carryover_from_previous"`
	Taken                 decimal.Decimal `db:"taken" json:"taken"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// Remaining returns the unused vacation days of the year
func (v *VacationBalance) Remaining() decimal.Decimal {
	return v.AnnualEntitlement.Add(v.CarryoverFromPrevious).Sub(v.Taken)
}

// VacationRepository handles vacation balance persistence
type VacationRepository struct {
	db *database.DB
}

// NewVacationRepository creates a new vacation repository
func NewVacationRepository(db *database.DB) *VacationRepository {
	return &VacationRepository{db: db}
}

// Get returns the vacation balance for an employee and year, or nil
func (r *VacationRepository) Get(ctx context.Context, employeeID string, year int) (*VacationBalance, error) {
	var vb VacationBalance

	query := `
		SELECT id, employee_id, year, annual_entitlement, carryover_from_previous,
		       taken, created_at, updated_at
		FROM vacation_balances
		WHERE employee_id = $1 AND year = $2
	`
	err := r.db.GetContext(ctx, &vb, query, employeeID, year)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &vb, nil
}

// Upsert writes a vacation balance for an employee and year
func (r *VacationRepository) Upsert(ctx context.Context, vb *VacationBalance) error {
	if vb.ID == "" {
		vb.ID = uuid.New().String()
	}

	query := `
		INSERT INTO vacation_balances (
			id, employee_id, year, annual_entitlement, carryover_from_previous, taken
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (employee_id, year) DO UPDATE SET
			annual_entitlement = EXCLUDED.annual_entitlement,
			carryover_from_previous = EXCLUDED.carryover_from_previous,
			taken = EXCLUDED.taken,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		vb.ID, vb.EmployeeID, vb.Year, vb.AnnualEntitlement, vb.CarryoverFromPrevious, vb.Taken,
	).Scan(&vb.ID, &vb.CreatedAt, &vb.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// AddTaken increments the taken days for an employee and year
func (r *VacationRepository) AddTaken(ctx context.Context, employeeID string, year int, days decimal.Decimal) error {
	query := `
		UPDATE vacation_balances
		SET taken = taken + $3, updated_at = NOW()
		WHERE employee_id = $1 AND year = $2
	`
	_, err := r.db.ExecContext(ctx, query, employeeID, year, days)
	return err
}
