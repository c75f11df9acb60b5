package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/pkg/database"
)

// Period types
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// PeriodBalance is a cached aggregate over a period. It is always derivable
// from the ledger; a disagreement beyond tolerance marks it
// verification_pending instead of being silently corrected.
type PeriodBalance struct {
	ID                  string           `db:"id" json:"id"`
	EmployeeID          string           `db:"employee_id" json:"employee_id"`
	PeriodType          string           `db:"period_type" json:"period_type"`
	PeriodKey           string           `db:"period_key" json:"period_key"`
	TargetHours         decimal.Decimal  `db:"target_hours" json:"target_hours"`
	ActualHours         decimal.Decimal  `db:"actual_hours" json:"actual_hours"`
	OvertimeHours       decimal.Decimal  `db:"overtime_hours" json:"overtime_hours"`
	CarryoverHours      *decimal.Decimal `db:"carryover_hours" json:"carryover_hours,omitempty"`
	VerificationPending bool             `db:"verification_pending" json:"verification_pending"`
	UpdatedAt           time.Time        `db:"updated_at" json:"updated_at"`
}

// SnapshotRepository handles period balance persistence
type SnapshotRepository struct {
	db *database.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *database.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert writes a period balance, replacing any existing row for the period
func (r *SnapshotRepository) Upsert(ctx context.Context, pb *PeriodBalance) error {
	if pb.ID == "" {
		pb.ID = uuid.New().String()
	}

	query := `
		INSERT INTO period_balances (
			id, employee_id, period_type, period_key, target_hours, actual_hours,
			overtime_hours, carryover_hours, verification_pending
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (employee_id, period_type, period_key) DO UPDATE SET
			target_hours = EXCLUDED.target_hours,
			actual_hours = EXCLUDED.actual_hours,
			overtime_hours = EXCLUDED.overtime_hours,
			carryover_hours = EXCLUDED.carryover_hours,
			verification_pending = EXCLUDED.verification_pending,
			updated_at = NOW()
		RETURNING id, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		pb.ID, pb.EmployeeID, pb.PeriodType, pb.PeriodKey, pb.TargetHours, pb.ActualHours,
		pb.OvertimeHours, pb.CarryoverHours, pb.VerificationPending,
	).Scan(&pb.ID, &pb.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// Get returns a period balance, or nil if no snapshot exists yet
func (r *SnapshotRepository) Get(ctx context.Context, employeeID, periodType, periodKey string) (*PeriodBalance, error) {
	var pb PeriodBalance

	query := `
		SELECT id, employee_id, period_type, period_key, target_hours, actual_hours,
		       overtime_hours, carryover_hours, verification_pending, updated_at
		FROM period_balances
		WHERE employee_id = $1 AND period_type = $2 AND period_key = $3
	`
	err := r.db.GetContext(ctx, &pb, query, employeeID, periodType, periodKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &pb, nil
}

// ListForEmployee returns all snapshots of one period type for an employee
func (r *SnapshotRepository) ListForEmployee(ctx context.Context, employeeID, periodType string) ([]*PeriodBalance, error) {
	var balances []*PeriodBalance

	query := `
		SELECT id, employee_id, period_type, period_key, target_hours, actual_hours,
		       overtime_hours, carryover_hours, verification_pending, updated_at
		FROM period_balances
		WHERE employee_id = $1 AND period_type = $2
		ORDER BY period_key
	`
	if err := r.db.SelectContext(ctx, &balances, query, employeeID, periodType); err != nil {
		return nil, err
	}

	return balances, nil
}

// FlagVerificationPending marks a snapshot as disagreeing with the ledger
func (r *SnapshotRepository) FlagVerificationPending(ctx context.Context, employeeID, periodType, periodKey string) error {
	query := `
		UPDATE period_balances
		SET verification_pending = TRUE, updated_at = NOW()
		WHERE employee_id = $1 AND period_type = $2 AND period_key = $3
	`
	_, err := r.db.ExecContext(ctx, query, employeeID, periodType, periodKey)
	return err
}

// DeleteForEmployee drops all cached snapshots of an employee. Used before a
// forced recalculation rebuilds them from the ledger.
func (r *SnapshotRepository) DeleteForEmployee(ctx context.Context, employeeID string) error {
	query := `DELETE FROM period_balances WHERE employee_id = $1`
	_, err := r.db.ExecContext(ctx, query, employeeID)
	return err
}
