// Package testutil provides testing utilities for the Zeitwerk backend.
// It includes a testcontainers PostgreSQL harness, sqlmock factories, and
// common test fixtures.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance
type PostgresContainer struct {
	*postgres.PostgresContainer
	DSN string
}

// PostgresContainerConfig configures the test PostgreSQL container
type PostgresContainerConfig struct {
	Database string
	Username string
	Password string
	Image    string // Optional: defaults to postgres:15-alpine
}

// DefaultPostgresConfig returns sensible defaults for test containers
func DefaultPostgresConfig() PostgresContainerConfig {
	return PostgresContainerConfig{
		Database: "zeitwerk_test",
		Username: "test",
		Password: "test",
		Image:    "postgres:15-alpine",
	}
}

// NewPostgresContainer creates a new PostgreSQL test container.
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer container.Terminate(ctx)
//
//	    // Run tests
//	    code := m.Run()
//	    os.Exit(code)
//	}
func NewPostgresContainer(ctx context.Context, cfg PostgresContainerConfig) (*PostgresContainer, error) {
	if cfg.Image == "" {
		cfg.Image = "postgres:15-alpine"
	}
	if cfg.Database == "" {
		cfg.Database = "zeitwerk_test"
	}
	if cfg.Username == "" {
		cfg.Username = "test"
	}
	if cfg.Password == "" {
		cfg.Password = "test"
	}

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(cfg.Image),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		DSN:               dsn,
	}, nil
}

// Connect returns a sqlx.DB connection to the container
func (c *PostgresContainer) Connect(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	return c.PostgresContainer.Terminate(ctx)
}

// CreateTimesheetSchema creates the full timesheet schema for integration tests
func (c *PostgresContainer) CreateTimesheetSchema(ctx context.Context, db *sqlx.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS employees (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_number VARCHAR(20) UNIQUE NOT NULL,
			first_name VARCHAR(100) NOT NULL,
			last_name VARCHAR(100) NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			weekly_hours NUMERIC(5,2) NOT NULL,
			holiday_region VARCHAR(10) NOT NULL DEFAULT 'DE-BY',
			hire_date DATE NOT NULL,
			termination_date DATE,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ,
			created_by UUID,
			updated_by UUID
		);

		CREATE TABLE IF NOT EXISTS work_schedules (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_id UUID NOT NULL REFERENCES employees(id),
			weekday SMALLINT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
			hours NUMERIC(4,2) NOT NULL CHECK (hours >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT work_schedules_employee_weekday UNIQUE (employee_id, weekday)
		);

		CREATE TABLE IF NOT EXISTS time_entries (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_id UUID NOT NULL REFERENCES employees(id),
			entry_date DATE NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			break_minutes INT NOT NULL DEFAULT 0,
			location VARCHAR(100),
			note TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ,
			created_by UUID,
			updated_by UUID,
			CONSTRAINT entry_times_valid CHECK (end_time > start_time)
		);

		CREATE TABLE IF NOT EXISTS absences (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_id UUID NOT NULL REFERENCES employees(id),
			absence_type VARCHAR(20) NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			days_required NUMERIC(5,2),
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			reason TEXT,
			reviewed_by UUID,
			reviewed_at TIMESTAMPTZ,
			rejection_reason TEXT,
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ,
			created_by UUID,
			CONSTRAINT absence_type_valid CHECK (absence_type IN ('vacation', 'sick', 'unpaid', 'overtime_comp', 'special'))
		);

		CREATE TABLE IF NOT EXISTS holidays (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			holiday_date DATE NOT NULL,
			name VARCHAR(100) NOT NULL,
			scope VARCHAR(20) NOT NULL DEFAULT 'federal',
			region VARCHAR(10)
		);

		CREATE TABLE IF NOT EXISTS overtime_transactions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_id UUID NOT NULL REFERENCES employees(id),
			transaction_date DATE NOT NULL,
			transaction_type VARCHAR(30) NOT NULL,
			hours NUMERIC(7,2) NOT NULL,
			balance_before NUMERIC(9,2) NOT NULL,
			balance_after NUMERIC(9,2) NOT NULL,
			reference_type VARCHAR(20) NOT NULL,
			reference_id VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_by UUID,
			CONSTRAINT transaction_type_valid CHECK (transaction_type IN (
				'earned', 'vacation_credit', 'sick_credit', 'overtime_comp_credit',
				'special_credit', 'unpaid_adjustment', 'correction', 'carryover')),
			CONSTRAINT transactions_natural_key UNIQUE (employee_id, transaction_date, transaction_type, reference_type, reference_id)
		);

		CREATE TABLE IF NOT EXISTS period_balances (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_id UUID NOT NULL REFERENCES employees(id),
			period_type VARCHAR(10) NOT NULL,
			period_key VARCHAR(12) NOT NULL,
			target_hours NUMERIC(7,2) NOT NULL,
			actual_hours NUMERIC(7,2) NOT NULL,
			overtime_hours NUMERIC(7,2) NOT NULL,
			carryover_hours NUMERIC(7,2),
			verification_pending BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT period_balances_period UNIQUE (employee_id, period_type, period_key)
		);

		CREATE TABLE IF NOT EXISTS corrections (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_id UUID NOT NULL REFERENCES employees(id),
			correction_date DATE NOT NULL,
			hours NUMERIC(7,2) NOT NULL,
			correction_type VARCHAR(30) NOT NULL DEFAULT 'manual',
			reason TEXT NOT NULL,
			created_by UUID,
			approved_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS vacation_balances (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			employee_id UUID NOT NULL REFERENCES employees(id),
			year INT NOT NULL,
			annual_entitlement NUMERIC(5,2) NOT NULL,
			carryover_from_previous NUMERIC(5,2) NOT NULL DEFAULT 0,
			taken NUMERIC(5,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT vacation_balances_year UNIQUE (employee_id, year)
		);
	`

	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create timesheet schema: %w", err)
	}

	return nil
}

// TruncateAll clears all timesheet tables between tests
func (c *PostgresContainer) TruncateAll(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		TRUNCATE vacation_balances, corrections, period_balances,
			overtime_transactions, holidays, absences, time_entries,
			work_schedules, employees CASCADE
	`)
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}
