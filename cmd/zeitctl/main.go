// zeitctl is the operations CLI for the timesheet service. It runs
// maintenance batches (recalculation, year-end rollover) directly against
// the database, attributed to the system actor.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/events"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/service"
	"github.com/zeitwerk/zeitwerk-backend/pkg/config"
	"github.com/zeitwerk/zeitwerk-backend/pkg/database"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "zeitctl",
	Short: "Operations CLI for the timesheet service",
	Long:  `Runs ledger maintenance batches: balance recalculation and year-end rollover.`,
}

func main() {
	rootCmd.AddCommand(recalculateCmd)
	rootCmd.AddCommand(rolloverCmd)
	rootCmd.AddCommand(verifyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env holds the wired services a command needs
type env struct {
	db         *database.DB
	log        *logger.Logger
	employees  *repository.EmployeeRepository
	ledger     *service.LedgerService
	reconciler *service.Reconciler
	timesheet  *service.TimesheetService
	rollover   *service.RolloverService
}

// setup wires repositories and services against the configured database.
// Events are dropped; CLI batches run without a broker.
func setup() (*env, error) {
	cfg, err := config.Load("zeitctl")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New("zeitctl", cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	publisher := events.NopPublisher{}

	employeeRepo := repository.NewEmployeeRepository(db)
	entryRepo := repository.NewTimeEntryRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	vacationRepo := repository.NewVacationRepository(db)

	resolver := service.NewScheduleResolver(employeeRepo, holidayRepo)
	aggregator := service.NewActualAggregator(entryRepo, absenceRepo, ledgerRepo, resolver)
	ledgerService := service.NewLedgerService(resolver, entryRepo, absenceRepo, ledgerRepo, publisher, log)
	reconciler := service.NewReconciler(aggregator, ledgerService, ledgerRepo, snapshotRepo, publisher, log, cfg.Payroll.ReconcileTolerance)
	timesheetService := service.NewTimesheetService(entryRepo, absenceRepo, vacationRepo, resolver, ledgerService, reconciler, snapshotRepo, publisher, log)
	rolloverService := service.NewRolloverService(employeeRepo, ledgerService, ledgerRepo, vacationRepo, publisher, log,
		cfg.Payroll.AnnualVacationDays, cfg.Payroll.VacationCarryoverCapDays)

	return &env{
		db:         db,
		log:        log,
		employees:  employeeRepo,
		ledger:     ledgerService,
		reconciler: reconciler,
		timesheet:  timesheetService,
		rollover:   rolloverService,
	}, nil
}

func (e *env) close() {
	e.db.Close()
}
