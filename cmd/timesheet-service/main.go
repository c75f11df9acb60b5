package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/events"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/handler"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/service"
	"github.com/zeitwerk/zeitwerk-backend/pkg/config"
	"github.com/zeitwerk/zeitwerk-backend/pkg/database"
	"github.com/zeitwerk/zeitwerk-backend/pkg/httputil"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
	"github.com/zeitwerk/zeitwerk-backend/pkg/messaging"
)

func main() {
	// Load configuration
	cfg, err := config.Load("timesheet-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("timesheet-service", cfg.Server.Environment)
	log.Info().Msg("starting Timesheet Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	employeeRepo := repository.NewEmployeeRepository(db)
	entryRepo := repository.NewTimeEntryRepository(db)
	absenceRepo := repository.NewAbsenceRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	correctionRepo := repository.NewCorrectionRepository(db)
	vacationRepo := repository.NewVacationRepository(db)

	// Initialize services
	resolver := service.NewScheduleResolver(employeeRepo, holidayRepo)
	targets := service.NewTargetCalculator(resolver)
	aggregator := service.NewActualAggregator(entryRepo, absenceRepo, ledgerRepo, resolver)
	ledgerService := service.NewLedgerService(resolver, entryRepo, absenceRepo, ledgerRepo, publisher, log)
	reconciler := service.NewReconciler(aggregator, ledgerService, ledgerRepo, snapshotRepo, publisher, log, cfg.Payroll.ReconcileTolerance)
	timesheetService := service.NewTimesheetService(entryRepo, absenceRepo, vacationRepo, resolver, ledgerService, reconciler, snapshotRepo, publisher, log)
	correctionService := service.NewCorrectionService(employeeRepo, correctionRepo, ledgerService, publisher, log)
	rolloverService := service.NewRolloverService(employeeRepo, ledgerService, ledgerRepo, vacationRepo, publisher, log,
		cfg.Payroll.AnnualVacationDays, cfg.Payroll.VacationCarryoverCapDays)
	employeeService := service.NewEmployeeService(employeeRepo, ledgerService, publisher, log)

	// Initialize handlers
	employeeHandler := handler.NewEmployeeHandler(employeeService, log)
	entryHandler := handler.NewEntryHandler(timesheetService, log)
	absenceHandler := handler.NewAbsenceHandler(timesheetService, log)
	balanceHandler := handler.NewBalanceHandler(ledgerService, timesheetService, reconciler, targets, snapshotRepo, log)
	correctionHandler := handler.NewCorrectionHandler(correctionService, log)
	rolloverHandler := handler.NewRolloverHandler(rolloverService, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173", "https://*.zeitwerk.de"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.Auth(&cfg.JWT)) // Auth middleware with /health exception

	// Health check (no auth required - handled by middleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "timesheet-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/timesheet", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", employeeHandler.List)
			r.Post("/", employeeHandler.Create)
			r.Get("/{id}", employeeHandler.Get)
			r.Put("/{id}", employeeHandler.Update)
			r.Delete("/{id}", employeeHandler.Delete)
			r.Get("/{id}/schedule", employeeHandler.GetSchedule)
			r.Put("/{id}/schedule", employeeHandler.PutSchedule)

			// Time and absence views per employee
			r.Get("/{id}/entries", entryHandler.ListByEmployee)
			r.Get("/{id}/corrections", correctionHandler.ListByEmployee)

			// Balance views and maintenance
			r.Get("/{id}/balance", balanceHandler.GetBalance)
			r.Get("/{id}/transactions", balanceHandler.GetHistory)
			r.Get("/{id}/targets", balanceHandler.GetTargets)
			r.Get("/{id}/balances", balanceHandler.ListPeriodBalances)
			r.Post("/{id}/balances/refresh", balanceHandler.EnsureBalances)
			r.Post("/{id}/balances/{periodType}/{periodKey}/verify", balanceHandler.VerifyPeriod)
			r.Post("/{id}/recalculate", balanceHandler.Recalculate)
		})

		// Time entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Post("/", entryHandler.Create)
			r.Get("/{id}", entryHandler.Get)
			r.Put("/{id}", entryHandler.Update)
			r.Delete("/{id}", entryHandler.Delete)
		})

		// Absence routes
		r.Route("/absences", func(r chi.Router) {
			r.Post("/", absenceHandler.Create)
			r.Get("/{id}", absenceHandler.Get)
			r.Post("/{id}/approve", absenceHandler.Approve)
			r.Post("/{id}/reject", absenceHandler.Reject)
			r.Delete("/{id}", absenceHandler.Delete)
		})

		// Correction routes
		r.Route("/corrections", func(r chi.Router) {
			r.Post("/", correctionHandler.Create)
			r.Get("/{id}", correctionHandler.Get)
			r.Delete("/{id}", correctionHandler.Delete)
		})

		// Batch operations
		r.Post("/recalculate", balanceHandler.RecalculateAll)
		r.Post("/rollover", rolloverHandler.Perform)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
