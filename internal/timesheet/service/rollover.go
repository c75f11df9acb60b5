package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
	"github.com/zeitwerk/zeitwerk-backend/pkg/messaging"
)

// RolloverService closes a year into carryover transactions. Idempotent per
// employee and year; per-employee failures never abort the batch.
type RolloverService struct {
	employees EmployeeStore
	ledger    *LedgerService
	store     LedgerStore
	vacation  VacationStore
	publisher EventPublisher
	log       *logger.Logger

	annualVacationDays decimal.Decimal
	vacationCarryCap   decimal.Decimal
}

// NewRolloverService creates a new rollover service
func NewRolloverService(employees EmployeeStore, ledger *LedgerService, store LedgerStore, vacation VacationStore, publisher EventPublisher, log *logger.Logger, annualVacationDays, vacationCarryoverCapDays float64) *RolloverService {
	return &RolloverService{
		employees:          employees,
		ledger:             ledger,
		store:              store,
		vacation:           vacation,
		publisher:          publisher,
		log:                log,
		annualVacationDays: decimal.NewFromFloat(annualVacationDays),
		vacationCarryCap:   decimal.NewFromFloat(vacationCarryoverCapDays),
	}
}

// PerformRollover closes (year-1) into year for every active employee. The
// returned report lists successes and per-employee failures; the error is a
// partial batch failure when any employee failed.
func (s *RolloverService) PerformRollover(ctx context.Context, year int, initiatedBy string) (*errors.BatchReport, error) {
	if year < 2000 || year > 2100 {
		return nil, errors.BadRequest("implausible rollover year")
	}

	ids, err := s.employees.ListActiveIDs(ctx)
	if err != nil {
		return nil, err
	}

	report := &errors.BatchReport{}
	for _, employeeID := range ids {
		if err := s.rolloverEmployee(ctx, employeeID, year, initiatedBy); err != nil {
			s.log.WithEmployeeID(employeeID).WithError(err).Error().
				Int("year", year).
				Msg("Year-end rollover failed for employee")
			report.AddFailure(employeeID, err)
			continue
		}
		report.AddSuccess(employeeID)
	}

	failed := make([]string, 0, len(report.Failed))
	for _, f := range report.Failed {
		failed = append(failed, f.EmployeeID)
	}
	if err := s.publisher.Publish(ctx, messaging.EventYearEndRolloverCompleted, messaging.YearEndRolloverCompletedEvent{
		Year:      year,
		Succeeded: report.Succeeded,
		Failed:    failed,
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish rollover event")
	}

	if report.HasFailures() {
		return report, errors.PartialBatch(report)
	}
	return report, nil
}

func (s *RolloverService) rolloverEmployee(ctx context.Context, employeeID string, year int, initiatedBy string) error {
	janFirst := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	refID := fmt.Sprintf("%d", year)

	exists, err := s.store.ExistsByNaturalKey(ctx, employeeID, janFirst,
		repository.TxTypeCarryover, repository.RefTypeRollover, refID)
	if err != nil {
		return err
	}

	if !exists {
		closing, err := s.store.BalanceAsOf(ctx, employeeID, janFirst.AddDate(0, 0, -1))
		if err != nil {
			return err
		}

		row := &repository.Transaction{
			EmployeeID:      employeeID,
			TransactionDate: janFirst,
			TransactionType: repository.TxTypeCarryover,
			Hours:           closing.Round(2),
			ReferenceType:   repository.RefTypeRollover,
			ReferenceID:     refID,
			CreatedBy:       &initiatedBy,
		}
		if err := s.ledger.Append(ctx, employeeID, []*repository.Transaction{row}); err != nil {
			return err
		}

		s.log.WithEmployeeID(employeeID).Info().
			Int("year", year).
			Str("carryover", closing.String()).
			Msg("Overtime carryover written")
	}

	return s.initVacationYear(ctx, employeeID, year)
}

// initVacationYear seeds the new year's vacation balance. Unused prior-year
// days transfer up to the policy cap. Re-running leaves an existing row
// untouched.
func (s *RolloverService) initVacationYear(ctx context.Context, employeeID string, year int) error {
	existing, err := s.vacation.Get(ctx, employeeID, year)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	carry := decimal.Zero
	prior, err := s.vacation.Get(ctx, employeeID, year-1)
	if err != nil {
		return err
	}
	if prior != nil {
		unused := prior.Remaining()
		if unused.IsNegative() {
			unused = decimal.Zero
		}
		carry = decimal.Min(unused, s.vacationCarryCap)
	}

	return s.vacation.Upsert(ctx, &repository.VacationBalance{
		EmployeeID:            employeeID,
		Year:                  year,
		AnnualEntitlement:     s.annualVacationDays,
		CarryoverFromPrevious: carry,
		Taken:                 decimal.Zero,
	})
}
