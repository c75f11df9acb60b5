package service

import (
	"context"
	"strings"

	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
	"github.com/zeitwerk/zeitwerk-backend/pkg/messaging"
)

const minCorrectionReasonLen = 10

// CorrectionService applies manual balance adjustments. A correction is the
// only path that writes correction rows to the ledger; reversing one removes
// its ledger effect but keeps the audit record.
type CorrectionService struct {
	employees   EmployeeStore
	corrections CorrectionStore
	ledger      *LedgerService
	publisher   EventPublisher
	log         *logger.Logger
}

// NewCorrectionService creates a new correction service
func NewCorrectionService(employees EmployeeStore, corrections CorrectionStore, ledger *LedgerService, publisher EventPublisher, log *logger.Logger) *CorrectionService {
	return &CorrectionService{
		employees:   employees,
		corrections: corrections,
		ledger:      ledger,
		publisher:   publisher,
		log:         log,
	}
}

// Create validates and applies a manual correction
func (s *CorrectionService) Create(ctx context.Context, c *repository.Correction) error {
	if c.Hours.IsZero() {
		return errors.BadRequest("correction hours must not be zero")
	}
	if len(strings.TrimSpace(c.Reason)) < minCorrectionReasonLen {
		return errors.BadRequest("correction reason must be at least 10 characters")
	}

	emp, err := s.employees.GetByID(ctx, c.EmployeeID)
	if err != nil {
		return err
	}
	if !emp.EmployedOn(c.CorrectionDate) {
		return errors.BadRequest("correction date is outside the employment window")
	}

	if err := s.corrections.Create(ctx, c); err != nil {
		return err
	}

	row := &repository.Transaction{
		EmployeeID:      c.EmployeeID,
		TransactionDate: repository.Midnight(c.CorrectionDate),
		TransactionType: repository.TxTypeCorrection,
		Hours:           c.Hours.Round(2),
		ReferenceType:   repository.RefTypeCorrection,
		ReferenceID:     c.ID,
		CreatedBy:       c.CreatedBy,
	}
	if err := s.ledger.Append(ctx, c.EmployeeID, []*repository.Transaction{row}); err != nil {
		return err
	}

	s.log.WithEmployeeID(c.EmployeeID).Info().
		Str("correction_id", c.ID).
		Str("hours", c.Hours.String()).
		Msg("Correction applied")

	appliedBy := ""
	if c.CreatedBy != nil {
		appliedBy = *c.CreatedBy
	}
	if err := s.publisher.Publish(ctx, messaging.EventCorrectionApplied, messaging.CorrectionAppliedEvent{
		CorrectionID: c.ID,
		EmployeeID:   c.EmployeeID,
		Hours:        c.Hours.String(),
		EffectiveOn:  repository.Midnight(c.CorrectionDate),
		AppliedBy:    appliedBy,
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish correction event")
	}

	return nil
}

// Get returns a correction by ID, including reversed ones
func (s *CorrectionService) Get(ctx context.Context, id string) (*repository.Correction, error) {
	return s.corrections.GetByID(ctx, id)
}

// List returns the full correction audit trail of an employee
func (s *CorrectionService) List(ctx context.Context, employeeID string) ([]*repository.Correction, error) {
	return s.corrections.ListByEmployee(ctx, employeeID)
}

// Reverse removes the ledger effect of a correction. The audit record stays,
// marked with the reversal time.
func (s *CorrectionService) Reverse(ctx context.Context, id, reversedBy string) error {
	c, err := s.corrections.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.DeletedAt != nil {
		return errors.Conflict("correction is already reversed")
	}

	if err := s.ledger.Remove(ctx, c.EmployeeID, repository.RefTypeCorrection, c.ID); err != nil {
		return err
	}
	if err := s.corrections.MarkReversed(ctx, c.ID); err != nil {
		return err
	}

	s.log.WithEmployeeID(c.EmployeeID).Info().
		Str("correction_id", c.ID).
		Msg("Correction reversed")

	if err := s.publisher.Publish(ctx, messaging.EventCorrectionReversed, messaging.CorrectionReversedEvent{
		CorrectionID: c.ID,
		EmployeeID:   c.EmployeeID,
		ReversedBy:   reversedBy,
	}); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to publish correction event")
	}

	return nil
}
