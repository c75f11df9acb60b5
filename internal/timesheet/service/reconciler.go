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

// DayReconciler rebuilds the derived ledger rows of a date range.
// Implemented by LedgerService.
type DayReconciler interface {
	ReconcileRange(ctx context.Context, employeeID string, from, to time.Time) error
}

// Reconciler maintains the cached period balances and verifies them against
// the ledger. Every refresh cross-checks the calculator figures against the
// ledger sum; a disagreement beyond tolerance is flagged verification_pending
// and reported, never silently corrected.
type Reconciler struct {
	aggregator *ActualAggregator
	days       DayReconciler
	ledger     LedgerStore
	snapshots  SnapshotStore
	publisher  EventPublisher
	log        *logger.Logger
	tolerance  decimal.Decimal
}

// NewReconciler creates a new reconciler. Tolerance is the maximum absolute
// disagreement in hours that still counts as equal.
func NewReconciler(aggregator *ActualAggregator, days DayReconciler, ledger LedgerStore, snapshots SnapshotStore, publisher EventPublisher, log *logger.Logger, tolerance float64) *Reconciler {
	return &Reconciler{
		aggregator: aggregator,
		days:       days,
		ledger:     ledger,
		snapshots:  snapshots,
		publisher:  publisher,
		log:        log,
		tolerance:  decimal.NewFromFloat(tolerance),
	}
}

// Period key formats
func DayKey(t time.Time) string {
	return repository.Midnight(t).Format("2006-01-02")
}

func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

func MonthKey(t time.Time) string {
	return repository.Midnight(t).Format("2006-01")
}

// weekBounds returns the Monday and Sunday of the ISO week containing t
func weekBounds(t time.Time) (time.Time, time.Time) {
	d := repository.Midnight(t)
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// monthBounds returns the first and last day of the month containing t
func monthBounds(t time.Time) (time.Time, time.Time) {
	d := repository.Midnight(t)
	first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// RefreshPeriodBalances rewrites the day, week and month snapshots of every
// period touching [from, to]. The derived ledger rows of every touched period
// are swept in first, so days without activity still carry their scheduled
// debit and the ledger sum covers the same ground as the calculators.
func (r *Reconciler) RefreshPeriodBalances(ctx context.Context, employeeID string, from, to time.Time) error {
	from = repository.Midnight(from)
	to = repository.Midnight(to)

	sweepFrom, _ := monthBounds(from)
	if weekStart, _ := weekBounds(from); weekStart.Before(sweepFrom) {
		sweepFrom = weekStart
	}
	_, sweepTo := monthBounds(to)
	if _, weekEnd := weekBounds(to); weekEnd.After(sweepTo) {
		sweepTo = weekEnd
	}
	if err := r.days.ReconcileRange(ctx, employeeID, sweepFrom, sweepTo); err != nil {
		return err
	}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := r.refreshPeriod(ctx, employeeID, repository.PeriodDay, DayKey(day), day, day); err != nil {
			return err
		}
	}

	seen := make(map[string]bool)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if key := WeekKey(day); !seen[key] {
			seen[key] = true
			start, end := weekBounds(day)
			if err := r.refreshPeriod(ctx, employeeID, repository.PeriodWeek, key, start, end); err != nil {
				return err
			}
		}
		if key := MonthKey(day); !seen[key] {
			seen[key] = true
			start, end := monthBounds(day)
			if err := r.refreshPeriod(ctx, employeeID, repository.PeriodMonth, key, start, end); err != nil {
				return err
			}
		}
	}

	return nil
}

func (r *Reconciler) refreshPeriod(ctx context.Context, employeeID, periodType, periodKey string, from, to time.Time) error {
	figures, err := r.aggregator.ComputePeriod(ctx, employeeID, from, to)
	if err != nil {
		return err
	}

	overtime, err := r.ledger.SumForPeriod(ctx, employeeID, from, to, true)
	if err != nil {
		return err
	}

	withCarryover, err := r.ledger.SumForPeriod(ctx, employeeID, from, to, false)
	if err != nil {
		return err
	}

	pb := &repository.PeriodBalance{
		EmployeeID:    employeeID,
		PeriodType:    periodType,
		PeriodKey:     periodKey,
		TargetHours:   figures.Target,
		ActualHours:   figures.Actual,
		OvertimeHours: overtime,
	}
	if carryover := withCarryover.Sub(overtime); !carryover.IsZero() {
		pb.CarryoverHours = &carryover
	}

	if err := r.snapshots.Upsert(ctx, pb); err != nil {
		return err
	}

	// The calculators and the ledger compute the same figure over two
	// independent paths. They must agree after every refresh.
	if figures.Overtime.Sub(overtime).Abs().GreaterThan(r.tolerance) {
		return r.flagIntegrity(ctx, employeeID, periodType, periodKey, figures.Overtime, overtime)
	}

	return nil
}

// VerifyPeriod checks one stored snapshot against a fresh ledger sum. A
// disagreement beyond tolerance flags the snapshot, publishes an integrity
// event and returns an integrity error. The stored value is left untouched.
func (r *Reconciler) VerifyPeriod(ctx context.Context, employeeID, periodType, periodKey string) error {
	pb, err := r.snapshots.Get(ctx, employeeID, periodType, periodKey)
	if err != nil {
		return err
	}
	if pb == nil {
		return errors.NotFound("period balance")
	}

	from, to, err := periodRange(periodType, periodKey)
	if err != nil {
		return err
	}

	ledgerSum, err := r.ledger.SumForPeriod(ctx, employeeID, from, to, true)
	if err != nil {
		return err
	}

	diff := pb.OvertimeHours.Sub(ledgerSum).Abs()
	if diff.LessThanOrEqual(r.tolerance) {
		return nil
	}

	return r.flagIntegrity(ctx, employeeID, periodType, periodKey, pb.OvertimeHours, ledgerSum)
}

// flagIntegrity marks the snapshot verification_pending, reports the
// disagreement and returns the integrity error. The stored value is left
// untouched; forceRecalculate is the repair.
func (r *Reconciler) flagIntegrity(ctx context.Context, employeeID, periodType, periodKey string, stated, ledgerSum decimal.Decimal) error {
	if err := r.snapshots.FlagVerificationPending(ctx, employeeID, periodType, periodKey); err != nil {
		return err
	}

	r.log.WithEmployeeID(employeeID).Error().
		Str("period_type", periodType).
		Str("period_key", periodKey).
		Str("stated_hours", stated.String()).
		Str("ledger_hours", ledgerSum.String()).
		Msg("Period balance disagrees with ledger")

	if err := r.publisher.Publish(ctx, messaging.EventIntegrityFlagged, messaging.IntegrityFlaggedEvent{
		EmployeeID:  employeeID,
		PeriodType:  periodType,
		PeriodKey:   periodKey,
		Snapshot:    stated.String(),
		LedgerSum:   ledgerSum.String(),
		Discrepancy: stated.Sub(ledgerSum).String(),
	}); err != nil {
		r.log.WithError(err).Warn().Msg("Failed to publish integrity event")
	}

	return errors.Integrity(fmt.Sprintf(
		"period %s balance %s disagrees with ledger %s",
		periodKey, stated.String(), ledgerSum.String(),
	))
}

// VerifyMonths runs the integrity check over every stored month snapshot of
// an employee and returns the first disagreement found.
func (r *Reconciler) VerifyMonths(ctx context.Context, employeeID string) error {
	snapshots, err := r.snapshots.ListForEmployee(ctx, employeeID, repository.PeriodMonth)
	if err != nil {
		return err
	}

	for _, pb := range snapshots {
		if err := r.VerifyPeriod(ctx, employeeID, repository.PeriodMonth, pb.PeriodKey); err != nil {
			return err
		}
	}

	return nil
}

// periodRange resolves a period key back to its calendar bounds
func periodRange(periodType, periodKey string) (time.Time, time.Time, error) {
	switch periodType {
	case repository.PeriodDay:
		day, err := time.Parse("2006-01-02", periodKey)
		if err != nil {
			return time.Time{}, time.Time{}, errors.BadRequest("invalid day key")
		}
		return day, day, nil
	case repository.PeriodWeek:
		var year, week int
		if _, err := fmt.Sscanf(periodKey, "%4d-W%2d", &year, &week); err != nil {
			return time.Time{}, time.Time{}, errors.BadRequest("invalid week key")
		}
		// January 4th is always inside ISO week 1
		jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
		monday, _ := weekBounds(jan4)
		start := monday.AddDate(0, 0, (week-1)*7)
		return start, start.AddDate(0, 0, 6), nil
	case repository.PeriodMonth:
		first, err := time.Parse("2006-01", periodKey)
		if err != nil {
			return time.Time{}, time.Time{}, errors.BadRequest("invalid month key")
		}
		start, end := monthBounds(first)
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, errors.BadRequest("invalid period type")
	}
}
