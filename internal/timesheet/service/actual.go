package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
)

// ActualAggregator sums worked, credited and corrected hours over periods.
type ActualAggregator struct {
	entries  EntryStore
	absences AbsenceStore
	ledger   LedgerStore
	resolver *ScheduleResolver
}

// NewActualAggregator creates a new actual hours aggregator
func NewActualAggregator(entries EntryStore, absences AbsenceStore, ledger LedgerStore, resolver *ScheduleResolver) *ActualAggregator {
	return &ActualAggregator{
		entries:  entries,
		absences: absences,
		ledger:   ledger,
		resolver: resolver,
	}
}

// WorkedHours returns the net worked hours of [from, to] from time entries
func (a *ActualAggregator) WorkedHours(ctx context.Context, employeeID string, from, to time.Time) (decimal.Decimal, error) {
	entries, err := a.entries.ListByEmployeeBetween(ctx, employeeID, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	return sumNetHours(entries), nil
}

func sumNetHours(entries []*repository.TimeEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.NetHours())
	}
	return total.Round(2)
}

// PeriodFigures are the reconciled aggregates of one period. Target is the
// unpaid-adjusted figure; RawTarget keeps the unadjusted schedule sum for
// diagnostics. Overtime is always actual minus target.
type PeriodFigures struct {
	RawTarget decimal.Decimal
	Target    decimal.Decimal
	Actual    decimal.Decimal
	Overtime  decimal.Decimal
}

// ComputePeriod derives the period figures for [from, to]: target is the
// scheduled hours net of approved unpaid absence, actual is worked hours
// plus paid absence credits plus corrections dated in the period.
func (a *ActualAggregator) ComputePeriod(ctx context.Context, employeeID string, from, to time.Time) (*PeriodFigures, error) {
	schedule, err := a.resolver.Resolve(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	absences, err := a.absences.ListApprovedCovering(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	worked, err := a.WorkedHours(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	rawTarget := decimal.Zero
	target := decimal.Zero
	credited := decimal.Zero

	for _, day := range schedule.EmploymentDays(from, to) {
		dayTarget := schedule.DailyTarget(day)
		if dayTarget.IsZero() {
			continue
		}
		rawTarget = rawTarget.Add(dayTarget)

		var paid, unpaid bool
		for _, absence := range absences {
			if !absence.Covers(day) {
				continue
			}
			if absence.IsPaid() {
				paid = true
			} else {
				unpaid = true
			}
		}

		// Approved unpaid absence reduces the target instead of counting
		// as worked time.
		if unpaid {
			continue
		}

		target = target.Add(dayTarget)
		if paid {
			credited = credited.Add(dayTarget)
		}
	}

	corrections, err := a.ledger.SumCorrections(ctx, employeeID, from, to)
	if err != nil {
		return nil, err
	}

	actual := worked.Add(credited).Add(corrections).Round(2)
	target = target.Round(2)

	return &PeriodFigures{
		RawTarget: rawTarget.Round(2),
		Target:    target,
		Actual:    actual,
		Overtime:  actual.Sub(target).Round(2),
	}, nil
}
