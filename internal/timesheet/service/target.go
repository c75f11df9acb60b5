package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TargetCalculator computes scheduled hours over periods by summing resolved
// daily targets. Days outside the employment window contribute zero.
type TargetCalculator struct {
	resolver *ScheduleResolver
}

// NewTargetCalculator creates a new target calculator
func NewTargetCalculator(resolver *ScheduleResolver) *TargetCalculator {
	return &TargetCalculator{resolver: resolver}
}

// DailyTarget returns the scheduled hours for one employee and day
func (c *TargetCalculator) DailyTarget(ctx context.Context, employeeID string, day time.Time) (decimal.Decimal, error) {
	schedule, err := c.resolver.Resolve(ctx, employeeID, day, day)
	if err != nil {
		return decimal.Zero, err
	}

	return schedule.DailyTarget(day), nil
}

// PeriodTarget returns the summed scheduled hours for [from, to]
func (c *TargetCalculator) PeriodTarget(ctx context.Context, employeeID string, from, to time.Time) (decimal.Decimal, error) {
	schedule, err := c.resolver.Resolve(ctx, employeeID, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	return periodTarget(schedule, from, to), nil
}

func periodTarget(schedule *DaySchedule, from, to time.Time) decimal.Decimal {
	target := decimal.Zero
	for _, day := range schedule.EmploymentDays(from, to) {
		target = target.Add(schedule.DailyTarget(day))
	}
	return target.Round(2)
}
