package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeitwerk/zeitwerk-backend/pkg/actor"
)

var recalcEmployeeID string

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Rebuild overtime ledgers and period balances",
	Long:  `Drops cached period balances and rebuilds the overtime ledger from time entries, absences and schedules. Without --employee the batch covers every active employee.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		ctx := context.Background()
		system := actor.SystemActor()

		if recalcEmployeeID != "" {
			balance, err := e.timesheet.ForceRecalculate(ctx, recalcEmployeeID, system.ID)
			if err != nil {
				return err
			}
			fmt.Printf("employee %s recalculated, balance %s\n", recalcEmployeeID, balance.StringFixed(2))
			return nil
		}

		report, err := e.timesheet.RecalculateAll(ctx, system.ID)
		if report == nil {
			return err
		}

		fmt.Printf("recalculated %d employees, %d failed\n", len(report.Succeeded), len(report.Failed))
		for _, f := range report.Failed {
			fmt.Printf("  %s: %s\n", f.EmployeeID, f.Message)
		}
		if report.HasFailures() {
			return fmt.Errorf("%d employees failed", len(report.Failed))
		}
		return nil
	},
}

func init() {
	recalculateCmd.Flags().StringVar(&recalcEmployeeID, "employee", "", "recalculate a single employee ID")
}
