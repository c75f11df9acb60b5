package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeitwerk/zeitwerk-backend/pkg/actor"
)

var rolloverYear int

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Run the year-end rollover batch",
	Long:  `Closes the previous year's overtime balance into a carryover transaction dated January 1 and seeds the new year's vacation balances. Safe to re-run; employees already rolled over are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rolloverYear == 0 {
			rolloverYear = time.Now().Year()
		}

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		report, err := e.rollover.PerformRollover(context.Background(), rolloverYear, actor.SystemActor().ID)
		if report == nil {
			return err
		}

		fmt.Printf("rollover into %d: %d employees done, %d failed\n", rolloverYear, len(report.Succeeded), len(report.Failed))
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
	rolloverCmd.Flags().IntVar(&rolloverYear, "year", 0, "year being opened (default: current year)")
}
