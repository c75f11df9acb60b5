package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check month balances against the ledger",
	Long:  `Compares every stored month balance with a fresh ledger sum. Disagreements beyond tolerance are flagged verification_pending; run recalculate to repair them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.close()

		ctx := context.Background()
		ids, err := e.employees.ListActiveIDs(ctx)
		if err != nil {
			return err
		}

		flagged := 0
		for _, employeeID := range ids {
			err := e.reconciler.VerifyMonths(ctx, employeeID)
			if err == nil {
				continue
			}
			if errors.Is(err, errors.ErrIntegrity) {
				flagged++
				fmt.Printf("  %s: %v\n", employeeID, err)
				continue
			}
			return err
		}

		fmt.Printf("verified %d employees, %d flagged\n", len(ids), flagged)
		if flagged > 0 {
			return fmt.Errorf("%d employees have inconsistent balances", flagged)
		}
		return nil
	},
}
