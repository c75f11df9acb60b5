package repository

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SortChain orders transactions into replay order: transaction date, then
// creation time, then id as the final tiebreaker.
func SortChain(txs []*Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.TransactionDate.Equal(b.TransactionDate) {
			return a.TransactionDate.Before(b.TransactionDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Rebalance replays the chain from zero, rewriting balance_before and
// balance_after on every row in place. A carryover row restarts the chain:
// it restates the prior year's closing balance, so the running balance drops
// to the sum of rows already replayed on the carryover's own date. Rows
// entered on the rollover day before the rollover ran are kept; everything
// older is already contained in the carryover. Returns the final balance.
func Rebalance(txs []*Transaction) decimal.Decimal {
	SortChain(txs)

	balance := decimal.Zero
	dateSum := decimal.Zero
	var curDate time.Time
	for _, t := range txs {
		if !t.TransactionDate.Equal(curDate) {
			curDate = t.TransactionDate
			dateSum = decimal.Zero
		}
		if t.TransactionType == TxTypeCarryover {
			balance = dateSum
		}
		t.BalanceBefore = balance
		balance = balance.Add(t.Hours).Round(2)
		t.BalanceAfter = balance
		dateSum = dateSum.Add(t.Hours).Round(2)
	}

	return balance
}
