package repository

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/pkg/database"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
)

// Transaction types
const (
	TxTypeEarned           = "earned"
	TxTypeVacationCredit   = "vacation_credit"
	TxTypeSickCredit       = "sick_credit"
	TxTypeOvertimeCredit   = "overtime_comp_credit"
	TxTypeSpecialCredit    = "special_credit"
	TxTypeUnpaidAdjustment = "unpaid_adjustment"
	TxTypeCorrection       = "correction"
	TxTypeCarryover        = "carryover"
)

// Reference types
const (
	RefTypeTimeEntry  = "time_entry"
	RefTypeAbsence    = "absence"
	RefTypeCorrection = "correction"
	RefTypeWorkday    = "workday"
	RefTypeRollover   = "rollover"
)

// Transaction is one row of the append-only overtime ledger. Hours are
// overtime deltas: the sum over any period equals actual minus target for
// that period.
type Transaction struct {
	ID              string          `db:"id" json:"id"`
	EmployeeID      string          `db:"employee_id" json:"employee_id"`
	TransactionDate time.Time       `db:"transaction_date" json:"transaction_date"`
	TransactionType string          `db:"transaction_type" json:"transaction_type"`
	Hours           decimal.Decimal `db:"hours" json:"hours"`
	BalanceBefore   decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after" json:"balance_after"`
	ReferenceType   string          `db:"reference_type" json:"reference_type"`
	ReferenceID     string          `db:"reference_id" json:"reference_id"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	CreatedBy       *string         `db:"created_by" json:"created_by,omitempty"`
}

// HistoryPage is one keyset-paginated page of ledger history, newest first
type HistoryPage struct {
	Transactions []*Transaction `json:"transactions"`
	NextCursor   string         `json:"next_cursor,omitempty"`
}

// LedgerRepository handles overtime transaction persistence
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const txColumns = `id, employee_id, transaction_date, transaction_type, hours,
		       balance_before, balance_after, reference_type, reference_id,
		       created_at, created_by`

// InsertTx inserts a transaction within an existing DB transaction.
// Balance fields are written as passed; callers replay the chain afterwards.
func (r *LedgerRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	query := `
		INSERT INTO overtime_transactions (
			id, employee_id, transaction_date, transaction_type, hours,
			balance_before, balance_after, reference_type, reference_id, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	err := tx.QueryRowxContext(ctx, query,
		t.ID, t.EmployeeID, Midnight(t.TransactionDate), t.TransactionType, t.Hours,
		t.BalanceBefore, t.BalanceAfter, t.ReferenceType, t.ReferenceID, t.CreatedBy,
	).Scan(&t.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	return nil
}

// ExistsByNaturalKey reports whether a transaction with the given natural key
// already exists. Used for idempotency checks before batch inserts.
func (r *LedgerRepository) ExistsByNaturalKey(ctx context.Context, employeeID string, date time.Time, txType, refType, refID string) (bool, error) {
	var count int

	query := `
		SELECT COUNT(*) FROM overtime_transactions
		WHERE employee_id = $1 AND transaction_date = $2
		  AND transaction_type = $3 AND reference_type = $4 AND reference_id = $5
	`
	err := r.db.GetContext(ctx, &count, query, employeeID, Midnight(date), txType, refType, refID)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// DeleteDerivedBetweenTx removes all derived rows (earned, credits, unpaid
// adjustments) of every day in [from, to]. Corrections and carryover survive.
func (r *LedgerRepository) DeleteDerivedBetweenTx(ctx context.Context, tx *sqlx.Tx, employeeID string, from, to time.Time) error {
	query := `
		DELETE FROM overtime_transactions
		WHERE employee_id = $1 AND transaction_date BETWEEN $2 AND $3
		  AND transaction_type NOT IN ('correction', 'carryover')
	`
	_, err := tx.ExecContext(ctx, query, employeeID, Midnight(from), Midnight(to))
	return err
}

// DeleteByReferenceTx removes all rows attached to a reference
func (r *LedgerRepository) DeleteByReferenceTx(ctx context.Context, tx *sqlx.Tx, employeeID, refType, refID string) error {
	query := `
		DELETE FROM overtime_transactions
		WHERE employee_id = $1 AND reference_type = $2 AND reference_id = $3
	`
	_, err := tx.ExecContext(ctx, query, employeeID, refType, refID)
	return err
}

// DeleteAllDerivedTx removes every derived row of an employee across all
// dates. Corrections and carryover survive; a full rebuild follows.
func (r *LedgerRepository) DeleteAllDerivedTx(ctx context.Context, tx *sqlx.Tx, employeeID string) error {
	query := `
		DELETE FROM overtime_transactions
		WHERE employee_id = $1
		  AND transaction_type NOT IN ('correction', 'carryover')
	`
	_, err := tx.ExecContext(ctx, query, employeeID)
	return err
}

// ListAllTx loads the full chain of an employee in replay order, locked
// against concurrent writers for the duration of the DB transaction.
func (r *LedgerRepository) ListAllTx(ctx context.Context, tx *sqlx.Tx, employeeID string) ([]*Transaction, error) {
	var txs []*Transaction

	query := `
		SELECT ` + txColumns + `
		FROM overtime_transactions
		WHERE employee_id = $1
		ORDER BY transaction_date, created_at, id
		FOR UPDATE
	`
	if err := tx.SelectContext(ctx, &txs, query, employeeID); err != nil {
		return nil, err
	}

	return txs, nil
}

// UpdateBalancesTx rewrites the running balance fields of one row
func (r *LedgerRepository) UpdateBalancesTx(ctx context.Context, tx *sqlx.Tx, id string, before, after decimal.Decimal) error {
	query := `
		UPDATE overtime_transactions
		SET balance_before = $2, balance_after = $3
		WHERE id = $1
	`
	_, err := tx.ExecContext(ctx, query, id, before, after)
	return err
}

// ReplaceRange atomically swaps the derived rows of every day in [from, to]
// and replays the chain. A multi-day swap commits as one unit; a failure on
// any day leaves the prior chain intact. Correction and carryover rows in the
// range are untouched.
func (r *LedgerRepository) ReplaceRange(ctx context.Context, employeeID string, from, to time.Time, rows []*Transaction) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.DeleteDerivedBetweenTx(ctx, tx, employeeID, from, to); err != nil {
			return err
		}
		for _, t := range rows {
			if err := r.InsertTx(ctx, tx, t); err != nil {
				return err
			}
		}
		return r.replayTx(ctx, tx, employeeID)
	})
}

// ReplaceDayRows swaps the derived rows of one calendar day
func (r *LedgerRepository) ReplaceDayRows(ctx context.Context, employeeID string, day time.Time, rows []*Transaction) error {
	return r.ReplaceRange(ctx, employeeID, day, day, rows)
}

// RebuildDerived atomically replaces all derived rows of an employee and
// replays the chain. Used by full recomputation.
func (r *LedgerRepository) RebuildDerived(ctx context.Context, employeeID string, derived []*Transaction) (decimal.Decimal, int, error) {
	var balance decimal.Decimal
	var count int

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.DeleteAllDerivedTx(ctx, tx, employeeID); err != nil {
			return err
		}
		for _, t := range derived {
			if err := r.InsertTx(ctx, tx, t); err != nil {
				return err
			}
		}

		chain, err := r.ListAllTx(ctx, tx, employeeID)
		if err != nil {
			return err
		}
		balance = Rebalance(chain)
		count = len(chain)

		return r.persistBalances(ctx, tx, chain)
	})
	if err != nil {
		return decimal.Zero, 0, err
	}

	return balance, count, nil
}

// AppendRows atomically inserts rows and replays the chain
func (r *LedgerRepository) AppendRows(ctx context.Context, employeeID string, rows []*Transaction) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, t := range rows {
			if err := r.InsertTx(ctx, tx, t); err != nil {
				return err
			}
		}
		return r.replayTx(ctx, tx, employeeID)
	})
}

// RemoveByReference atomically removes all rows of a reference and replays
func (r *LedgerRepository) RemoveByReference(ctx context.Context, employeeID, refType, refID string) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.DeleteByReferenceTx(ctx, tx, employeeID, refType, refID); err != nil {
			return err
		}
		return r.replayTx(ctx, tx, employeeID)
	})
}

// replayTx reloads the chain, replays it from zero, and persists the running
// balances.
func (r *LedgerRepository) replayTx(ctx context.Context, tx *sqlx.Tx, employeeID string) error {
	chain, err := r.ListAllTx(ctx, tx, employeeID)
	if err != nil {
		return err
	}
	Rebalance(chain)
	return r.persistBalances(ctx, tx, chain)
}

func (r *LedgerRepository) persistBalances(ctx context.Context, tx *sqlx.Tx, chain []*Transaction) error {
	for _, t := range chain {
		if err := r.UpdateBalancesTx(ctx, tx, t.ID, t.BalanceBefore, t.BalanceAfter); err != nil {
			return err
		}
	}
	return nil
}

// CurrentBalance returns the employee's overall balance: the balance_after of
// the last row in replay order, or zero for an empty ledger.
func (r *LedgerRepository) CurrentBalance(ctx context.Context, employeeID string) (decimal.Decimal, error) {
	var balance decimal.Decimal

	query := `
		SELECT balance_after FROM overtime_transactions
		WHERE employee_id = $1
		ORDER BY transaction_date DESC, created_at DESC, id DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &balance, query, employeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	return balance, nil
}

// BalanceAsOf returns the balance after the last transaction dated on or
// before the given date, or zero when none exist. Reading balance_after
// instead of summing keeps year restarts at carryover rows intact.
func (r *LedgerRepository) BalanceAsOf(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal

	query := `
		SELECT balance_after FROM overtime_transactions
		WHERE employee_id = $1 AND transaction_date <= $2
		ORDER BY transaction_date DESC, created_at DESC, id DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &balance, query, employeeID, Midnight(asOf))
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	return balance, nil
}

// SumCorrections sums the correction-type hours dated within [from, to]
func (r *LedgerRepository) SumCorrections(ctx context.Context, employeeID string, from, to time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal

	query := `
		SELECT COALESCE(SUM(hours), 0) FROM overtime_transactions
		WHERE employee_id = $1 AND transaction_date BETWEEN $2 AND $3
		  AND transaction_type = 'correction'
	`
	err := r.db.GetContext(ctx, &sum, query, employeeID, Midnight(from), Midnight(to))
	if err != nil {
		return decimal.Zero, err
	}

	return sum, nil
}

// SumForPeriod sums ledger hours in [from, to]. Carryover rows are excluded
// when excludeCarryover is set; period overtime excludes prior-year transfer.
func (r *LedgerRepository) SumForPeriod(ctx context.Context, employeeID string, from, to time.Time, excludeCarryover bool) (decimal.Decimal, error) {
	var sum decimal.Decimal

	query := `
		SELECT COALESCE(SUM(hours), 0) FROM overtime_transactions
		WHERE employee_id = $1 AND transaction_date BETWEEN $2 AND $3
	`
	args := []interface{}{employeeID, Midnight(from), Midnight(to)}
	if excludeCarryover {
		query += ` AND transaction_type != 'carryover'`
	}

	err := r.db.GetContext(ctx, &sum, query, args...)
	if err != nil {
		return decimal.Zero, err
	}

	return sum, nil
}

// HistoryFilter narrows a ledger history query. Zero values mean no filter.
type HistoryFilter struct {
	TransactionType string
	From            time.Time
	To              time.Time
}

// KnownTxType reports whether s is one of the ledger transaction types
func KnownTxType(s string) bool {
	switch s {
	case TxTypeEarned, TxTypeVacationCredit, TxTypeSickCredit, TxTypeOvertimeCredit,
		TxTypeSpecialCredit, TxTypeUnpaidAdjustment, TxTypeCorrection, TxTypeCarryover:
		return true
	}
	return false
}

// History returns a keyset-paginated page of the ledger, newest first.
// The cursor encodes (date, created_at, id) of the last row of the prior page.
func (r *LedgerRepository) History(ctx context.Context, employeeID string, filter HistoryFilter, limit int, cursor string) (*HistoryPage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT ` + txColumns + `
		FROM overtime_transactions
		WHERE employee_id = $1
	`
	args := []interface{}{employeeID}

	if filter.TransactionType != "" {
		args = append(args, filter.TransactionType)
		query += fmt.Sprintf(` AND transaction_type = $%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, Midnight(filter.From))
		query += fmt.Sprintf(` AND transaction_date >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, Midnight(filter.To))
		query += fmt.Sprintf(` AND transaction_date <= $%d`, len(args))
	}

	if cursor != "" {
		curDate, curCreated, curID, err := decodeCursor(cursor)
		if err != nil {
			return nil, errors.BadRequest("invalid history cursor")
		}
		query += fmt.Sprintf(` AND (transaction_date, created_at, id) < ($%d, $%d, $%d)`,
			len(args)+1, len(args)+2, len(args)+3)
		args = append(args, curDate, curCreated, curID)
	}

	query += fmt.Sprintf(`
		ORDER BY transaction_date DESC, created_at DESC, id DESC
		LIMIT %d
	`, limit+1)

	var txs []*Transaction
	if err := r.db.SelectContext(ctx, &txs, query, args...); err != nil {
		return nil, err
	}

	page := &HistoryPage{}
	if len(txs) > limit {
		txs = txs[:limit]
		last := txs[len(txs)-1]
		page.NextCursor = encodeCursor(last.TransactionDate, last.CreatedAt, last.ID)
	}
	page.Transactions = txs

	return page, nil
}

func encodeCursor(date, createdAt time.Time, id string) string {
	raw := fmt.Sprintf("%s|%d|%s", date.Format("2006-01-02"), createdAt.UnixNano(), id)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, time.Time, string, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}

	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 {
		return time.Time{}, time.Time{}, "", fmt.Errorf("malformed cursor")
	}

	date, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}

	nanos, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}

	return date, time.Unix(0, nanos).UTC(), parts[2], nil
}
