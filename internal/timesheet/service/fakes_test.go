package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
)

// In-memory store implementations backing the calculation engine tests.
// They mirror the semantics of the sqlx repositories, including natural key
// uniqueness and chain replay on every mutation.

type fakeEmployeeStore struct {
	employees map[string]*repository.Employee
	overrides map[string][]*repository.ScheduleOverride
}

func newFakeEmployeeStore() *fakeEmployeeStore {
	return &fakeEmployeeStore{
		employees: make(map[string]*repository.Employee),
		overrides: make(map[string][]*repository.ScheduleOverride),
	}
}

func (f *fakeEmployeeStore) GetByID(ctx context.Context, id string) (*repository.Employee, error) {
	emp, ok := f.employees[id]
	if !ok {
		return nil, errors.NotFound("employee")
	}
	return emp, nil
}

func (f *fakeEmployeeStore) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for id, emp := range f.employees {
		if emp.Status == "active" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeEmployeeStore) GetScheduleOverrides(ctx context.Context, employeeID string) ([]*repository.ScheduleOverride, error) {
	return f.overrides[employeeID], nil
}

type fakeEntryStore struct {
	entries []*repository.TimeEntry
}

func (f *fakeEntryStore) GetByID(ctx context.Context, id string) (*repository.TimeEntry, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, errors.NotFound("time entry")
}

func (f *fakeEntryStore) ListByEmployeeAndDate(ctx context.Context, employeeID string, day time.Time) ([]*repository.TimeEntry, error) {
	var out []*repository.TimeEntry
	for _, e := range f.entries {
		if e.EmployeeID == employeeID && repository.Midnight(e.EntryDate).Equal(repository.Midnight(day)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEntryStore) ListByEmployeeBetween(ctx context.Context, employeeID string, from, to time.Time) ([]*repository.TimeEntry, error) {
	var out []*repository.TimeEntry
	for _, e := range f.entries {
		d := repository.Midnight(e.EntryDate)
		if e.EmployeeID == employeeID && !d.Before(repository.Midnight(from)) && !d.After(repository.Midnight(to)) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeAbsenceStore struct {
	absences []*repository.Absence
}

func (f *fakeAbsenceStore) GetByID(ctx context.Context, id string) (*repository.Absence, error) {
	for _, a := range f.absences {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errors.NotFound("absence")
}

func (f *fakeAbsenceStore) ListApprovedCovering(ctx context.Context, employeeID string, from, to time.Time) ([]*repository.Absence, error) {
	var out []*repository.Absence
	for _, a := range f.absences {
		if a.EmployeeID != employeeID || a.Status != repository.AbsenceStatusApproved {
			continue
		}
		if repository.Midnight(a.StartDate).After(repository.Midnight(to)) ||
			repository.Midnight(a.EndDate).Before(repository.Midnight(from)) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

type fakeHolidayStore struct {
	holidays map[string]bool
}

func (f *fakeHolidayStore) HolidaySet(ctx context.Context, region string, from, to time.Time) (map[string]bool, error) {
	if f.holidays == nil {
		return map[string]bool{}, nil
	}
	return f.holidays, nil
}

type fakeLedgerStore struct {
	rows []*repository.Transaction
	seq  int64

	replaceRanges int
}

func (f *fakeLedgerStore) insert(t *repository.Transaction) error {
	for _, existing := range f.rows {
		if existing.EmployeeID == t.EmployeeID &&
			repository.Midnight(existing.TransactionDate).Equal(repository.Midnight(t.TransactionDate)) &&
			existing.TransactionType == t.TransactionType &&
			existing.ReferenceType == t.ReferenceType &&
			existing.ReferenceID == t.ReferenceID {
			return errors.Conflict("a ledger transaction for this reference already exists")
		}
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	f.seq++
	t.TransactionDate = repository.Midnight(t.TransactionDate)
	t.CreatedAt = time.Unix(0, f.seq).UTC()
	f.rows = append(f.rows, t)
	return nil
}

func (f *fakeLedgerStore) replay(employeeID string) decimal.Decimal {
	chain := f.chain(employeeID)
	return repository.Rebalance(chain)
}

func (f *fakeLedgerStore) chain(employeeID string) []*repository.Transaction {
	var chain []*repository.Transaction
	for _, t := range f.rows {
		if t.EmployeeID == employeeID {
			chain = append(chain, t)
		}
	}
	repository.SortChain(chain)
	return chain
}

func isDerived(t *repository.Transaction) bool {
	return t.TransactionType != repository.TxTypeCorrection && t.TransactionType != repository.TxTypeCarryover
}

func (f *fakeLedgerStore) deleteWhere(match func(*repository.Transaction) bool) {
	kept := f.rows[:0]
	for _, t := range f.rows {
		if !match(t) {
			kept = append(kept, t)
		}
	}
	f.rows = kept
}

func (f *fakeLedgerStore) ReplaceRange(ctx context.Context, employeeID string, from, to time.Time, rows []*repository.Transaction) error {
	f.replaceRanges++

	// all-or-nothing, like the DB transaction
	snapshot := append([]*repository.Transaction(nil), f.rows...)

	lo, hi := repository.Midnight(from), repository.Midnight(to)
	f.deleteWhere(func(t *repository.Transaction) bool {
		return t.EmployeeID == employeeID && !t.TransactionDate.Before(lo) && !t.TransactionDate.After(hi) && isDerived(t)
	})
	for _, t := range rows {
		if err := f.insert(t); err != nil {
			f.rows = snapshot
			return err
		}
	}
	f.replay(employeeID)
	return nil
}

func (f *fakeLedgerStore) RebuildDerived(ctx context.Context, employeeID string, derived []*repository.Transaction) (decimal.Decimal, int, error) {
	f.deleteWhere(func(t *repository.Transaction) bool {
		return t.EmployeeID == employeeID && isDerived(t)
	})
	for _, t := range derived {
		if err := f.insert(t); err != nil {
			return decimal.Zero, 0, err
		}
	}
	balance := f.replay(employeeID)
	return balance, len(f.chain(employeeID)), nil
}

func (f *fakeLedgerStore) AppendRows(ctx context.Context, employeeID string, rows []*repository.Transaction) error {
	for _, t := range rows {
		if err := f.insert(t); err != nil {
			return err
		}
	}
	f.replay(employeeID)
	return nil
}

func (f *fakeLedgerStore) RemoveByReference(ctx context.Context, employeeID, refType, refID string) error {
	f.deleteWhere(func(t *repository.Transaction) bool {
		return t.EmployeeID == employeeID && t.ReferenceType == refType && t.ReferenceID == refID
	})
	f.replay(employeeID)
	return nil
}

func (f *fakeLedgerStore) ExistsByNaturalKey(ctx context.Context, employeeID string, date time.Time, txType, refType, refID string) (bool, error) {
	for _, t := range f.rows {
		if t.EmployeeID == employeeID &&
			t.TransactionDate.Equal(repository.Midnight(date)) &&
			t.TransactionType == txType && t.ReferenceType == refType && t.ReferenceID == refID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerStore) CurrentBalance(ctx context.Context, employeeID string) (decimal.Decimal, error) {
	chain := f.chain(employeeID)
	if len(chain) == 0 {
		return decimal.Zero, nil
	}
	return chain[len(chain)-1].BalanceAfter, nil
}

func (f *fakeLedgerStore) BalanceAsOf(ctx context.Context, employeeID string, asOf time.Time) (decimal.Decimal, error) {
	chain := f.chain(employeeID)
	balance := decimal.Zero
	for _, t := range chain {
		if t.TransactionDate.After(repository.Midnight(asOf)) {
			break
		}
		balance = t.BalanceAfter
	}
	return balance, nil
}

func (f *fakeLedgerStore) SumForPeriod(ctx context.Context, employeeID string, from, to time.Time, excludeCarryover bool) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range f.chain(employeeID) {
		if t.TransactionDate.Before(repository.Midnight(from)) || t.TransactionDate.After(repository.Midnight(to)) {
			continue
		}
		if excludeCarryover && t.TransactionType == repository.TxTypeCarryover {
			continue
		}
		sum = sum.Add(t.Hours)
	}
	return sum, nil
}

func (f *fakeLedgerStore) SumCorrections(ctx context.Context, employeeID string, from, to time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range f.chain(employeeID) {
		if t.TransactionType != repository.TxTypeCorrection {
			continue
		}
		if t.TransactionDate.Before(repository.Midnight(from)) || t.TransactionDate.After(repository.Midnight(to)) {
			continue
		}
		sum = sum.Add(t.Hours)
	}
	return sum, nil
}

func (f *fakeLedgerStore) History(ctx context.Context, employeeID string, filter repository.HistoryFilter, limit int, cursor string) (*repository.HistoryPage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	chain := f.chain(employeeID)

	// newest first
	var txs []*repository.Transaction
	for i := len(chain) - 1; i >= 0; i-- {
		t := chain[i]
		if filter.TransactionType != "" && t.TransactionType != filter.TransactionType {
			continue
		}
		if !filter.From.IsZero() && t.TransactionDate.Before(repository.Midnight(filter.From)) {
			continue
		}
		if !filter.To.IsZero() && t.TransactionDate.After(repository.Midnight(filter.To)) {
			continue
		}
		txs = append(txs, t)
	}

	start := 0
	if cursor != "" {
		for i, t := range txs {
			if t.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	txs = txs[start:]

	page := &repository.HistoryPage{}
	if len(txs) > limit {
		txs = txs[:limit]
		page.NextCursor = txs[len(txs)-1].ID
	}
	page.Transactions = txs
	return page, nil
}

type fakeSnapshotStore struct {
	snapshots map[string]*repository.PeriodBalance
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[string]*repository.PeriodBalance)}
}

func snapKey(employeeID, periodType, periodKey string) string {
	return strings.Join([]string{employeeID, periodType, periodKey}, "|")
}

func (f *fakeSnapshotStore) Upsert(ctx context.Context, pb *repository.PeriodBalance) error {
	if pb.ID == "" {
		pb.ID = uuid.New().String()
	}
	clone := *pb
	f.snapshots[snapKey(pb.EmployeeID, pb.PeriodType, pb.PeriodKey)] = &clone
	return nil
}

func (f *fakeSnapshotStore) Get(ctx context.Context, employeeID, periodType, periodKey string) (*repository.PeriodBalance, error) {
	pb, ok := f.snapshots[snapKey(employeeID, periodType, periodKey)]
	if !ok {
		return nil, nil
	}
	clone := *pb
	return &clone, nil
}

func (f *fakeSnapshotStore) ListForEmployee(ctx context.Context, employeeID, periodType string) ([]*repository.PeriodBalance, error) {
	var out []*repository.PeriodBalance
	for _, pb := range f.snapshots {
		if pb.EmployeeID == employeeID && pb.PeriodType == periodType {
			clone := *pb
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodKey < out[j].PeriodKey })
	return out, nil
}

func (f *fakeSnapshotStore) FlagVerificationPending(ctx context.Context, employeeID, periodType, periodKey string) error {
	if pb, ok := f.snapshots[snapKey(employeeID, periodType, periodKey)]; ok {
		pb.VerificationPending = true
	}
	return nil
}

func (f *fakeSnapshotStore) DeleteForEmployee(ctx context.Context, employeeID string) error {
	for key, pb := range f.snapshots {
		if pb.EmployeeID == employeeID {
			delete(f.snapshots, key)
		}
	}
	return nil
}

type fakeVacationStore struct {
	balances map[string]*repository.VacationBalance
}

func newFakeVacationStore() *fakeVacationStore {
	return &fakeVacationStore{balances: make(map[string]*repository.VacationBalance)}
}

func vacKey(employeeID string, year int) string {
	return fmt.Sprintf("%s|%d", employeeID, year)
}

func (f *fakeVacationStore) Get(ctx context.Context, employeeID string, year int) (*repository.VacationBalance, error) {
	vb, ok := f.balances[vacKey(employeeID, year)]
	if !ok {
		return nil, nil
	}
	clone := *vb
	return &clone, nil
}

func (f *fakeVacationStore) Upsert(ctx context.Context, vb *repository.VacationBalance) error {
	if vb.ID == "" {
		vb.ID = uuid.New().String()
	}
	clone := *vb
	f.balances[vacKey(vb.EmployeeID, vb.Year)] = &clone
	return nil
}

func (f *fakeVacationStore) AddTaken(ctx context.Context, employeeID string, year int, days decimal.Decimal) error {
	if vb, ok := f.balances[vacKey(employeeID, year)]; ok {
		vb.Taken = vb.Taken.Add(days)
	}
	return nil
}

type fakeCorrectionStore struct {
	corrections []*repository.Correction
}

func (f *fakeCorrectionStore) Create(ctx context.Context, c *repository.Correction) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CorrectionType == "" {
		c.CorrectionType = "manual"
	}
	c.CreatedAt = time.Now().UTC()
	f.corrections = append(f.corrections, c)
	return nil
}

func (f *fakeCorrectionStore) GetByID(ctx context.Context, id string) (*repository.Correction, error) {
	for _, c := range f.corrections {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errors.NotFound("correction")
}

func (f *fakeCorrectionStore) ListByEmployee(ctx context.Context, employeeID string) ([]*repository.Correction, error) {
	var out []*repository.Correction
	for _, c := range f.corrections {
		if c.EmployeeID == employeeID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCorrectionStore) MarkReversed(ctx context.Context, id string) error {
	for _, c := range f.corrections {
		if c.ID == id && c.DeletedAt == nil {
			now := time.Now().UTC()
			c.DeletedAt = &now
			return nil
		}
	}
	return errors.NotFound("correction")
}
