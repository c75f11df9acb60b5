package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/service"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
	"github.com/zeitwerk/zeitwerk-backend/pkg/httputil"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
)

// BalanceHandler handles balance, history and snapshot endpoints
type BalanceHandler struct {
	ledger     *service.LedgerService
	timesheet  *service.TimesheetService
	reconciler *service.Reconciler
	targets    *service.TargetCalculator
	snapshots  service.SnapshotStore
	logger     *logger.Logger
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(ledger *service.LedgerService, timesheet *service.TimesheetService, reconciler *service.Reconciler, targets *service.TargetCalculator, snapshots service.SnapshotStore, log *logger.Logger) *BalanceHandler {
	return &BalanceHandler{
		ledger:     ledger,
		timesheet:  timesheet,
		reconciler: reconciler,
		targets:    targets,
		snapshots:  snapshots,
		logger:     log,
	}
}

// BalanceResponse carries an employee's overtime balance
type BalanceResponse struct {
	EmployeeID string `json:"employee_id"`
	Balance    string `json:"balance"`
	AsOf       string `json:"as_of,omitempty"`
}

// GetBalance returns the current balance, or the balance as of ?as_of=date
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	if asOfParam := r.URL.Query().Get("as_of"); asOfParam != "" {
		asOf, err := parseDate("as_of", asOfParam)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		balance, err := h.ledger.BalanceAsOf(r.Context(), employeeID, asOf)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, BalanceResponse{
			EmployeeID: employeeID,
			Balance:    balance.StringFixed(2),
			AsOf:       asOf.Format(dateLayout),
		})
		return
	}

	balance, err := h.ledger.CurrentBalance(r.Context(), employeeID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, BalanceResponse{
		EmployeeID: employeeID,
		Balance:    balance.StringFixed(2),
	})
}

// GetHistory returns a page of the transaction history, newest first.
// Supports ?type, ?from and ?to filters besides ?limit and ?cursor.
func (h *BalanceHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cursor := r.URL.Query().Get("cursor")

	var filter repository.HistoryFilter
	if txType := r.URL.Query().Get("type"); txType != "" {
		if !repository.KnownTxType(txType) {
			httputil.Error(w, errors.BadRequest("unknown transaction type"))
			return
		}
		filter.TransactionType = txType
	}
	if fromParam := r.URL.Query().Get("from"); fromParam != "" {
		from, err := parseDate("from", fromParam)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		filter.From = from
	}
	if toParam := r.URL.Query().Get("to"); toParam != "" {
		to, err := parseDate("to", toParam)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		filter.To = to
	}

	page, err := h.ledger.History(r.Context(), employeeID, filter, limit, cursor)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, page.Transactions, &httputil.Meta{
		NextCursor: page.NextCursor,
	})
}

// ListPeriodBalances returns the cached snapshots of one period type
func (h *BalanceHandler) ListPeriodBalances(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	periodType := r.URL.Query().Get("period_type")
	switch periodType {
	case "":
		periodType = repository.PeriodMonth
	case repository.PeriodDay, repository.PeriodWeek, repository.PeriodMonth:
	default:
		httputil.Error(w, errors.BadRequest("period_type must be day, week or month"))
		return
	}

	balances, err := h.snapshots.ListForEmployee(r.Context(), employeeID, periodType)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, balances)
}

// TargetResponse carries the scheduled hours of a date range
type TargetResponse struct {
	EmployeeID  string `json:"employee_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	TargetHours string `json:"target_hours"`
}

// GetTargets returns the summed scheduled hours for ?from and ?to
func (h *BalanceHandler) GetTargets(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	from, err := parseDate("from", r.URL.Query().Get("from"))
	if err != nil {
		httputil.Error(w, err)
		return
	}
	to, err := parseDate("to", r.URL.Query().Get("to"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	target, err := h.targets.PeriodTarget(r.Context(), employeeID, from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, TargetResponse{
		EmployeeID:  employeeID,
		From:        from.Format(dateLayout),
		To:          to.Format(dateLayout),
		TargetHours: target.StringFixed(2),
	})
}

// EnsureBalances refreshes the snapshots through ?through=date (default today)
func (h *BalanceHandler) EnsureBalances(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	through := time.Now().UTC()
	if throughParam := r.URL.Query().Get("through"); throughParam != "" {
		var err error
		through, err = parseDate("through", throughParam)
		if err != nil {
			httputil.Error(w, err)
			return
		}
	}

	if err := h.timesheet.EnsureBalances(r.Context(), employeeID, through); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// VerifyPeriod checks a stored snapshot against the ledger
func (h *BalanceHandler) VerifyPeriod(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	periodType := chi.URLParam(r, "periodType")
	periodKey := chi.URLParam(r, "periodKey")

	if err := h.reconciler.VerifyPeriod(r.Context(), employeeID, periodType, periodKey); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"status": "consistent"})
}

// Recalculate is the repair action: full rebuild of ledger and snapshots
func (h *BalanceHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	balance, err := h.timesheet.ForceRecalculate(r.Context(), employeeID, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, BalanceResponse{
		EmployeeID: employeeID,
		Balance:    balance.StringFixed(2),
	})
}

// RecalculateAll rebuilds every active employee. Partial failures yield 207.
func (h *BalanceHandler) RecalculateAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.timesheet.RecalculateAll(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil && report == nil {
		httputil.Error(w, err)
		return
	}

	status := http.StatusOK
	if report.HasFailures() {
		status = http.StatusMultiStatus
	}
	httputil.JSON(w, status, report)
}
