package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/service"
	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
	"github.com/zeitwerk/zeitwerk-backend/pkg/httputil"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
)

// EntryHandler handles time entry endpoints
type EntryHandler struct {
	service *service.TimesheetService
	logger  *logger.Logger
}

// NewEntryHandler creates a new time entry handler
func NewEntryHandler(svc *service.TimesheetService, log *logger.Logger) *EntryHandler {
	return &EntryHandler{
		service: svc,
		logger:  log,
	}
}

// EntryRequest is the request structure for creating or updating a time entry
type EntryRequest struct {
	EmployeeID   string  `json:"employee_id" validate:"required,uuid"`
	Date         string  `json:"date" validate:"required"`
	StartTime    string  `json:"start_time" validate:"required"`
	EndTime      string  `json:"end_time" validate:"required"`
	BreakMinutes int     `json:"break_minutes" validate:"gte=0,lte=480"`
	Location     *string `json:"location,omitempty"`
	Note         *string `json:"note,omitempty"`
}

func (req *EntryRequest) toEntry() (*repository.TimeEntry, error) {
	day, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	start, err := parseClock("start_time", req.StartTime, day)
	if err != nil {
		return nil, err
	}
	end, err := parseClock("end_time", req.EndTime, day)
	if err != nil {
		return nil, err
	}

	return &repository.TimeEntry{
		EmployeeID:   req.EmployeeID,
		EntryDate:    day,
		StartTime:    start,
		EndTime:      end,
		BreakMinutes: req.BreakMinutes,
		Location:     req.Location,
		Note:         req.Note,
	}, nil
}

// Create records a new time entry
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	entry, err := req.toEntry()
	if err != nil {
		httputil.Error(w, err)
		return
	}
	entry.CreatedBy = actorID(r)

	if err := h.service.CreateEntry(r.Context(), entry); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, entry)
}

// Get returns one time entry
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entry)
}

// Update rewrites a time entry
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	entry, err := req.toEntry()
	if err != nil {
		httputil.Error(w, err)
		return
	}
	entry.ID = chi.URLParam(r, "id")
	entry.UpdatedBy = actorID(r)

	if err := h.service.UpdateEntry(r.Context(), entry); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entry)
}

// Delete removes a time entry
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ListByEmployee returns the entries of an employee in a date range
func (h *EntryHandler) ListByEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	fromParam := r.URL.Query().Get("from")
	toParam := r.URL.Query().Get("to")
	if fromParam == "" || toParam == "" {
		httputil.Error(w, errors.BadRequest("from and to query parameters are required"))
		return
	}

	from, err := parseDate("from", fromParam)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	to, err := parseDate("to", toParam)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	entries, err := h.service.ListEntries(r.Context(), employeeID, from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}
