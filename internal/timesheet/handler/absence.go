package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/repository"
	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/service"
	"github.com/zeitwerk/zeitwerk-backend/pkg/httputil"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
)

// AbsenceHandler handles absence request endpoints
type AbsenceHandler struct {
	service *service.TimesheetService
	logger  *logger.Logger
}

// NewAbsenceHandler creates a new absence handler
func NewAbsenceHandler(svc *service.TimesheetService, log *logger.Logger) *AbsenceHandler {
	return &AbsenceHandler{
		service: svc,
		logger:  log,
	}
}

// CreateAbsenceRequest is the request structure for filing an absence
type CreateAbsenceRequest struct {
	EmployeeID   string   `json:"employee_id" validate:"required,uuid"`
	AbsenceType  string   `json:"absence_type" validate:"required,oneof=vacation sick unpaid overtime_comp special"`
	StartDate    string   `json:"start_date" validate:"required"`
	EndDate      string   `json:"end_date" validate:"required"`
	DaysRequired *float64 `json:"days_required,omitempty" validate:"omitempty,gt=0"`
	Reason       *string  `json:"reason,omitempty"`
}

// Create files a new absence request
func (h *AbsenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAbsenceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	endDate, err := parseDate("end_date", req.EndDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	absence := &repository.Absence{
		EmployeeID:  req.EmployeeID,
		AbsenceType: req.AbsenceType,
		StartDate:   startDate,
		EndDate:     endDate,
		Reason:      req.Reason,
		CreatedBy:   actorID(r),
	}
	if req.DaysRequired != nil {
		days := decimal.NewFromFloat(*req.DaysRequired)
		absence.DaysRequired = &days
	}

	if err := h.service.CreateAbsence(r.Context(), absence); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, absence)
}

// Get returns one absence request
func (h *AbsenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	absence, err := h.service.GetAbsence(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, absence)
}

// Approve approves a pending absence and reconciles the covered days
func (h *AbsenceHandler) Approve(w http.ResponseWriter, r *http.Request) {
	absence, err := h.service.ApproveAbsence(r.Context(), chi.URLParam(r, "id"), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, absence)
}

// RejectAbsenceRequest carries the rejection reason
type RejectAbsenceRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Reject rejects a pending absence
func (h *AbsenceHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectAbsenceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	absence, err := h.service.RejectAbsence(r.Context(), chi.URLParam(r, "id"), httputil.GetUserID(r.Context()), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, absence)
}

// Delete withdraws an absence request
func (h *AbsenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAbsence(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
