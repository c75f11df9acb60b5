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

// CorrectionHandler handles manual balance correction endpoints
type CorrectionHandler struct {
	service *service.CorrectionService
	logger  *logger.Logger
}

// NewCorrectionHandler creates a new correction handler
func NewCorrectionHandler(svc *service.CorrectionService, log *logger.Logger) *CorrectionHandler {
	return &CorrectionHandler{
		service: svc,
		logger:  log,
	}
}

// CreateCorrectionRequest is the request structure for a manual correction
type CreateCorrectionRequest struct {
	EmployeeID     string  `json:"employee_id" validate:"required,uuid"`
	Date           string  `json:"date" validate:"required"`
	Hours          float64 `json:"hours" validate:"required"`
	Reason         string  `json:"reason" validate:"required,min=10"`
	CorrectionType string  `json:"correction_type,omitempty" validate:"omitempty,oneof=manual payout import"`
}

// Create applies a manual correction to the ledger
func (h *CorrectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCorrectionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	date, err := parseDate("date", req.Date)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	correction := &repository.Correction{
		EmployeeID:     req.EmployeeID,
		CorrectionDate: date,
		Hours:          decimal.NewFromFloat(req.Hours),
		CorrectionType: req.CorrectionType,
		Reason:         req.Reason,
		CreatedBy:      actorID(r),
	}

	if err := h.service.Create(r.Context(), correction); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, correction)
}

// Get returns one correction, including reversed ones
func (h *CorrectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	correction, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, correction)
}

// ListByEmployee returns the full correction audit trail of an employee
func (h *CorrectionHandler) ListByEmployee(w http.ResponseWriter, r *http.Request) {
	corrections, err := h.service.List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, corrections)
}

// Delete reverses a correction's ledger effect. The audit record stays.
func (h *CorrectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reverse(r.Context(), chi.URLParam(r, "id"), httputil.GetUserID(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
