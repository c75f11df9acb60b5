package handler

import (
	"net/http"

	"github.com/zeitwerk/zeitwerk-backend/internal/timesheet/service"
	"github.com/zeitwerk/zeitwerk-backend/pkg/httputil"
	"github.com/zeitwerk/zeitwerk-backend/pkg/logger"
)

// RolloverHandler handles year-end rollover endpoints
type RolloverHandler struct {
	service *service.RolloverService
	logger  *logger.Logger
}

// NewRolloverHandler creates a new rollover handler
func NewRolloverHandler(svc *service.RolloverService, log *logger.Logger) *RolloverHandler {
	return &RolloverHandler{
		service: svc,
		logger:  log,
	}
}

// RolloverRequest names the year being opened
type RolloverRequest struct {
	Year int `json:"year" validate:"required,gte=2000,lte=2100"`
}

// Perform runs the year-end rollover batch. Partial failures yield 207.
func (h *RolloverHandler) Perform(w http.ResponseWriter, r *http.Request) {
	var req RolloverRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	report, err := h.service.PerformRollover(r.Context(), req.Year, httputil.GetUserID(r.Context()))
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
