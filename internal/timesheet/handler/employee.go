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

// EmployeeHandler handles employee endpoints
type EmployeeHandler struct {
	service *service.EmployeeService
	logger  *logger.Logger
}

// NewEmployeeHandler creates a new employee handler
func NewEmployeeHandler(svc *service.EmployeeService, log *logger.Logger) *EmployeeHandler {
	return &EmployeeHandler{
		service: svc,
		logger:  log,
	}
}

// EmployeeRequest is the request structure for creating or updating an employee
type EmployeeRequest struct {
	EmployeeNumber  string  `json:"employee_number" validate:"required"`
	FirstName       string  `json:"first_name" validate:"required"`
	LastName        string  `json:"last_name" validate:"required"`
	Email           string  `json:"email" validate:"required,email"`
	WeeklyHours     float64 `json:"weekly_hours" validate:"gte=0,lte=80"`
	HolidayRegion   string  `json:"holiday_region" validate:"required"`
	HireDate        string  `json:"hire_date" validate:"required"`
	TerminationDate *string `json:"termination_date,omitempty"`
	Status          string  `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

func (req *EmployeeRequest) toEmployee() (*repository.Employee, error) {
	hireDate, err := parseDate("hire_date", req.HireDate)
	if err != nil {
		return nil, err
	}
	terminationDate, err := parseOptionalDate("termination_date", req.TerminationDate)
	if err != nil {
		return nil, err
	}

	return &repository.Employee{
		EmployeeNumber:  req.EmployeeNumber,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		WeeklyHours:     decimal.NewFromFloat(req.WeeklyHours),
		HolidayRegion:   req.HolidayRegion,
		HireDate:        hireDate,
		TerminationDate: terminationDate,
		Status:          req.Status,
	}, nil
}

// List lists all employees
func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, employees)
}

// Get gets an employee by ID
func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	employee, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, employee)
}

// Create creates a new employee
func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	employee, err := req.toEmployee()
	if err != nil {
		httputil.Error(w, err)
		return
	}
	employee.CreatedBy = actorID(r)

	if err := h.service.Create(r.Context(), employee); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, employee)
}

// Update updates an employee
func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	employee, err := req.toEmployee()
	if err != nil {
		httputil.Error(w, err)
		return
	}
	employee.ID = chi.URLParam(r, "id")
	employee.UpdatedBy = actorID(r)

	if err := h.service.Update(r.Context(), employee, httputil.GetUserID(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, employee)
}

// Delete soft deletes an employee
func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ScheduleOverrideItem is one explicit weekday target
type ScheduleOverrideItem struct {
	Weekday int     `json:"weekday" validate:"gte=0,lte=6"`
	Hours   float64 `json:"hours" validate:"gte=0,lte=24"`
}

// ScheduleRequest replaces the full override table of an employee
type ScheduleRequest struct {
	Overrides []ScheduleOverrideItem `json:"overrides" validate:"dive"`
}

// GetSchedule returns the explicit weekday targets of an employee
func (h *EmployeeHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.service.GetScheduleOverrides(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, overrides)
}

// PutSchedule replaces the weekday targets and rebuilds the ledger
func (h *EmployeeHandler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	employeeID := chi.URLParam(r, "id")
	overrides := make([]*repository.ScheduleOverride, 0, len(req.Overrides))
	for _, item := range req.Overrides {
		overrides = append(overrides, &repository.ScheduleOverride{
			EmployeeID: employeeID,
			Weekday:    item.Weekday,
			Hours:      decimal.NewFromFloat(item.Hours),
		})
	}

	if err := h.service.ReplaceScheduleOverrides(r.Context(), employeeID, overrides, httputil.GetUserID(r.Context())); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, overrides)
}

// actorID returns the authenticated user's ID for audit columns, or nil for
// unauthenticated (system) calls.
func actorID(r *http.Request) *string {
	if id := httputil.GetUserID(r.Context()); id != "" {
		return &id
	}
	return nil
}
