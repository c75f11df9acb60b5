package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Employee events
	EventEmployeeCreated = "timesheet.employee.created"
	EventEmployeeUpdated = "timesheet.employee.updated"
	EventEmployeeDeleted = "timesheet.employee.deleted"

	// Time entry events
	EventTimeEntryCreated = "timesheet.entry.created"
	EventTimeEntryUpdated = "timesheet.entry.updated"
	EventTimeEntryDeleted = "timesheet.entry.deleted"

	// Absence events
	EventAbsenceCreated  = "timesheet.absence.created"
	EventAbsenceApproved = "timesheet.absence.approved"
	EventAbsenceRejected = "timesheet.absence.rejected"
	EventAbsenceDeleted  = "timesheet.absence.deleted"

	// Ledger events
	EventBalanceRecalculated = "timesheet.balance.recalculated"
	EventIntegrityFlagged    = "timesheet.balance.integrity_flagged"

	// Correction events
	EventCorrectionApplied  = "timesheet.correction.applied"
	EventCorrectionReversed = "timesheet.correction.reversed"

	// Rollover events
	EventYearEndRolloverCompleted = "timesheet.rollover.completed"
)

// Exchange names
const (
	ExchangeTimesheetEvents = "timesheet.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Employee Events

// EmployeeCreatedEvent is published when an employee is created
type EmployeeCreatedEvent struct {
	EmployeeID string    `json:"employee_id"`
	Name       string    `json:"name"`
	HireDate   time.Time `json:"hire_date"`
}

// EmployeeUpdatedEvent is published when an employee is updated
type EmployeeUpdatedEvent struct {
	EmployeeID string         `json:"employee_id"`
	Fields     map[string]any `json:"fields"`
}

// EmployeeDeletedEvent is published when an employee is deleted
type EmployeeDeletedEvent struct {
	EmployeeID string `json:"employee_id"`
}

// Time Entry Events

// TimeEntryChangedEvent is published when a time entry is created, updated or deleted
type TimeEntryChangedEvent struct {
	TimeEntryID string    `json:"time_entry_id"`
	EmployeeID  string    `json:"employee_id"`
	EntryDate   time.Time `json:"entry_date"`
	NetHours    string    `json:"net_hours"`
}

// Absence Events

// AbsenceCreatedEvent is published when an absence is created
type AbsenceCreatedEvent struct {
	AbsenceID   string    `json:"absence_id"`
	EmployeeID  string    `json:"employee_id"`
	AbsenceType string    `json:"absence_type"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Status      string    `json:"status"`
}

// AbsenceApprovedEvent is published when an absence is approved
type AbsenceApprovedEvent struct {
	AbsenceID  string `json:"absence_id"`
	EmployeeID string `json:"employee_id"`
	ReviewerID string `json:"reviewer_id"`
}

// AbsenceRejectedEvent is published when an absence is rejected
type AbsenceRejectedEvent struct {
	AbsenceID  string `json:"absence_id"`
	EmployeeID string `json:"employee_id"`
	ReviewerID string `json:"reviewer_id"`
	Reason     string `json:"reason"`
}

// AbsenceDeletedEvent is published when an absence is deleted
type AbsenceDeletedEvent struct {
	AbsenceID  string `json:"absence_id"`
	EmployeeID string `json:"employee_id"`
}

// Ledger Events

// BalanceRecalculatedEvent is published after a full balance recomputation
type BalanceRecalculatedEvent struct {
	EmployeeID     string `json:"employee_id"`
	CurrentBalance string `json:"current_balance"`
	Transactions   int    `json:"transactions"`
	TriggeredBy    string `json:"triggered_by"`
}

// IntegrityFlaggedEvent is published when a period balance disagrees with the ledger
type IntegrityFlaggedEvent struct {
	EmployeeID  string `json:"employee_id"`
	PeriodType  string `json:"period_type"`
	PeriodKey   string `json:"period_key"`
	Snapshot    string `json:"snapshot_hours"`
	LedgerSum   string `json:"ledger_hours"`
	Discrepancy string `json:"discrepancy_hours"`
}

// Correction Events

// CorrectionAppliedEvent is published when a manual correction is applied
type CorrectionAppliedEvent struct {
	CorrectionID string    `json:"correction_id"`
	EmployeeID   string    `json:"employee_id"`
	Hours        string    `json:"hours"`
	EffectiveOn  time.Time `json:"effective_on"`
	AppliedBy    string    `json:"applied_by"`
}

// CorrectionReversedEvent is published when a correction is reversed
type CorrectionReversedEvent struct {
	CorrectionID string `json:"correction_id"`
	EmployeeID   string `json:"employee_id"`
	ReversedBy   string `json:"reversed_by"`
}

// Rollover Events

// YearEndRolloverCompletedEvent is published after a year-end rollover batch finishes
type YearEndRolloverCompletedEvent struct {
	Year      int      `json:"year"`
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
