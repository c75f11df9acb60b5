package errors

import (
	"fmt"
	"net/http"
)

// BatchItemFailure records a single failed item within a batch operation.
type BatchItemFailure struct {
	EmployeeID string `json:"employee_id"`
	Message    string `json:"message"`
}

// BatchReport is returned by batch operations where some items succeeded and
// some failed. A failure of one item never rolls back the others.
type BatchReport struct {
	Succeeded []string           `json:"succeeded"`
	Failed    []BatchItemFailure `json:"failed"`
}

// Error implements the error interface
func (r *BatchReport) Error() string {
	return fmt.Sprintf("batch completed with %d succeeded, %d failed", len(r.Succeeded), len(r.Failed))
}

// HasFailures reports whether any item in the batch failed.
func (r *BatchReport) HasFailures() bool {
	return len(r.Failed) > 0
}

// AddSuccess records a successfully processed item.
func (r *BatchReport) AddSuccess(employeeID string) {
	r.Succeeded = append(r.Succeeded, employeeID)
}

// AddFailure records a failed item with the reason.
func (r *BatchReport) AddFailure(employeeID string, err error) {
	r.Failed = append(r.Failed, BatchItemFailure{
		EmployeeID: employeeID,
		Message:    err.Error(),
	})
}

// PartialBatch wraps a report into an AppError suitable for the HTTP layer.
// 207 is used so callers can distinguish a partial outcome from full success.
func PartialBatch(report *BatchReport) *AppError {
	return &AppError{
		Err:        report,
		Code:       "PARTIAL_BATCH_FAILURE",
		Message:    report.Error(),
		StatusCode: http.StatusMultiStatus,
	}
}
