package audit

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is the cause of a ServiceError rejected by the breaker.
var ErrCircuitOpen = errors.New("circuit open after repeated failures")

// ServiceError reports a failed call to the audit service: transport failure,
// non-success status, malformed body or an open circuit. It is recoverable by
// retrying the triggering action.
type ServiceError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Cause      error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("audit service %s failed (status %d): %v", e.Op, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("audit service %s failed: %v", e.Op, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// ContractViolation reports a response that parsed but lacks a field the
// adapter relies on.
type ContractViolation struct {
	Op    string
	Field string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("audit service %s response missing %s", e.Op, e.Field)
}

// IsServiceError reports whether err is a ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// IsContractViolation reports whether err is a ContractViolation.
func IsContractViolation(err error) bool {
	var cv *ContractViolation
	return errors.As(err, &cv)
}
