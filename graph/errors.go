package graph

import "errors"

// ErrInvalidConfig indicates the Engine was constructed with an unusable
// configuration (non-positive turn or step budget, missing node).
var ErrInvalidConfig = errors.New("invalid engine configuration")

// ErrMaxStepsExceeded indicates that the run reached the maximum allowed step
// count without the router ending it. It points at a routing defect, not at a
// spent turn budget, which ends a run normally.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// ErrContractViolation indicates a node returned an update that breaks the
// state invariants, for example an approved verdict that still lists issues.
var ErrContractViolation = errors.New("node contract violation")

// Error codes carried by EngineError.
const (
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeMaxStepsExceeded  = "MAX_STEPS_EXCEEDED"
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeStoreError        = "STORE_ERROR"
)

// CodeNodeTimeout is the NodeError code of a node that ran past the
// configured node timeout.
const CodeNodeTimeout = "NODE_TIMEOUT"

// EngineError represents an error from Engine operations.
type EngineError struct {
	Message string
	Code    string
	Cause   error
}

func (e *EngineError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Code != "" {
		return e.Code + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is matches the package sentinels by code so callers can use errors.Is.
func (e *EngineError) Is(target error) bool {
	switch target {
	case ErrInvalidConfig:
		return e.Code == CodeInvalidConfig
	case ErrMaxStepsExceeded:
		return e.Code == CodeMaxStepsExceeded
	case ErrContractViolation:
		return e.Code == CodeContractViolation
	}
	return false
}

func configError(msg string) error {
	return &EngineError{Message: msg, Code: CodeInvalidConfig}
}

func contractError(node NodeID, msg string) error {
	return &EngineError{
		Message: node.String() + ": " + msg,
		Code:    CodeContractViolation,
	}
}
