// errs.go — Closed taxonomy of typed engine errors (§7).
// Adapted from the teacher's StructuredError/error-code approach
// (internal/mcp/errors.go) away from the MCP transport and into plain Go
// error values the orchestrator renders into {success:false, error, meta}.
package errs

import "fmt"

// Kind is a closed set of error kinds per §7. Not a type switch target by
// itself — callers should prefer errors.As against the concrete types
// below, but Kind() lets generic logging/reporting code branch on a string.
type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindInput          Kind = "input_error"
	KindStepTimeout    Kind = "step_timeout_error"
	KindTargetNotFound Kind = "target_not_found_error"
	KindAssertion      Kind = "assertion_error"
	KindNetworkFind    Kind = "network_find_error"
	KindReplay         Kind = "replay_error"
	KindSensitiveHeader Kind = "sensitive_header_error"
	KindSnapshotDrift  Kind = "snapshot_drift_error"
	KindAuthFailure    Kind = "auth_failure_error"
	KindOperational    Kind = "operational_error"
)

// EngineError is implemented by every typed error in this package.
type EngineError interface {
	error
	Kind() Kind
}

type baseError struct {
	kind Kind
	msg  string
}

func (e *baseError) Error() string { return e.msg }
func (e *baseError) Kind() Kind     { return e.kind }

// ValidationError — malformed pack/step/target; unknown step type or params;
// unresolved template with no default. Always surfaces before any side
// effects.
type ValidationError struct{ *baseError }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{&baseError{KindValidation, fmt.Sprintf(format, args...)}}
}

// InputError — input schema mismatch or missing required input.
type InputError struct{ *baseError }

func NewInputError(format string, args ...any) *InputError {
	return &InputError{&baseError{KindInput, fmt.Sprintf(format, args...)}}
}

// StepTimeoutError — suspension point exceeded timeoutMs.
type StepTimeoutError struct{ *baseError }

func NewStepTimeoutError(stepID string, timeoutMs int) *StepTimeoutError {
	return &StepTimeoutError{&baseError{KindStepTimeout,
		fmt.Sprintf("step %q exceeded timeout of %dms", stepID, timeoutMs)}}
}

// TargetNotFoundError — resolver returned zero matches and no default.
type TargetNotFoundError struct{ *baseError }

func NewTargetNotFoundError(format string, args ...any) *TargetNotFoundError {
	return &TargetNotFoundError{&baseError{KindTargetNotFound, fmt.Sprintf(format, args...)}}
}

// AssertionError — assert step predicate failed; carries user message.
type AssertionError struct {
	*baseError
	Message string
}

func NewAssertionError(message string) *AssertionError {
	msg := message
	if msg == "" {
		msg = "assertion failed"
	}
	return &AssertionError{&baseError{KindAssertion, msg}, message}
}

// NetworkFindError — no matching capture within waitForMs.
type NetworkFindError struct{ *baseError }

func NewNetworkFindError(format string, args ...any) *NetworkFindError {
	return &NetworkFindError{&baseError{KindNetworkFind, fmt.Sprintf(format, args...)}}
}

// ReplayError — captured request no longer present, or context unsupported.
type ReplayError struct{ *baseError }

func NewReplayError(format string, args ...any) *ReplayError {
	return &ReplayError{&baseError{KindReplay, fmt.Sprintf(format, args...)}}
}

// SensitiveHeaderError — attempt to override a blocklisted header.
type SensitiveHeaderError struct{ *baseError }

func NewSensitiveHeaderError(header string) *SensitiveHeaderError {
	return &SensitiveHeaderError{&baseError{KindSensitiveHeader,
		fmt.Sprintf("cannot override sensitive header %q", header)}}
}

// SnapshotDriftError — pure-HTTP replay status class differs from snapshot.
type SnapshotDriftError struct{ *baseError }

func NewSnapshotDriftError(format string, args ...any) *SnapshotDriftError {
	return &SnapshotDriftError{&baseError{KindSnapshotDrift, fmt.Sprintf(format, args...)}}
}

// AuthFailureError — monitor detected failure and recovery budget exhausted.
type AuthFailureError struct{ *baseError }

func NewAuthFailureError(format string, args ...any) *AuthFailureError {
	return &AuthFailureError{&baseError{KindAuthFailure, fmt.Sprintf(format, args...)}}
}

// OperationalError — I/O, proxy, or disk-writing failures.
type OperationalError struct{ *baseError }

func NewOperationalError(format string, args ...any) *OperationalError {
	return &OperationalError{&baseError{KindOperational, fmt.Sprintf(format, args...)}}
}
