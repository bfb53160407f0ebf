package sensor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ConstructionError reports an expression that cannot be built. Nodes are
// never created in a partially valid state; the constructor returns this
// error instead.
type ConstructionError struct {
	// Code identifies the error category.
	Code ConstructionErrorCode

	// Kind is the operator being constructed.
	Kind string

	// Message is a human-readable description.
	Message string
}

// ConstructionErrorCode categorizes construction errors.
type ConstructionErrorCode string

const (
	// ErrCodeEnvMismatch indicates operands bound to different environments.
	ErrCodeEnvMismatch ConstructionErrorCode = "ENV_MISMATCH"

	// ErrCodeContextMismatch indicates incompatible geometric contexts.
	ErrCodeContextMismatch ConstructionErrorCode = "CONTEXT_MISMATCH"

	// ErrCodeNilOperand indicates a required operand is missing.
	ErrCodeNilOperand ConstructionErrorCode = "NIL_OPERAND"

	// ErrCodeBadArgument indicates an invalid non-expression argument.
	ErrCodeBadArgument ConstructionErrorCode = "BAD_ARGUMENT"
)

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Kind, e.Message)
}

func constructionError(code ConstructionErrorCode, kind, format string, args ...any) *ConstructionError {
	return &ConstructionError{Code: code, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsConstructionError returns true if err is a construction error with the
// given code. An empty code matches any construction error.
func IsConstructionError(err error, code ConstructionErrorCode) bool {
	var ce *ConstructionError
	if errors.As(err, &ce) {
		return code == "" || ce.Code == code
	}
	return false
}

// ReadError reports a failed CurrentValue. Read errors are recoverable: the
// caller may retry or fall back.
type ReadError struct {
	Code ReadErrorCode
	Kind string
	Err  error
}

// ReadErrorCode categorizes read errors.
type ReadErrorCode string

const (
	// ErrCodeNoEnvironment indicates no cheap value and no bound environment.
	ErrCodeNoEnvironment ReadErrorCode = "NO_ENVIRONMENT"

	// ErrCodeEnvironmentFailure indicates the environment query failed.
	ErrCodeEnvironmentFailure ReadErrorCode = "ENVIRONMENT_FAILURE"
)

// Error implements the error interface.
func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Kind)
}

// Unwrap returns the environment error, if any.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsNoEnvironment returns true if err is a NO_ENVIRONMENT read error.
func IsNoEnvironment(err error) bool {
	var re *ReadError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoEnvironment
	}
	return false
}

// IsEnvironmentFailure returns true if err is an ENVIRONMENT_FAILURE read error.
func IsEnvironmentFailure(err error) bool {
	var re *ReadError
	if errors.As(err, &re) {
		return re.Code == ErrCodeEnvironmentFailure
	}
	return false
}

// LocalEnvironment keys failures of environment-free registrations in a
// ListenerError.
const LocalEnvironment = "local"

// ListenerError collects per-environment failures of a batched
// (un)registration. Environments not listed succeeded and stay registered.
type ListenerError struct {
	Failures map[string]error
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s: %v", id, e.Failures[id])
	}
	return "listener registration failed: " + strings.Join(parts, "; ")
}

// ErrReentrantWrite is returned by Writable.Set when called for the same
// leaf from one of its own listeners.
var ErrReentrantWrite = errors.New("writable set from its own cascade")
