package mapping

import (
	"errors"
	"fmt"
)

// MappingError aborts one compile pass. Fragments committed before the
// failing node are left untouched.
type MappingError struct {
	// Code identifies the error category.
	Code MappingErrorCode

	// Kind is the operator kind of the node being compiled.
	Kind string

	// Key is the structural key of that node.
	Key string

	// Message is a human-readable description.
	Message string

	// Err is the underlying dataflow error, if any.
	Err error
}

// MappingErrorCode categorizes mapping errors.
type MappingErrorCode string

const (
	// ErrCodeTagMismatch indicates a connection between unequally tagged ports.
	ErrCodeTagMismatch MappingErrorCode = "TAG_MISMATCH"

	// ErrCodeNoTranslator indicates no translator is registered for the kind.
	ErrCodeNoTranslator MappingErrorCode = "NO_TRANSLATOR"

	// ErrCodeNoEnvironment indicates a node that can only be compiled for an
	// environment has none.
	ErrCodeNoEnvironment MappingErrorCode = "NO_ENVIRONMENT"

	// ErrCodeSourceNotFound indicates a persisted value whose producing run
	// has no handle.
	ErrCodeSourceNotFound MappingErrorCode = "SOURCE_NOT_FOUND"

	// ErrCodeUnknownPrimitive indicates a block type missing from the catalog.
	ErrCodeUnknownPrimitive MappingErrorCode = "UNKNOWN_PRIMITIVE"

	// ErrCodeBadParameter indicates an unknown or missing block parameter.
	ErrCodeBadParameter MappingErrorCode = "BAD_PARAMETER"

	// ErrCodeBadWiring indicates an unknown port or an input wired twice.
	ErrCodeBadWiring MappingErrorCode = "BAD_WIRING"

	// ErrCodeInvalidFragment indicates the finished fragment failed validation.
	ErrCodeInvalidFragment MappingErrorCode = "INVALID_FRAGMENT"
)

// Error implements the error interface.
func (e *MappingError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Code, e.Kind, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error {
	return e.Err
}

// IsMappingError returns true if err is a mapping error with the given code.
// An empty code matches any mapping error.
func IsMappingError(err error, code MappingErrorCode) bool {
	var me *MappingError
	if errors.As(err, &me) {
		return code == "" || me.Code == code
	}
	return false
}

// IsTagMismatch returns true if err is a TAG_MISMATCH mapping error.
func IsTagMismatch(err error) bool {
	return IsMappingError(err, ErrCodeTagMismatch)
}

// IsSourceNotFound returns true if err is a SOURCE_NOT_FOUND mapping error.
func IsSourceNotFound(err error) bool {
	return IsMappingError(err, ErrCodeSourceNotFound)
}
