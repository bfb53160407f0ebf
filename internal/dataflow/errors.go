package dataflow

import (
	"errors"
	"fmt"
)

// Primitive instantiation error codes.
const (
	ErrCodeUnknownPrimitive = "UNKNOWN_PRIMITIVE"
	ErrCodeBadParameter     = "BAD_PARAMETER"
)

// PrimitiveError reports a block that cannot be instantiated.
type PrimitiveError struct {
	Code      string
	Primitive string
	Param     string
	Message   string
}

func (e *PrimitiveError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s.%s: %s", e.Code, e.Primitive, e.Param, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Primitive, e.Message)
}

// WiringError reports a structurally invalid connection: unknown port,
// foreign block, or an input connected twice.
type WiringError struct {
	Block   string
	Port    string
	Message string
}

func (e *WiringError) Error() string {
	return fmt.Sprintf("wiring %s.%s: %s", e.Block, e.Port, e.Message)
}

// IsTagMismatch reports whether err is or wraps a *TagMismatchError.
func IsTagMismatch(err error) bool {
	var tm *TagMismatchError
	return errors.As(err, &tm)
}
