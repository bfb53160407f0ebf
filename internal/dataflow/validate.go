package dataflow

import (
	"fmt"
)

// Fragment validation error codes (E200-E299)
const (
	ErrUnknownBlockType   = "E201" // block type not in the fragment's catalog
	ErrUnconnectedInput   = "E202" // primitive input has no incoming link
	ErrLinkTypeMismatch   = "E203" // link tag type differs from the input type
	ErrDuplicateBlockID   = "E204" // two blocks share an ID
	ErrWiringLoop         = "E205" // links form a cycle
	ErrForeignPort        = "E206" // link or output references a block outside the fragment
	ErrMissingParameter   = "E207" // required parameter empty
	ErrUnknownInputOnLink = "E208" // link targets an input the primitive lacks
)

// ValidationError is one structural problem found in a fragment.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a fragment before it is handed to an environment.
// Returns all errors found (does not fail-fast).
func Validate(f *Fragment) []ValidationError {
	var errs []ValidationError

	blocks := f.Blocks()
	owned := make(map[*Block]bool, len(blocks))
	ids := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		owned[b] = true

		// E204: duplicate block ID
		if ids[b.ID] {
			errs = append(errs, ValidationError{
				Field:   b.ID,
				Message: "duplicate block ID",
				Code:    ErrDuplicateBlockID,
			})
		}
		ids[b.ID] = true

		// E201: unknown block type
		prim, ok := f.catalog.Lookup(b.Type)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   b.ID,
				Message: fmt.Sprintf("unknown primitive %q", b.Type),
				Code:    ErrUnknownBlockType,
			})
			continue
		}

		// E202: every input must be fed
		for _, in := range prim.Inputs {
			if !b.fed[in.Name] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.%s", b.ID, in.Name),
					Message: fmt.Sprintf("input of %s is not connected", b.Type),
					Code:    ErrUnconnectedInput,
				})
			}
		}

		// E207: required parameters must be non-empty
		for _, ps := range prim.Params {
			if ps.Required && b.Params[ps.Name] == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.%s", b.ID, ps.Name),
					Message: fmt.Sprintf("required parameter of %s is empty", b.Type),
					Code:    ErrMissingParameter,
				})
			}
		}
	}

	for i, l := range f.Links() {
		field := fmt.Sprintf("links[%d]", i)

		// E206: both ends inside the fragment
		if !owned[l.From.Block] || !owned[l.To] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("link %s -> %s.%s leaves the fragment", l.From, l.To.ID, l.Input),
				Code:    ErrForeignPort,
			})
			continue
		}

		spec, ok := l.To.prim.Input(l.Input)
		if !ok {
			// E208: input must exist
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s has no input %q", l.To.Type, l.Input),
				Code:    ErrUnknownInputOnLink,
			})
			continue
		}

		// E203: link type must equal input type
		if spec.Type != l.Tag.Type || l.From.Type != l.Tag.Type {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("link %s carries %s into %s input %s", l.From, l.Tag, spec.Type, l.Input),
				Code:    ErrLinkTypeMismatch,
			})
		}
	}

	// E206: exposed outputs must come from owned blocks
	for _, e := range f.outputs {
		if e.Port.out == nil || !owned[e.Port.out.Block] {
			errs = append(errs, ValidationError{
				Field:   "outputs." + e.Name,
				Message: "exposed port is not produced inside the fragment",
				Code:    ErrForeignPort,
			})
		}
	}

	// E205: no wiring loops
	for _, c := range FindCycles(f) {
		errs = append(errs, ValidationError{
			Field:   c.Path[0],
			Message: c.Message,
			Code:    ErrWiringLoop,
		})
	}

	return errs
}
