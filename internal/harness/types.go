package harness

import (
	"github.com/roboticsapi/robotics-api-sub003/internal/dataflow"
	"github.com/roboticsapi/robotics-api-sub003/internal/exprdoc"
)

// Trace event types.
const (
	EventSet   = "set"
	EventCycle = "cycle"
	EventValue = "value"
)

// TraceEvent records one step of a scenario run.
type TraceEvent struct {
	Type  string            `json:"type"`
	Seq   int64             `json:"seq"`
	Name  string            `json:"name,omitempty"`
	Value *exprdoc.Rendered `json:"value,omitempty"`
	Input any               `json:"input,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Type is the document value type of the expression.
	Type exprdoc.ValueType `json:"type,omitempty"`

	// OutputType is the tag of the compiled root output.
	OutputType string `json:"output_type,omitempty"`

	// Primitives counts the compiled blocks per primitive.
	Primitives map[string]int `json:"primitives,omitempty"`

	// Cheap reports whether the initial value needed no environment.
	Cheap bool `json:"cheap"`

	// Values holds the initial value followed by one value per write.
	Values []exprdoc.Rendered `json:"values"`

	// Trace contains every set, cycle and value in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Fragment is the compiled expression. Nil when building failed.
	Fragment *dataflow.Fragment `json:"-"`

	raw []any
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Values: []exprdoc.Rendered{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddSetTrace records an input assignment.
func (r *Result) AddSetTrace(name string, input any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{Type: EventSet, Name: name, Input: input, Seq: seq})
}

// AddCycleTrace records one environment cycle.
func (r *Result) AddCycleTrace(seq int64) {
	r.Trace = append(r.Trace, TraceEvent{Type: EventCycle, Seq: seq})
}

// AddValueTrace records a value read of the expression.
func (r *Result) AddValueTrace(name string, v exprdoc.Rendered, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{Type: EventValue, Name: name, Value: &v, Seq: seq})
}
