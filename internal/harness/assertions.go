package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roboticsapi/robotics-api-sub003/internal/exprdoc"
)

// Assertion types, used in AssertionError.Type.
const (
	AssertValue      = "value"
	AssertOutputType = "output_type"
	AssertPrimitives = "primitives"
	AssertCheap      = "cheap"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Step     string // "initial" or "writes[i]"
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Step != "" {
		fmt.Fprintf(&buf, " (%s)", e.Step)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s\n", e.Expected, e.Actual)
	return buf.String()
}

// EvaluateAssertions checks expect against result and returns one message
// per failed expectation. Unset expectations are skipped.
func EvaluateAssertions(result *Result, expect Expect) []string {
	var errs []string
	fail := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if expect.OutputType != "" {
		fail(assertOutputType(result, expect.OutputType))
	}
	if len(expect.Primitives) > 0 {
		fail(assertPrimitives(result, expect.Primitives))
	}
	if expect.Cheap != nil {
		fail(assertCheap(result, *expect.Cheap))
	}
	if expect.Value != nil {
		if len(result.raw) == 0 {
			fail(&AssertionError{Type: AssertValue, Step: "initial", Expected: fmt.Sprint(expect.Value), Actual: "no value"})
		} else {
			fail(assertValue(result.Type, result.raw[0], expect.Value, "initial"))
		}
	}
	return errs
}

func assertOutputType(result *Result, want string) error {
	if result.OutputType == want {
		return nil
	}
	return &AssertionError{Type: AssertOutputType, Expected: want, Actual: result.OutputType}
}

// assertPrimitives compares block counts of the listed primitives only.
// A count of 0 asserts the primitive is absent.
func assertPrimitives(result *Result, want map[string]int) error {
	names := make([]string, 0, len(want))
	for name := range want {
		names = append(names, name)
	}
	sort.Strings(names)

	var diffs []string
	for _, name := range names {
		if got := result.Primitives[name]; got != want[name] {
			diffs = append(diffs, fmt.Sprintf("%s: want %d, got %d", name, want[name], got))
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertPrimitives,
		Expected: fmt.Sprintf("%v", want),
		Actual:   strings.Join(diffs, "; "),
	}
}

func assertCheap(result *Result, want bool) error {
	if result.Cheap == want {
		return nil
	}
	return &AssertionError{Type: AssertCheap, Expected: fmt.Sprint(want), Actual: fmt.Sprint(result.Cheap)}
}

func assertValue(t exprdoc.ValueType, got, want any, step string) error {
	ok, err := exprdoc.Matches(t, got, want)
	if err != nil {
		return &AssertionError{Type: AssertValue, Step: step, Expected: fmt.Sprint(want), Actual: err.Error()}
	}
	if ok {
		return nil
	}
	actual := fmt.Sprint(got)
	if r, err := exprdoc.Render(t, got); err == nil {
		actual = r.String()
	}
	return &AssertionError{Type: AssertValue, Step: step, Expected: fmt.Sprint(want), Actual: actual}
}
