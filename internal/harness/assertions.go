package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/splitscript/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describeEvent(event))
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result.State, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

// Matches reports whether e satisfies every non-empty field of m.
func (m EventMatcher) Matches(e TraceEvent) bool {
	if m.Kind != e.Kind {
		return false
	}
	if m.From != "" && m.From != e.From {
		return false
	}
	if m.To != "" && m.To != e.To {
		return false
	}
	if m.Process != "" && !strings.EqualFold(m.Process, e.Process) {
		return false
	}
	if m.PID != 0 && m.PID != e.PID {
		return false
	}
	if m.Version != nil && *m.Version != e.Version {
		return false
	}
	if m.Action != "" && m.Action != e.Action {
		return false
	}
	if m.Method != "" && m.Method != e.Method {
		return false
	}
	if m.Detail != "" && !strings.Contains(e.Detail, m.Detail) {
		return false
	}
	return true
}

func (m EventMatcher) String() string {
	parts := []string{string(m.Kind)}
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("from", m.From)
	add("to", m.To)
	add("process", m.Process)
	if m.PID != 0 {
		add("pid", fmt.Sprint(m.PID))
	}
	if m.Version != nil {
		parts = append(parts, fmt.Sprintf("version=%q", *m.Version))
	}
	add("action", m.Action)
	add("method", m.Method)
	add("detail~", m.Detail)
	return strings.Join(parts, " ")
}

func describeEvent(e TraceEvent) string {
	parts := []string{string(e.Kind)}
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("from", e.From)
	add("to", e.To)
	add("process", e.Process)
	if e.PID != 0 {
		add("pid", fmt.Sprint(e.PID))
	}
	add("version", e.Version)
	add("action", e.Action)
	add("method", e.Method)
	add("detail", e.Detail)
	return strings.Join(parts, " ")
}

// assertTraceContains checks if some record matches the assertion's event.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if assertion.Event.Matches(event) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: assertion.Event.String(),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the events occur as a subsequence of the
// trace. Intervening records are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for i, want := range assertion.Events {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if want.Matches(event) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %s", joinMatchers(assertion.Events)),
				Actual:   fmt.Sprintf("event %d (%s) not found after its predecessors", i, want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count records match the event.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if assertion.Event.Matches(event) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares each expected key against the final state
// (subset semantics). Vars compare as a subset too.
func assertFinalState(fs FinalState, assertion Assertion) error {
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := assertion.Expect[key]
		actual := fs.field(key)

		if key == "vars" {
			if err := matchVars(fs.Vars, expected); err != nil {
				return err
			}
			continue
		}
		if !stateValuesEqual(expected, actual) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("%s = %v (type %T)", key, actual, actual),
			}
		}
	}
	return nil
}

func matchVars(actual ir.Object, expected any) error {
	want, ok := expected.(map[string]any)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "vars to be a mapping",
			Actual:   fmt.Sprintf("%T", expected),
		}
	}
	for _, name := range sortedKeys(want) {
		got, exists := actual[name]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("vars.%s = %v", name, want[name]),
				Actual:   fmt.Sprintf("vars.%s not set", name),
			}
		}
		exp, err := ir.FromGo(want[name])
		if err != nil {
			return fmt.Errorf("vars.%s: %w", name, err)
		}
		if !valuesEqual(exp, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("vars.%s = %s", name, ir.Describe(exp)),
				Actual:   fmt.Sprintf("vars.%s = %s", name, ir.Describe(got)),
			}
		}
	}
	return nil
}

// valuesEqual is ir.Equal except that Int and Float compare numerically.
// YAML and Lua disagree on whether 3 and 3.0 are the same kind.
func valuesEqual(a, b ir.Value) bool {
	if fa, ok := numeric(a); ok {
		fb, ok := numeric(b)
		return ok && fa == fb
	}
	return ir.Equal(a, b)
}

func numeric(v ir.Value) (float64, bool) {
	switch n := v.(type) {
	case ir.Int:
		return float64(n), true
	case ir.Float:
		return float64(n), true
	}
	return 0, false
}

// stateValuesEqual compares a YAML-decoded expectation with a FinalState
// field.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == actual
	}
	switch exp := expected.(type) {
	case string:
		act, ok := actual.(string)
		return ok && exp == act
	case bool:
		act, ok := actual.(bool)
		return ok && exp == act
	}

	ef, ok := toFloat(expected)
	if !ok {
		return false
	}
	switch act := actual.(type) {
	case int:
		return ef == float64(act)
	case float64:
		return ef == act
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinMatchers(ms []EventMatcher) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = "[" + m.String() + "]"
	}
	return strings.Join(parts, " ")
}
