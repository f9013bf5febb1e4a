package script

import (
	"fmt"

	"github.com/roach88/splitscript/internal/ir"
)

// Result is the tagged optional a method returns: Absent, or a value.
type Result struct {
	value ir.Value
}

// Absent is the "no value" result.
func Absent() Result { return Result{} }

// Some wraps v. A nil v is Absent.
func Some(v ir.Value) Result { return Result{value: v} }

// Bool is shorthand for Some(ir.Bool(b)).
func Bool(b bool) Result { return Some(ir.Bool(b)) }

// Number is shorthand for Some(ir.Float(f)).
func Number(f float64) Result { return Some(ir.Float(f)) }

// IsAbsent reports whether no value was returned.
func (r Result) IsAbsent() bool { return r.value == nil }

// Value returns the wrapped value, nil when absent.
func (r Result) Value() ir.Value { return r.value }

func (r Result) String() string {
	if r.value == nil {
		return "absent"
	}
	b, err := ir.MarshalCanonical(r.value)
	if err != nil {
		return ir.Describe(r.value)
	}
	return string(b)
}

// AsBool interprets the result of method as a boolean. Absent yields def.
func (r Result) AsBool(method MethodName, def bool) (bool, error) {
	switch v := r.value.(type) {
	case nil:
		return def, nil
	case ir.Bool:
		return bool(v), nil
	}
	return false, &ResultTypeError{Method: method, Want: "bool", Got: ir.Describe(r.value)}
}

// AsNumber interprets the result of method as a number. ok is false when
// absent.
func (r Result) AsNumber(method MethodName) (f float64, ok bool, err error) {
	switch v := r.value.(type) {
	case nil:
		return 0, false, nil
	case ir.Int:
		return float64(v), true, nil
	case ir.Float:
		return float64(v), true, nil
	}
	return 0, false, &ResultTypeError{Method: method, Want: "number", Got: ir.Describe(r.value)}
}

// ResultTypeError reports a present result of the wrong type.
type ResultTypeError struct {
	Method MethodName
	Want   string
	Got    string
}

func (e *ResultTypeError) Error() string {
	return fmt.Sprintf("%s returned %s, want %s", e.Method, e.Got, e.Want)
}
