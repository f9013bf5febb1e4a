package queryir

import (
	"fmt"

	"github.com/roach88/splitscript/internal/ir"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks that a query names a session, uses known fields and
// compares each field against values of its kind.
//
// Validate is a pure function.
func Validate(query Query) ValidationResult {
	v := &validator{errors: []string{}}
	v.validateQuery(query)
	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.Session == "" {
		v.addError("select: session is required")
	}
	if sel.Limit < 0 {
		v.addError("select: negative limit %d", sel.Limit)
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateValue(pred.Field, pred.Value)
	case *Equals:
		v.validateValue(pred.Field, pred.Value)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case After:
		if pred.Seq < 0 {
			v.addError("after: negative seq %d", pred.Seq)
		}
	case *After:
		v.validatePredicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		v.validatePredicate(*pred)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateIn(in In) {
	for _, val := range in.Values {
		v.validateValue(in.Field, val)
	}
}

func (v *validator) validateValue(field string, val ir.Value) {
	kind, ok := Fields[field]
	if !ok {
		v.addError("unknown field %q", field)
		return
	}
	switch val.(type) {
	case ir.String:
		if kind != KindString {
			v.addError("field %q is %s, got string", field, kind)
		}
	case ir.Int:
		if kind != KindInt {
			v.addError("field %q is %s, got int", field, kind)
		}
	default:
		v.addError("field %q compared to %s", field, ir.Describe(val))
	}
}
