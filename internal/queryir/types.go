package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/splitscript/internal/ir"
)

// Query is a journal query. Sealed.
type Query interface {
	queryNode()
}

// Predicate is a filter over one record. Sealed.
type Predicate interface {
	predicateNode()
}

// FieldKind is the value type a record field holds.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
)

func (k FieldKind) String() string {
	if k == KindInt {
		return "int"
	}
	return "string"
}

// Fields maps every filterable record field to its value type.
var Fields = map[string]FieldKind{
	"seq":     KindInt,
	"kind":    KindString,
	"from":    KindString,
	"to":      KindString,
	"process": KindString,
	"pid":     KindInt,
	"version": KindString,
	"action":  KindString,
	"method":  KindString,
	"detail":  KindString,
}

// Select reads one session's records in seq order.
//
// Limit caps the number of records returned; zero means no cap.
type Select struct {
	Session string
	Filter  Predicate // nil matches every record
	Limit   int
}

func (Select) queryNode() {}

// Equals matches records whose field equals Value.
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// In matches records whose field equals any of Values. An empty list
// matches nothing.
type In struct {
	Field  string
	Values []ir.Value
}

func (In) predicateNode() {}

// After matches records with a seq strictly greater than Seq.
type After struct {
	Seq int64
}

func (After) predicateNode() {}

// And matches records every sub-predicate matches. Empty is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// ParseEquals parses "field=value" into an Equals predicate, converting the
// value to the field's kind.
func ParseEquals(expr string) (Equals, error) {
	field, raw, ok := strings.Cut(expr, "=")
	if !ok || field == "" {
		return Equals{}, fmt.Errorf("filter %q: want field=value", expr)
	}
	field = strings.TrimSpace(field)
	kind, known := Fields[field]
	if !known {
		return Equals{}, fmt.Errorf("filter %q: unknown field %q", expr, field)
	}
	if kind == KindInt {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Equals{}, fmt.Errorf("filter %q: %s wants an integer", expr, field)
		}
		return Equals{Field: field, Value: ir.Int(n)}, nil
	}
	return Equals{Field: field, Value: ir.String(raw)}, nil
}

// AllOf combines predicates, dropping nils. It returns nil for no
// predicates and the predicate itself for one.
func AllOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}
