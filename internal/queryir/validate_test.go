package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/splitscript/internal/ir"
)

func TestValidate_Valid(t *testing.T) {
	res := Validate(Select{
		Session: "s1",
		Filter: And{Predicates: []Predicate{
			Equals{Field: "process", Value: ir.String("game")},
			&In{Field: "pid", Values: []ir.Value{ir.Int(1), ir.Int(2)}},
			&After{Seq: 0},
			&And{},
		}},
		Limit: 5,
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	res := Validate(&Select{
		Limit: -1,
		Filter: And{Predicates: []Predicate{
			Equals{Field: "nope", Value: ir.String("x")},
			In{Field: "kind", Values: []ir.Value{ir.String("transition"), ir.Int(1)}},
			After{Seq: -2},
			Equals{Field: "seq", Value: ir.Null{}},
		}},
	})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{
		"select: session is required",
		"select: negative limit -1",
		`unknown field "nope"`,
		`field "kind" is string, got int`,
		"after: negative seq -2",
		`field "seq" compared to null`,
	}, res.Errors)
}

func TestValidate_NilQuery(t *testing.T) {
	res := Validate(nil)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"nil query"}, res.Errors)
}
