package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitscript/internal/ir"
)

func TestSealedInterfaces(t *testing.T) {
	var _ Query = Select{}
	var _ Query = &Select{}
	var _ Predicate = Equals{}
	var _ Predicate = In{}
	var _ Predicate = After{}
	var _ Predicate = And{}
}

func TestParseEquals(t *testing.T) {
	eq, err := ParseEquals("process=game")
	require.NoError(t, err)
	assert.Equal(t, Equals{Field: "process", Value: ir.String("game")}, eq)

	eq, err = ParseEquals("pid = 42")
	require.NoError(t, err)
	assert.Equal(t, Equals{Field: "pid", Value: ir.Int(42)}, eq)

	eq, err = ParseEquals("detail=a=b")
	require.NoError(t, err)
	assert.Equal(t, ir.String("a=b"), eq.Value)

	eq, err = ParseEquals("version=")
	require.NoError(t, err)
	assert.Equal(t, ir.String(""), eq.Value, "empty matches the default layout")
}

func TestParseEquals_Errors(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"process", "want field=value"},
		{"=game", "want field=value"},
		{"colour=red", `unknown field "colour"`},
		{"pid=abc", "pid wants an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseEquals(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAllOf(t *testing.T) {
	assert.Nil(t, AllOf())
	assert.Nil(t, AllOf(nil, nil))

	single := After{Seq: 3}
	assert.Equal(t, single, AllOf(nil, single))

	eq := Equals{Field: "kind", Value: ir.String("transition")}
	assert.Equal(t, And{Predicates: []Predicate{eq, single}}, AllOf(eq, nil, single))
}
