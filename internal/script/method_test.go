package script

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitscript/internal/ir"
)

func TestMethodTable_Slots(t *testing.T) {
	calls := 0
	tbl, err := NewMethodTable("test", map[MethodName]Method{
		MethodUpdate: func(*Context) (Result, error) {
			calls++
			return Bool(false), nil
		},
		MethodSplit: nil,
	})
	require.NoError(t, err)

	assert.True(t, tbl.Defined(MethodUpdate))
	assert.False(t, tbl.Defined(MethodSplit))
	assert.True(t, tbl.Slot(MethodStart).IsEmpty())
	assert.Equal(t, MethodStart, tbl.Slot(MethodStart).Name())
	assert.Equal(t, []MethodName{MethodUpdate}, tbl.DefinedNames())

	res, err := tbl.Call(MethodUpdate, &Context{})
	require.NoError(t, err)
	assert.Equal(t, Bool(false), res)
	assert.Equal(t, 1, calls)

	res, err = tbl.Call(MethodStart, &Context{})
	require.NoError(t, err)
	assert.True(t, res.IsAbsent())
}

func TestMethodTable_RejectsUnknownName(t *testing.T) {
	_, err := NewMethodTable("test", map[MethodName]Method{
		"onExplode": func(*Context) (Result, error) { return Absent(), nil },
	})
	assert.Error(t, err)
	assert.Panics(t, func() {
		MustMethodTable("test", map[MethodName]Method{"nope": nil})
	})
}

func TestMethodName_Classes(t *testing.T) {
	assert.Len(t, MethodNames, 17)
	for _, n := range MethodNames {
		assert.True(t, n.Valid(), n)
	}
	assert.False(t, MethodName("Update").Valid())
	assert.True(t, MethodOnUndoSplit.IsEvent())
	assert.False(t, MethodSplit.IsEvent())
}

func TestResult_AsBool(t *testing.T) {
	v, err := Absent().AsBool(MethodUpdate, true)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = Bool(false).AsBool(MethodUpdate, true)
	require.NoError(t, err)
	assert.False(t, v)

	_, err = Some(ir.String("yes")).AsBool(MethodUpdate, true)
	var typeErr *ResultTypeError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, MethodUpdate, typeErr.Method)
	assert.Equal(t, "string", typeErr.Got)
	assert.Equal(t, "update returned string, want bool", err.Error())
}

func TestResult_AsNumber(t *testing.T) {
	_, ok, err := Absent().AsNumber(MethodGameTime)
	require.NoError(t, err)
	assert.False(t, ok)

	f, ok, err := Some(ir.Int(90)).AsNumber(MethodGameTime)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 90.0, f)

	f, ok, err = Number(1.5).AsNumber(MethodGameTime)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	_, _, err = Bool(true).AsNumber(MethodGameTime)
	assert.Error(t, err)
}

func TestResult_String(t *testing.T) {
	assert.Equal(t, "absent", Absent().String())
	assert.Equal(t, "true", Bool(true).String())
	assert.True(t, Some(nil).IsAbsent())
}
