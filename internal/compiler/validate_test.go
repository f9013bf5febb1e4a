package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitscript/internal/state"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	specs := []DescriptorSpec{
		{Process: "game", Fields: []state.Field{{Name: "level", Type: state.TypeInt}}},
		{Process: "game", Version: "1.2", PointerSize: 4},
	}
	assert.Empty(t, Validate(specs))
}

func TestValidateNoDescriptors(t *testing.T) {
	assert.Equal(t, []string{ErrNoDescriptors}, codes(Validate(nil)))
}

func TestValidateCollectsAll(t *testing.T) {
	specs := []DescriptorSpec{
		{Process: "Game", Version: "1"},
		{Process: "game", Version: "1", PointerSize: 2},
		{Process: "game", Version: "2", Fields: []state.Field{
			{Name: "bad-name", Type: state.TypeInt},
			{Name: "s", Type: state.TypeString},
			{Name: "n", Type: state.TypeInt, Length: 3},
			{Name: "q", Type: "int128"},
		}},
		{Process: " "},
	}

	errs := Validate(specs)
	assert.Equal(t, []string{
		ErrDuplicateVersion,
		ErrInvalidPointerSize,
		ErrInvalidFieldName,
		ErrMissingLength,
		ErrUnexpectedLength,
		ErrInvalidFieldType,
		ErrEmptyProcessName,
	}, codes(errs))
	assert.Equal(t, `state."game"[1].version`, errs[0].Field)
}

func TestValidationErrorFormatting(t *testing.T) {
	e := ValidationError{Field: "state.x", Message: "bad", Code: ErrInvalidFieldType}
	assert.Equal(t, "[E104] state.x: bad", e.Error())
	e.Line = 3
	assert.Equal(t, "[E104] line 3: state.x: bad", e.Error())
}

func TestBuild(t *testing.T) {
	reg, err := Build([]DescriptorSpec{
		{Process: "game", Version: "1.2"},
		{Process: "game"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	d, ok := reg.Default("game")
	require.True(t, ok)
	assert.Equal(t, "", d.Version())

	_, err = Build([]DescriptorSpec{{Process: "game", PointerSize: 3}})
	assert.Error(t, err)
}
