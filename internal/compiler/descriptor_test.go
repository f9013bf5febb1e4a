package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitscript/internal/state"
)

func TestCompileDescriptorsBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		state: "game.exe": [
			{
				version: ""
				pointer_size: 4
				fields: {
					level: {type: "int", base: 0x1000, offsets: [0x10, -8]}
					name:  {type: "string", module: "engine.dll", base: 0x20, length: 16}
				}
			},
			{version: "1.2", fields: {level: {type: "short", base: 0x1100}}},
		]
		state: other: {fields: {}}
	`)
	require.NoError(t, v.Err())

	specs, err := CompileDescriptors(v)
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, "game.exe", specs[0].Process)
	assert.Equal(t, "", specs[0].Version)
	assert.Equal(t, 4, specs[0].PointerSize)
	require.Len(t, specs[0].Fields, 2)
	assert.Equal(t, state.Field{
		Name: "level", Type: state.TypeInt, Base: 0x1000, Offsets: []int64{0x10, -8},
	}, specs[0].Fields[0])
	assert.Equal(t, "engine.dll", specs[0].Fields[1].Module)
	assert.Equal(t, 16, specs[0].Fields[1].Length)

	assert.Equal(t, "1.2", specs[1].Version)
	assert.Equal(t, "other", specs[2].Process)
	assert.True(t, specs[0].Pos.IsValid())
}

func TestCompileDescriptorsNoState(t *testing.T) {
	v := cuecontext.New().CompileString(`other: 1`)
	specs, err := CompileDescriptors(v)
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestCompileDescriptorsErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		field   string
		message string
	}{
		{
			name:    "unknown descriptor key",
			src:     `state: game: [{versoin: "1"}]`,
			field:   `state."game"[0].versoin`,
			message: "unknown key",
		},
		{
			name:    "unknown field key",
			src:     `state: game: [{fields: {x: {type: "int", offset: 4}}}]`,
			field:   `state."game"[0].fields.x.offset`,
			message: "unknown key",
		},
		{
			name:    "missing type",
			src:     `state: game: [{fields: {x: {base: 4}}}]`,
			field:   `state."game"[0].fields.x.type`,
			message: "required",
		},
		{
			name:    "negative base",
			src:     `state: game: [{fields: {x: {type: "int", base: -4}}}]`,
			field:   `state."game"[0].fields.x.base`,
			message: "non-negative",
		},
		{
			name:    "scalar process entry",
			src:     `state: game: 3`,
			field:   `state."game"`,
			message: "list of layouts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileDescriptors(v)
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "want CompileError, got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.message)
		})
	}
}

func TestCompileDescriptorsTypeMismatch(t *testing.T) {
	v := cuecontext.New().CompileString(`state: game: [{version: 12}]`)
	_, err := CompileDescriptors(v)
	require.Error(t, err)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, `state."game"[0].version`, ce.Field)
}

func TestCompileErrorFormatting(t *testing.T) {
	err := &CompileError{Field: "state.x", Message: "bad"}
	assert.Equal(t, "state.x: bad", err.Error())
}
