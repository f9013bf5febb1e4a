package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(MustDescriptor("Game.exe", "", 8)))
	require.NoError(t, r.Add(MustDescriptor("game.exe", "1.2", 8)))

	err := r.Add(MustDescriptor("GAME.EXE", "", 8))
	assert.True(t, errors.Is(err, ErrDuplicateDescriptor))
	err = r.Add(MustDescriptor("game.exe", "1.2", 4))
	assert.True(t, errors.Is(err, ErrDuplicateDescriptor))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"Game.exe"}, r.Processes())
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	def := MustDescriptor("game", "", 8)
	v12 := MustDescriptor("game", "1.2", 8)
	require.NoError(t, r.Add(def))
	require.NoError(t, r.Add(v12))

	d, ok := r.Lookup("GAME", "1.2", false)
	require.True(t, ok)
	assert.Same(t, v12, d)

	d, ok = r.Lookup("game", "9.9", true)
	require.True(t, ok)
	assert.Same(t, def, d)

	_, ok = r.Lookup("game", "9.9", false)
	assert.False(t, ok)

	_, ok = r.Lookup("other", "", true)
	assert.False(t, ok)
}

func TestRegistry_DefaultFallsBackToFirst(t *testing.T) {
	r := NewRegistry()
	first := MustDescriptor("game", "1.0", 8)
	require.NoError(t, r.Add(first))
	require.NoError(t, r.Add(MustDescriptor("game", "1.1", 8)))

	d, ok := r.Default("game")
	require.True(t, ok)
	assert.Same(t, first, d)

	_, ok = r.Default("missing")
	assert.False(t, ok)
}

func TestRegistry_OrderIsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(MustDescriptor("zeta", "", 8)))
	require.NoError(t, r.Add(MustDescriptor("alpha", "", 8)))
	require.NoError(t, r.Add(MustDescriptor("zeta", "2", 8)))

	assert.Equal(t, []string{"zeta", "alpha"}, r.Processes())
	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "2", all[1].Version())
	assert.Len(t, r.Descriptors("ZETA"), 2)
}
