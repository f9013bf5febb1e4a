package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_AddGetSet(t *testing.T) {
	s := NewSettings()
	require.NoError(t, s.Add("any", false, "Any%"))
	require.NoError(t, s.Add("glitched", true, "Glitched"))

	assert.Error(t, s.Add("any", true, "again"))
	assert.Error(t, s.Add("", true, "empty"))

	v, ok := s.Get("any")
	assert.True(t, ok)
	assert.False(t, v)

	require.NoError(t, s.Set("any", true))
	v, _ = s.Get("any")
	assert.True(t, v)
	assert.Error(t, s.Set("missing", true))

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "any", all[0].ID)
	assert.False(t, all[0].Default)
	assert.True(t, all[0].Value)
	assert.Equal(t, map[string]bool{"any": true, "glitched": true}, s.Values())
}

func TestSettings_EnabledTreatsUnknownAsOn(t *testing.T) {
	s := NewSettings()
	require.NoError(t, s.Add("split", false, "Split"))
	assert.False(t, s.Enabled("split"))
	assert.True(t, s.Enabled("start"))
}

func TestSettings_Apply(t *testing.T) {
	s := NewSettings()
	require.NoError(t, s.Add("a", true, ""))
	require.NoError(t, s.Add("b", true, ""))

	unknown := s.Apply(map[string]bool{"a": false, "z": true, "y": false})
	assert.Equal(t, []string{"y", "z"}, unknown)
	v, _ := s.Get("a")
	assert.False(t, v)
}

func TestSettings_AccessorWritability(t *testing.T) {
	s := NewSettings()
	rw := s.accessor(true)
	ro := s.accessor(false)

	assert.True(t, rw.Writable())
	assert.False(t, ro.Writable())

	require.NoError(t, rw.Add("x", true, "X"))
	assert.ErrorIs(t, ro.Add("y", true, "Y"), ErrSettingsReadOnly)

	v, ok := ro.Get("x")
	assert.True(t, ok)
	assert.True(t, v)
	assert.Equal(t, 1, s.Len())
}
