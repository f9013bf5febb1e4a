package process

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulated_ReadWrite(t *testing.T) {
	p := NewSimulated(10, "game", time.Unix(100, 0))
	p.WriteInt(0x1000, 4, -2)
	p.WriteString(0x2000, "hi")

	buf := make([]byte, 4)
	require.NoError(t, p.ReadMemory(0x1000, buf))
	assert.Equal(t, int32(-2), int32(binary.LittleEndian.Uint32(buf)))

	str := make([]byte, 3)
	require.NoError(t, p.ReadMemory(0x2000, str))
	assert.Equal(t, []byte{'h', 'i', 0}, str)

	err := p.ReadMemory(0x3000, buf)
	assert.ErrorIs(t, err, ErrNotMapped)
	assert.Equal(t, 3, p.Reads())
}

func TestSimulated_Exit(t *testing.T) {
	p := NewSimulated(10, "game", time.Unix(100, 0))
	p.WriteBool(0x10, true)

	p.ExitOnNextRead()
	assert.False(t, p.HasExited())

	err := p.ReadMemory(0x10, make([]byte, 1))
	assert.ErrorIs(t, err, ErrExited)
	assert.True(t, p.HasExited())

	_, err = p.ModuleBase("")
	assert.ErrorIs(t, err, ErrExited)
}

func TestSimulated_ModuleBase(t *testing.T) {
	p := NewSimulated(10, "Game", time.Unix(100, 0))

	base, err := p.ModuleBase("")
	require.NoError(t, err)
	assert.Zero(t, base)

	p.SetModule("game", 0x400000)
	p.SetModule("engine.dll", 0x800000)

	base, err = p.ModuleBase("")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x400000), base)

	base, err = p.ModuleBase("ENGINE.DLL")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x800000), base)

	_, err = p.ModuleBase("missing.dll")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestSimulatedLister_FindAndNewest(t *testing.T) {
	older := NewSimulated(2, "game", time.Unix(100, 0))
	newer := NewSimulated(1, "GAME", time.Unix(200, 0))
	other := NewSimulated(3, "other", time.Unix(300, 0))
	l := NewSimulatedLister(older, newer, other)

	handles, err := l.Find("Game")
	require.NoError(t, err)
	require.Len(t, handles, 2)
	assert.Equal(t, 1, handles[0].PID())
	assert.Equal(t, 2, handles[1].PID())

	assert.Equal(t, 1, Newest(handles).PID())

	newer.Exit()
	assert.Equal(t, 2, Newest(handles).PID())

	older.Exit()
	assert.Nil(t, Newest(handles))

	l.Remove(3)
	handles, err = l.Find("other")
	require.NoError(t, err)
	assert.Empty(t, handles)
	assert.Equal(t, 2, l.Finds())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, Info{}, Describe(nil))

	p := NewSimulated(7, "game", time.Unix(5, 0))
	info := Describe(p)
	assert.Equal(t, 7, info.PID)
	assert.Equal(t, "game", info.Name)
}
