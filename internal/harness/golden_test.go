package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitscript/internal/engine"
	"github.com/roach88/splitscript/internal/ir"
)

// To regenerate:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden_LevelSplits(t *testing.T) {
	result, err := RunWithGolden(t, loadRepoScenario(t, "level_splits"))
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestAssertGolden_FromResult(t *testing.T) {
	result, err := Run(loadRepoScenario(t, "level_splits"))
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "level_splits", result))
}

func TestMarshalSnapshot_Canonical(t *testing.T) {
	result := NewResult()
	result.Trace = []TraceEvent{
		{Seq: 1, Kind: engine.RecordTransition, From: "Disconnected", To: "Connecting", Process: "game", PID: 7},
		{Seq: 2, Kind: engine.RecordTimerAction, Action: "start"},
	}
	result.State = FinalState{
		State:       "Running",
		Phase:       "Running",
		SplitIndex:  0,
		RefreshRate: 30,
		AttachedPID: 7,
		Vars:        ir.Object{"b": ir.Int(2), "a": ir.String("x")},
	}

	got, err := MarshalSnapshot("snap", result)
	require.NoError(t, err)

	want := `{"scenario_name":"snap","state":{"attached_pid":7,"phase":"Running","refresh_rate":30,` +
		`"split_index":0,"state":"Running","vars":{"a":"x","b":2},"version":""},"trace":[` +
		`{"from":"Disconnected","kind":"transition","pid":7,"process":"game","seq":1,"to":"Connecting"},` +
		`{"action":"start","kind":"timer_action","seq":2}]}`
	assert.Equal(t, want, string(got))
}

func TestMarshalSnapshot_NilVars(t *testing.T) {
	got, err := MarshalSnapshot("empty", NewResult())
	require.NoError(t, err)
	assert.Contains(t, string(got), `"vars":{}`)
	assert.Contains(t, string(got), `"trace":[]`)
}

func TestCompareGolden(t *testing.T) {
	result, err := Run(loadRepoScenario(t, "level_splits"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "golden", "x.golden")
	require.NoError(t, UpdateGolden(path, "level_splits", result))

	match, err := CompareGolden(path, "level_splits", result)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = CompareGolden(path, "renamed", result)
	require.NoError(t, err)
	assert.False(t, match)

	// A trailing newline from an editor does not count as a change.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, '\n'), 0644))
	match, err = CompareGolden(path, "level_splits", result)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestCompareGolden_Missing(t *testing.T) {
	_, err := CompareGolden(filepath.Join(t.TempDir(), "none.golden"), "x", NewResult())
	require.Error(t, err)
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("a", "b", "golden", "c.golden"), GoldenPath(filepath.Join("a", "b", "c.yaml")))
}
