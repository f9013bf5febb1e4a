package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitscript/internal/config"
	"github.com/roach88/splitscript/internal/engine"
	"github.com/roach88/splitscript/internal/process"
	"github.com/roach88/splitscript/internal/store"
	"github.com/roach88/splitscript/internal/timer"
)

const (
	levelsScript   = "../../testdata/scripts/levels.lua"
	descriptorsDir = "../../testdata/descriptors"
)

// newTestRunCommand builds a run command wired to a simulated game sitting
// on the title screen.
func newTestRunCommand(t *testing.T, format string, args ...string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	game := process.NewSimulated(100, "game", time.Unix(0, 0))
	game.WriteInt(0x100, 4, 0)
	game.WriteBool(0x104, false)
	game.WriteInt(0x200, 4, 10)

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: format},
		Lister:      process.NewSimulatedLister(game),
		IDGenerator: engine.NewFixedGenerator("session-1"),
	}
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRunCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	return cmd, stdout, stderr
}

func TestRun_MissingScript(t *testing.T) {
	cmd, stdout, _ := newTestRunCommand(t, "text",
		"--db", "", "--descriptors", descriptorsDir, filepath.Join(t.TempDir(), "none.lua"))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load script")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout.String(), "Error [E010]")
}

func TestRun_MissingDescriptors(t *testing.T) {
	cmd, _, _ := newTestRunCommand(t, "text",
		"--db", "", "--descriptors", filepath.Join(t.TempDir(), "nowhere"), levelsScript)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load descriptors")
	assert.Contains(t, err.Error(), "descriptor directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_StartupFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.lua")
	require.NoError(t, os.WriteFile(path, []byte("function startup()\n  error(\"no\")\nend\n"), 0644))

	cmd, _, _ := newTestRunCommand(t, "text", "--db", "", "--descriptors", descriptorsDir, path)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRun_BadSettingsFile(t *testing.T) {
	settingsPath := filepath.Join(t.TempDir(), "game.ini")
	require.NoError(t, os.WriteFile(settingsPath, []byte("x"), 0644))

	cmd, _, _ := newTestRunCommand(t, "text",
		"--db", "", "--descriptors", descriptorsDir, "--settings", settingsPath, levelsScript)

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrUnknownFormat)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_JournalsAndPersistsSettings(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	settingsPath := filepath.Join(dir, "game.toml")
	require.NoError(t, os.WriteFile(settingsPath, []byte("[settings]\nsplit_on_level = false\nretired = true\n"), 0644))

	cmd, stdout, stderr := newTestRunCommand(t, "json",
		"--db", dbPath,
		"--descriptors", descriptorsDir,
		"--settings", settingsPath,
		"--splits", "one,two",
		"--ticks", "3",
		levelsScript)

	require.NoError(t, cmd.Execute(), "stderr: %s", stderr.String())
	assert.Contains(t, stderr.String(), "ignoring unknown settings")

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "session-1", resp.Data.Session)
	assert.Equal(t, 3, resp.Data.Ticks)
	assert.Equal(t, "Running", resp.Data.State)
	assert.Equal(t, "NotRunning", resp.Data.Phase)
	require.Len(t, resp.Data.Splits, 2)
	assert.Equal(t, "one", resp.Data.Splits[0].Name)
	assert.False(t, resp.Data.Settings["split_on_level"])
	assert.True(t, resp.Data.Settings["reset_on_title"])

	// Settings file is rewritten with the live toggle set.
	saved, err := config.LoadToggles(settingsPath)
	require.NoError(t, err)
	assert.Equal(t, resp.Data.Settings, saved)
	assert.NotContains(t, saved, "retired")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	sess, err := st.ReadSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, levelsScript, sess.Script)
	assert.NotNil(t, sess.EndedAt)
	assert.Equal(t, resp.Data.Settings, sess.Settings)

	transitions, err := st.ReadRecords(ctx, "session-1", engine.RecordTransition)
	require.NoError(t, err)
	require.Len(t, transitions, 3)
	assert.Equal(t, "Running", transitions[2].To)
	assert.Equal(t, "game", transitions[0].Process)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cmd, stdout, _ := newTestRunCommand(t, "text", "--db", "", "--descriptors", descriptorsDir, levelsScript)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	cmd.SetContext(ctx)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "Press Ctrl-C to stop.")
	assert.Contains(t, stdout.String(), "Session session-1.")
}

func TestRun_DefaultsFromEnvironment(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("SPLITSCRIPT_DB", dbPath)
	t.Setenv("SPLITSCRIPT_SPLITS", "a,b,c")

	cmd, stdout, _ := newTestRunCommand(t, "json", "--descriptors", descriptorsDir, "--ticks", "1", levelsScript)
	require.NoError(t, cmd.Execute())
	assert.FileExists(t, dbPath)

	var resp struct {
		Data RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Len(t, resp.Data.Splits, 3)
}

func writeFailingUpdate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "failing.lua")
	require.NoError(t, os.WriteFile(path, []byte("function update()\n  error(\"bad pointer\")\nend\n"), 0644))
	return path
}

func TestRun_TickErrorsLoggedWithMethod(t *testing.T) {
	cmd, _, stderr := newTestRunCommand(t, "text",
		"--db", "", "--descriptors", descriptorsDir, "--ticks", "5", writeFailingUpdate(t))

	// Ticks 1 and 2 attach and init; update fails on ticks 3 to 5.
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "level=ERROR msg=\"tick failed\"")
	assert.Contains(t, stderr.String(), "tick=3 method=update")
	assert.Equal(t, 3, strings.Count(stderr.String(), "tick failed"))
}

func TestRun_StopOnError(t *testing.T) {
	cmd, stdout, stderr := newTestRunCommand(t, "json",
		"--db", "", "--descriptors", descriptorsDir, "--ticks", "5", "--stop-on-error", writeFailingUpdate(t))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick failed")
	assert.Contains(t, err.Error(), "bad pointer")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, 1, strings.Count(stderr.String(), "tick failed"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTick, resp.Error.Code)
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, time.Second/60, tickInterval(60))
	assert.Equal(t, 500*time.Millisecond, tickInterval(2))
	assert.Equal(t, tickInterval(engine.DefaultRefreshRate), tickInterval(0))
}

func TestTimerPrinter(t *testing.T) {
	buf := &bytes.Buffer{}
	model := timer.NewModel([]string{"one", "two"})
	model.Subscribe(timerPrinter(buf, model))

	model.Start()
	model.Split()
	model.Reset()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "started"))
	assert.True(t, strings.HasPrefix(lines[1], "split"))
	assert.Contains(t, lines[1], "1/2")
	assert.True(t, strings.HasPrefix(lines[2], "reset"))
}

func TestSummarizeSplits(t *testing.T) {
	got := summarizeSplits([]timer.SplitTime{
		{Name: "a", RealTime: 1500 * time.Millisecond, GameTime: time.Second, Done: true},
		{Name: "b", Skipped: true, Done: true},
		{Name: "c"},
	})
	assert.Equal(t, []SplitSummary{
		{Name: "a", RealTime: "1.5s", GameTime: "1s"},
		{Name: "b", Skipped: true},
		{Name: "c"},
	}, got)
}
