package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitscript/internal/compiler"
)

func executeValidate(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestValidate_RepoScript(t *testing.T) {
	buf, err := executeValidate(t, "text", "--descriptors", descriptorsDir, levelsScript)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "✓ levels.lua valid")
	assert.Contains(t, out, "startup")
	assert.Contains(t, out, "[x] split_on_level")
	assert.Contains(t, out, "game (default): 3 field(s), 8-byte pointers")
	assert.Contains(t, out, "game 1.2: 3 field(s)")
}

func TestValidate_RepoScriptJSON(t *testing.T) {
	buf, err := executeValidate(t, "json", "--descriptors", descriptorsDir, levelsScript)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Contains(t, resp.Data.Methods, "update")
	assert.Contains(t, resp.Data.Methods, "isLoading")
	require.Len(t, resp.Data.Descriptors, 2)
	assert.Equal(t, "1.2", resp.Data.Descriptors[1].Version)

	ids := make([]string, 0, len(resp.Data.Settings))
	for _, s := range resp.Data.Settings {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, "split_on_level")
	assert.Contains(t, ids, "reset_on_title")
	assert.Contains(t, ids, "start")
}

func TestValidate_MissingScript(t *testing.T) {
	buf, err := executeValidate(t, "text", filepath.Join(t.TempDir(), "none.lua"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), compiler.ErrCodeNotFound)
	assert.Contains(t, buf.String(), "script not found")
}

func TestValidate_MissingDescriptorDir(t *testing.T) {
	_, err := executeValidate(t, "text", "--descriptors", filepath.Join(t.TempDir(), "nowhere"), levelsScript)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), compiler.ErrCodeNotFound)
}

func TestValidate_EmptyDescriptorDir(t *testing.T) {
	_, err := executeValidate(t, "text", "--descriptors", t.TempDir(), levelsScript)
	require.Error(t, err)
	assert.Contains(t, err.Error(), compiler.ErrCodeNoFiles)
}

func TestValidate_InvalidDescriptors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"),
		[]byte("package descriptors\n\nstate: \"game\": [{fields: {level: {type: \"word\"}}}]\n"), 0644))

	buf, err := executeValidate(t, "json", "--descriptors", dir, levelsScript)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrInvalidFieldType, resp.Error.Code)
}

func TestValidate_ScriptSyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.lua")
	require.NoError(t, os.WriteFile(path, []byte("function update(\n"), 0644))

	buf, err := executeValidate(t, "text", "--descriptors", descriptorsDir, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Validation failed")
	assert.Contains(t, buf.String(), ErrCodeScript)
}

func TestValidate_SettingsFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("settings:\n  split_on_level: false\n  start: true\n"), 0644))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("settings:\n  any_percent: true\n"), 0644))

	_, err := executeValidate(t, "text", "--descriptors", descriptorsDir, "--settings", good, levelsScript)
	require.NoError(t, err)

	buf, err := executeValidate(t, "text", "--descriptors", descriptorsDir, "--settings", bad, levelsScript)
	require.Error(t, err)
	assert.Contains(t, buf.String(), ErrCodeSettings)
	assert.Contains(t, buf.String(), `script declares no toggle "any_percent"`)
}
