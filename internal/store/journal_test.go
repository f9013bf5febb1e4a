package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splitscript/internal/engine"
	"github.com/roach88/splitscript/internal/ir"
	"github.com/roach88/splitscript/internal/queryir"
)

func TestSession_BeginReadEnd(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 5, time.UTC)

	sess := createTestSession(t, s, "s1", started)
	require.NoError(t, s.BeginSession(ctx, sess), "begin is idempotent")

	got, err := s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "game.lua", got.Script)
	assert.Equal(t, "rt-s1", got.Runtime)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Nil(t, got.EndedAt)
	assert.Equal(t, map[string]bool{"split": true}, got.Settings)

	ended := started.Add(time.Minute)
	require.NoError(t, s.EndSession(ctx, "s1", ended))
	require.NoError(t, s.EndSession(ctx, "s1", ended.Add(time.Hour)))
	got, err = s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.True(t, ended.Equal(*got.EndedAt))

	assert.Error(t, s.EndSession(ctx, "missing", ended))
	_, err = s.ReadSession(ctx, "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestSession_SettingsStoredCanonically(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.BeginSession(ctx, Session{
		ID:        "s1",
		Script:    "x.lua",
		Runtime:   "rt",
		StartedAt: time.Unix(0, 0),
		Settings:  map[string]bool{"start": true, "reset": false, "any": true},
	}))

	var blob string
	require.NoError(t, s.db.QueryRow("SELECT settings FROM sessions WHERE id = 's1'").Scan(&blob))
	assert.Equal(t, `{"any":true,"reset":false,"start":true}`, blob)
}

func TestUpdateSettings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1", time.Unix(0, 0))

	require.NoError(t, s.UpdateSettings(ctx, "s1", map[string]bool{"split": false, "reset": true}))
	got, err := s.ReadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"split": false, "reset": true}, got.Settings)

	assert.Error(t, s.UpdateSettings(ctx, "missing", nil))
}

func TestListSessions_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	base := time.Unix(1000, 0)
	createTestSession(t, s, "b", base.Add(time.Second))
	createTestSession(t, s, "c", base)
	createTestSession(t, s, "a", base.Add(time.Second))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	var ids []string
	for _, sess := range sessions {
		ids = append(ids, sess.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestRecords_WriteAndRead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1", time.Unix(0, 0))

	recs := []engine.Record{
		{Seq: 2, Kind: engine.RecordTimerAction, Action: "start"},
		{Seq: 1, Kind: engine.RecordTransition, From: "Disconnected", To: "Connecting", Process: "game", PID: 42},
		{Seq: 3, Kind: engine.RecordEventCallback, Method: "onStart", Action: "started"},
	}
	for _, r := range recs {
		require.NoError(t, s.WriteRecord(ctx, "s1", r))
	}
	require.NoError(t, s.WriteRecord(ctx, "s1", recs[0]), "duplicate seq is ignored")

	got, err := s.ReadRecords(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, "rt-s1", got[0].Runtime)
	assert.Equal(t, 42, got[0].PID)
	assert.Equal(t, engine.RecordTimerAction, got[1].Kind)

	filtered, err := s.ReadRecords(ctx, "s1", engine.RecordTimerAction, engine.RecordEventCallback)
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, int64(2), filtered[0].Seq)

	last, err := s.LastSeq(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)

	none, err := s.LastSeq(ctx, "other")
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestQueryRecords_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1", time.Unix(0, 0))
	createTestSession(t, s, "s2", time.Unix(1, 0))

	recs := []engine.Record{
		{Seq: 1, Kind: engine.RecordTransition, From: "Disconnected", To: "Connecting", Process: "game", PID: 42},
		{Seq: 2, Kind: engine.RecordTimerAction, Action: "start"},
		{Seq: 3, Kind: engine.RecordTimerAction, Action: "split"},
		{Seq: 4, Kind: engine.RecordTransition, From: "Running", To: "Exited", Process: "game", PID: 42},
	}
	for _, r := range recs {
		require.NoError(t, s.WriteRecord(ctx, "s1", r))
	}
	require.NoError(t, s.WriteRecord(ctx, "s2", engine.Record{Seq: 1, Kind: engine.RecordTimerAction, Action: "split"}))

	splits, err := s.QueryRecords(ctx, queryir.Select{
		Session: "s1",
		Filter:  queryir.Equals{Field: "action", Value: ir.String("split")},
	})
	require.NoError(t, err)
	require.Len(t, splits, 1)
	assert.Equal(t, int64(3), splits[0].Seq)

	tail, err := s.QueryRecords(ctx, queryir.Select{
		Session: "s1",
		Filter: queryir.AllOf(
			queryir.Equals{Field: "pid", Value: ir.Int(42)},
			queryir.After{Seq: 1},
		),
	})
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "Exited", tail[0].To)

	first, err := s.QueryRecords(ctx, queryir.Select{Session: "s1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, int64(2), first[1].Seq)

	_, err = s.QueryRecords(ctx, queryir.Select{
		Session: "s1",
		Filter:  queryir.Equals{Field: "pid", Value: ir.String("42")},
	})
	assert.ErrorContains(t, err, "invalid query")
}

func TestRecords_RequireSession(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteRecord(context.Background(), "missing", engine.Record{Seq: 1, Kind: engine.RecordTransition})
	assert.Error(t, err)
}

func TestRecorder_JournalsAndContinuesOnError(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "s1", time.Unix(0, 0))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rec := NewRecorder(s, "s1", logger)

	rec.Observe(engine.Record{Seq: 1, Kind: engine.RecordTransition, From: "Disconnected", To: "Connecting"})
	assert.Zero(t, rec.Failures())

	bad := NewRecorder(s, "missing", logger)
	bad.Observe(engine.Record{Seq: 1, Kind: engine.RecordTransition})
	assert.Equal(t, int64(1), bad.Failures())
	assert.Contains(t, buf.String(), "journal write failed")

	got, err := s.ReadRecords(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
