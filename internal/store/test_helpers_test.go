package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession begins a session with minimal required fields.
func createTestSession(t *testing.T, s *Store, id string, started time.Time) Session {
	t.Helper()
	sess := Session{
		ID:        id,
		Script:    "game.lua",
		Runtime:   "rt-" + id,
		StartedAt: started,
		Settings:  map[string]bool{"split": true},
	}
	if err := s.BeginSession(context.Background(), sess); err != nil {
		t.Fatalf("BeginSession() failed: %v", err)
	}
	return sess
}
