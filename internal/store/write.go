package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/splitscript/internal/engine"
)

// timeLayout is how wall times are stored. It sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Session is one runtime lifetime in the journal.
type Session struct {
	ID        string          `json:"id"`
	Script    string          `json:"script"`
	Runtime   string          `json:"runtime"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Settings  map[string]bool `json:"settings"`
}

// BeginSession inserts a new session. Uses ON CONFLICT(id) DO NOTHING for
// idempotency - beginning the same session twice is silently ignored.
func (s *Store) BeginSession(ctx context.Context, sess Session) error {
	settings, err := marshalSettings(sess.Settings)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, script, runtime, started_at, settings)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.Script,
		sess.Runtime,
		sess.StartedAt.UTC().Format(timeLayout),
		settings,
	)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// EndSession stamps the end time of a session. Ending an unknown session is
// an error; ending one twice keeps the first time.
func (s *Store) EndSession(ctx context.Context, id string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET ended_at = COALESCE(ended_at, ?)
		WHERE id = ?
	`, endedAt.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end session: unknown session %q", id)
	}
	return nil
}

// UpdateSettings replaces the toggle values recorded for a session.
func (s *Store) UpdateSettings(ctx context.Context, id string, settings map[string]bool) error {
	blob, err := marshalSettings(settings)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET settings = ? WHERE id = ?`, blob, id)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update settings: unknown session %q", id)
	}
	return nil
}

// WriteRecord appends one runtime record. Uses ON CONFLICT DO NOTHING on
// (session_id, seq), so replaying a stream is idempotent.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteRecord(ctx context.Context, sessionID string, rec engine.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records
		(session_id, seq, kind, from_state, to_state, process, pid, version, action, method, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		sessionID,
		rec.Seq,
		string(rec.Kind),
		rec.From,
		rec.To,
		rec.Process,
		rec.PID,
		rec.Version,
		rec.Action,
		rec.Method,
		rec.Detail,
	)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
