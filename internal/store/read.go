package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/splitscript/internal/engine"
	"github.com/roach88/splitscript/internal/ir"
	"github.com/roach88/splitscript/internal/queryir"
	"github.com/roach88/splitscript/internal/querysql"
)

// ReadSession retrieves a single session by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, script, runtime, started_at, ended_at, settings
		FROM sessions
		WHERE id = ?
	`, id)
	return scanSession(row)
}

// ListSessions returns every session, oldest first. Ties on start time are
// broken by id.
//
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, script, runtime, started_at, ended_at, settings
		FROM sessions
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadRecords returns the records of a session in seq order. A non-empty
// kinds list restricts the result to those kinds.
//
// Returns an empty slice (not nil) if the session has no records.
func (s *Store) ReadRecords(ctx context.Context, sessionID string, kinds ...engine.RecordKind) ([]engine.Record, error) {
	q := queryir.Select{Session: sessionID}
	if len(kinds) > 0 {
		values := make([]ir.Value, len(kinds))
		for i, k := range kinds {
			values[i] = ir.String(k)
		}
		q.Filter = queryir.In{Field: "kind", Values: values}
	}
	return s.QueryRecords(ctx, q)
}

// QueryRecords runs a journal query and returns the matching records in
// seq order.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) QueryRecords(ctx context.Context, q queryir.Query) ([]engine.Record, error) {
	query, args, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []engine.Record{}
	for rows.Next() {
		var rec engine.Record
		var kind string
		if err := rows.Scan(&rec.Seq, &rec.Runtime, &kind, &rec.From, &rec.To, &rec.Process,
			&rec.PID, &rec.Version, &rec.Action, &rec.Method, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = engine.RecordKind(kind)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// LastSeq returns the highest seq recorded for a session, 0 when it has
// none. Hosts resuming a session seed engine.NewClockAt with it.
func (s *Store) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM records WHERE session_id = ?
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess     Session
		started  string
		ended    sql.NullString
		settings string
	)
	if err := row.Scan(&sess.ID, &sess.Script, &sess.Runtime, &started, &ended, &settings); err != nil {
		if err == sql.ErrNoRows {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}

	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return Session{}, fmt.Errorf("parse started_at: %w", err)
	}
	sess.StartedAt = t

	if ended.Valid {
		t, err := time.Parse(timeLayout, ended.String)
		if err != nil {
			return Session{}, fmt.Errorf("parse ended_at: %w", err)
		}
		sess.EndedAt = &t
	}

	sess.Settings, err = unmarshalSettings(settings)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}
