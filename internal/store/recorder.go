package store

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/splitscript/internal/engine"
)

// Recorder journals a runtime's records into one session. It implements
// engine.Observer.
//
// Write failures are logged and counted, never returned: a journal outage
// must not stop the runtime.
type Recorder struct {
	store     *Store
	sessionID string
	logger    *slog.Logger
	failures  atomic.Int64
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder for an existing session. A nil logger
// means slog.Default().
func NewRecorder(s *Store, sessionID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, sessionID: sessionID, logger: logger}
}

// Observe implements engine.Observer.
func (r *Recorder) Observe(rec engine.Record) {
	if err := r.store.WriteRecord(context.Background(), r.sessionID, rec); err != nil {
		r.failures.Add(1)
		r.logger.Error("journal write failed",
			"session", r.sessionID,
			"seq", rec.Seq,
			"kind", rec.Kind,
			"error", err)
	}
}

// Failures returns how many records could not be written.
func (r *Recorder) Failures() int64 {
	return r.failures.Load()
}
