package engine

import (
	"log/slog"
	"time"
)

// DefaultRefreshRate is the tick cadence, in ticks per second, a runtime
// advertises until the script changes it.
const DefaultRefreshRate = 60.0

// refreshRateEpsilon is the smallest refresh rate change that is applied.
const refreshRateEpsilon = 0.01

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger. Every line it receives carries the runtime id.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithObserver sets the record stream sink.
func WithObserver(o Observer) Option {
	return func(r *Runtime) {
		r.observer = o
	}
}

// WithClock sets the clock records are stamped from.
func WithClock(c *Clock) Option {
	return func(r *Runtime) {
		r.clock = c
	}
}

// WithInstanceID fixes the runtime id instead of generating one.
func WithInstanceID(id string) Option {
	return func(r *Runtime) {
		r.id = id
	}
}

// WithIDGenerator sets the generator the runtime id is drawn from.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runtime) {
		r.ids = g
	}
}

// WithRefreshRateListener registers fn to be told about every applied refresh
// rate change. fn runs with the runtime lock held and must not call back into
// the runtime.
func WithRefreshRateListener(fn func(rate float64)) Option {
	return func(r *Runtime) {
		r.onRefreshRate = fn
	}
}

// WithSlowCallThreshold logs a warning whenever one script call takes longer
// than d. Zero disables the check.
func WithSlowCallThreshold(d time.Duration) Option {
	return func(r *Runtime) {
		r.slowCall = d
	}
}

// WithNow replaces the wall clock used to time script calls.
func WithNow(now func() time.Time) Option {
	return func(r *Runtime) {
		r.now = now
	}
}
