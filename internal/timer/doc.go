// Package timer defines the host timer facade the runtime drives, and Model,
// an in-memory implementation used by the CLI host, the harness and tests.
//
// The runtime only ever requests actions (start, split, reset, skip, undo),
// reads phase and game-time flags, pushes game time, and listens to the
// notification stream. Everything else (persisting splits, rendering) is
// the host's business.
package timer
