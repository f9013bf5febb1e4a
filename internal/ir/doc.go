// Package ir provides the value model shared by scripts, snapshots and the
// session journal.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Values form a sealed set (Null, String, Int, Float, Bool, Array, Object)
//   - Integral memory fields are Int, never Float
//   - Canonical JSON (RFC 8785) is the only encoding used for traces and hashes
//   - All JSON tags use snake_case
package ir
