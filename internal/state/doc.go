// Package state samples typed fields out of a process's memory.
//
// A Descriptor is identified by (process name, version) and holds a field
// layout plus the last two snapshots taken with it. A Registry holds every
// descriptor a script declared and resolves versions to descriptors.
package state
