// Package engine runs an auto-splitter script against an external process.
//
// A Runtime owns one loaded script (a script.MethodTable), the registry of
// memory layouts it may read, and a subscription to the host timer. The host
// calls Tick on a fixed cadence; each tick advances the attachment state
// machine:
//
//	Disconnected -> Connecting -> Initializing -> Running -> Exited -> Disconnected
//
// and invokes the script's methods with a fresh script.Context.
//
// SERIALIZATION:
//
// Every script call happens while the runtime mutex is held, so no two
// callbacks ever overlap. Timer notifications may arrive on any goroutine,
// including synchronously from a facade call the tick itself made. They are
// queued and drained by whoever holds the mutex: the tick, right after each
// facade call and again before it returns, or the notifying goroutine itself
// when the runtime is idle.
//
// ORDERING:
//
// Every Record handed to the Observer is stamped from a monotonic Clock.
// Processes are searched in the order their descriptors were registered.
package engine
