// Package process defines the process collaborator the runtime attaches to:
// enumeration by name (Lister) and memory access on one live instance
// (Handle).
//
// Two implementations ship with the module. The procfs subpackage talks to
// real Linux processes. Simulated and SimulatedLister keep everything in
// memory so the runtime, the harness and tests can script a process's life
// tick by tick.
package process
