// Package harness runs auto-splitter scripts against simulated processes and
// an in-memory timer, then checks what the runtime did.
//
// # Scenario Format
//
// Scenarios are YAML files. Paths resolve relative to the scenario file:
//
//	name: level_splits
//	description: "Splits once per level change"
//	script: ../scripts/levels.lua
//	descriptors: ../descriptors
//	splits: [one, two, three]
//	settings: { split_on_level: true }
//	processes:
//	  - pid: 100
//	    name: game
//	    memory:
//	      - { addr: 0x100, type: int, value: 1 }
//	steps:
//	  - tick: 2
//	  - write: [{ pid: 100, addr: 0x100, type: int, value: 2 }]
//	  - advance: 16ms
//	  - timer: pause
//	  - exit: 100
//	assertions:
//	  - type: trace_contains
//	    event: { kind: timer_action, action: split }
//	  - type: final_state
//	    expect: { phase: Running, split_index: 1, vars: { level: 2 } }
//
// Each step does exactly one thing: tick the runtime N times, advance the
// wall clock, spawn or exit a process, write memory, or drive the timer.
//
// # Assertion Types
//
//   - trace_contains: some record matches the event
//   - trace_order: the events occur in order, gaps allowed
//   - trace_count: exactly count records match the event
//   - final_state: runtime state, timer phase, split index, version,
//     refresh rate, attached pid and vars, compared as a subset
//
// # Determinism
//
// The runtime id is fixed, record sequence numbers come from a fresh logical
// clock and wall time only moves on advance steps, so the same scenario
// always yields a byte-identical trace. Golden files in testdata/golden hold
// the canonical JSON of trace and final state.
package harness
