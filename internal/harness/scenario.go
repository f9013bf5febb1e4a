package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/splitscript/internal/engine"
	"github.com/roach88/splitscript/internal/state"
	"github.com/roach88/splitscript/internal/timer"
)

// Scenario drives one runtime through a scripted sequence of process and
// timer changes and asserts on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Script is the Lua auto-splitter, relative to the scenario file.
	Script string `yaml:"script"`

	// Descriptors is a directory of CUE state descriptors, relative to the
	// scenario file.
	Descriptors string `yaml:"descriptors"`

	// Splits names the timer segments. Defaults to a single "End" segment.
	Splits []string `yaml:"splits,omitempty"`

	// Settings overrides toggle values after startup has run.
	Settings map[string]bool `yaml:"settings,omitempty"`

	// Processes are running before the first step.
	Processes []ProcessSpec `yaml:"processes,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`

	// RuntimeID fixes the runtime instance id. Defaults to "test-runtime".
	RuntimeID string `yaml:"runtime_id,omitempty"`

	// dir is where relative paths resolve from.
	dir string
}

// ProcessSpec describes one simulated process.
type ProcessSpec struct {
	PID     int               `yaml:"pid"`
	Name    string            `yaml:"name"`
	Modules map[string]uint64 `yaml:"modules,omitempty"`
	Memory  []MemoryWrite     `yaml:"memory,omitempty"`
}

// MemoryWrite stores one typed value in a simulated process. PID may be
// omitted inside a ProcessSpec.
type MemoryWrite struct {
	PID   int             `yaml:"pid,omitempty"`
	Addr  uint64          `yaml:"addr"`
	Type  state.FieldType `yaml:"type"`
	Value any             `yaml:"value"`
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	// Tick runs the runtime this many times.
	Tick int `yaml:"tick,omitempty"`

	// Advance moves the wall clock, e.g. "16ms".
	Advance string `yaml:"advance,omitempty"`

	// Spawn starts a new simulated process.
	Spawn *ProcessSpec `yaml:"spawn,omitempty"`

	// Exit terminates the process with this pid.
	Exit int `yaml:"exit,omitempty"`

	// Write changes process memory.
	Write []MemoryWrite `yaml:"write,omitempty"`

	// Timer drives the host timer directly: start, split, reset,
	// skip_split, undo_split, pause or resume.
	Timer string `yaml:"timer,omitempty"`
}

// Host timer operations a step may request beyond timer.Action.
const (
	timerPause  = "pause"
	timerResume = "resume"
)

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some record matches Event
	// - "trace_order": records matching Events appear in order
	// - "trace_count": exactly Count records match Event
	// - "final_state": Expect is a subset of the final state
	Type string `yaml:"type"`

	// Event matches one record (trace_contains, trace_count).
	Event *EventMatcher `yaml:"event,omitempty"`

	// Events is the expected order (trace_order).
	Events []EventMatcher `yaml:"events,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count"`

	// Expect contains expected final state fields (final_state).
	// Keys: state, phase, split_index, version, refresh_rate, attached_pid, vars.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// EventMatcher matches a record. Empty fields match anything.
type EventMatcher struct {
	Kind    engine.RecordKind `yaml:"kind"`
	From    string            `yaml:"from,omitempty"`
	To      string            `yaml:"to,omitempty"`
	Process string            `yaml:"process,omitempty"`
	PID     int               `yaml:"pid,omitempty"`
	Version *string           `yaml:"version,omitempty"`
	Action  string            `yaml:"action,omitempty"`
	Method  string            `yaml:"method,omitempty"`
	Detail  string            `yaml:"detail,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

var finalStateKeys = map[string]bool{
	"state":        true,
	"phase":        true,
	"split_index":  true,
	"version":      true,
	"refresh_rate": true,
	"attached_pid": true,
	"vars":         true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.dir = filepath.Dir(path)
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ScriptPath is Script resolved against the scenario file.
func (s *Scenario) ScriptPath() string { return s.resolve(s.Script) }

// DescriptorDir is Descriptors resolved against the scenario file.
func (s *Scenario) DescriptorDir() string { return s.resolve(s.Descriptors) }

func (s *Scenario) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.dir, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Script == "" {
		return fmt.Errorf("script is required")
	}
	if s.Descriptors == "" {
		return fmt.Errorf("descriptors is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := os.Stat(s.ScriptPath()); os.IsNotExist(err) {
		return fmt.Errorf("script file not found: %s", s.ScriptPath())
	}
	if _, err := os.Stat(s.DescriptorDir()); os.IsNotExist(err) {
		return fmt.Errorf("descriptor directory not found: %s", s.DescriptorDir())
	}

	pids := make(map[int]bool)
	for i, p := range s.Processes {
		if err := validateProcess(fmt.Sprintf("processes[%d]", i), p); err != nil {
			return err
		}
		if pids[p.PID] {
			return fmt.Errorf("processes[%d]: duplicate pid %d", i, p.PID)
		}
		pids[p.PID] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateProcess(path string, p ProcessSpec) error {
	if p.PID <= 0 {
		return fmt.Errorf("%s: pid must be positive", path)
	}
	if p.Name == "" {
		return fmt.Errorf("%s: name is required", path)
	}
	for j, w := range p.Memory {
		if err := validateWrite(fmt.Sprintf("%s.memory[%d]", path, j), w); err != nil {
			return err
		}
	}
	return nil
}

func validateWrite(path string, w MemoryWrite) error {
	if !w.Type.Valid() || w.Type == state.TypeBytes {
		return fmt.Errorf("%s: unsupported type %q", path, w.Type)
	}
	if w.Value == nil {
		return fmt.Errorf("%s: value is required", path)
	}
	return nil
}

// validateStep checks that exactly one action is set.
func validateStep(i int, st Step) error {
	set := 0
	path := fmt.Sprintf("steps[%d]", i)

	if st.Tick < 0 {
		return fmt.Errorf("%s: tick must be non-negative", path)
	}
	if st.Tick > 0 {
		set++
	}
	if st.Advance != "" {
		set++
		if _, err := time.ParseDuration(st.Advance); err != nil {
			return fmt.Errorf("%s: invalid advance: %w", path, err)
		}
	}
	if st.Spawn != nil {
		set++
		if err := validateProcess(path+".spawn", *st.Spawn); err != nil {
			return err
		}
	}
	if st.Exit != 0 {
		set++
	}
	if len(st.Write) > 0 {
		set++
		for j, w := range st.Write {
			if w.PID <= 0 {
				return fmt.Errorf("%s.write[%d]: pid is required", path, j)
			}
			if err := validateWrite(fmt.Sprintf("%s.write[%d]", path, j), w); err != nil {
				return err
			}
		}
	}
	if st.Timer != "" {
		set++
		switch st.Timer {
		case timerPause, timerResume,
			string(timer.ActionStart), string(timer.ActionSplit), string(timer.ActionReset),
			string(timer.ActionSkipSplit), string(timer.ActionUndoSplit):
		default:
			return fmt.Errorf("%s: unknown timer operation %q", path, st.Timer)
		}
	}

	if set != 1 {
		return fmt.Errorf("%s: exactly one of tick, advance, spawn, exit, write, timer is required", path)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == nil || a.Event.Kind == "" {
			return fmt.Errorf("assertions[%d]: event with kind is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for j, e := range a.Events {
			if e.Kind == "" {
				return fmt.Errorf("assertions[%d].events[%d]: kind is required", index, j)
			}
		}
	case AssertTraceCount:
		if a.Event == nil || a.Event.Kind == "" {
			return fmt.Errorf("assertions[%d]: event with kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for k := range a.Expect {
			if !finalStateKeys[k] {
				return fmt.Errorf("assertions[%d]: unknown final_state key %q", index, k)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
