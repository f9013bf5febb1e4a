package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/splitscript/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	State        FinalState   `json:"state"`
}

// toCanonicalMap converts a TraceSnapshot to IR for canonical JSON
// serialization. Empty record fields are omitted.
func (s *TraceSnapshot) toCanonicalMap() ir.Object {
	traceList := make(ir.Array, len(s.Trace))
	for i, event := range s.Trace {
		m := ir.Object{
			"seq":  ir.Int(event.Seq),
			"kind": ir.String(event.Kind),
		}
		setString(m, "from", event.From)
		setString(m, "to", event.To)
		setString(m, "process", event.Process)
		if event.PID != 0 {
			m["pid"] = ir.Int(event.PID)
		}
		setString(m, "version", event.Version)
		setString(m, "action", event.Action)
		setString(m, "method", event.Method)
		setString(m, "detail", event.Detail)
		traceList[i] = m
	}

	vars := s.State.Vars
	if vars == nil {
		vars = ir.Object{}
	}
	return ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"trace":         traceList,
		"state": ir.Object{
			"state":        ir.String(s.State.State),
			"phase":        ir.String(s.State.Phase),
			"split_index":  ir.Int(s.State.SplitIndex),
			"version":      ir.String(s.State.Version),
			"refresh_rate": ir.Float(s.State.RefreshRate),
			"attached_pid": ir.Int(s.State.AttachedPID),
			"vars":         vars,
		},
	}
}

func setString(m ir.Object, key, v string) {
	if v != "" {
		m[key] = ir.String(v)
	}
}

// MarshalSnapshot renders a result as canonical JSON.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		State:        result.State,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
