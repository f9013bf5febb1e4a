package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/splitscript/internal/compiler"
	"github.com/roach88/splitscript/internal/engine"
	"github.com/roach88/splitscript/internal/process"
	"github.com/roach88/splitscript/internal/script"
	"github.com/roach88/splitscript/internal/state"
	"github.com/roach88/splitscript/internal/testutil"
	"github.com/roach88/splitscript/internal/timer"
)

// Harness executes one scenario against a real runtime.
type Harness struct {
	clock   *testutil.DeterministicClock
	lister  *process.SimulatedLister
	model   *timer.Model
	runtime *engine.Runtime
	obs     *engine.RecordingObserver
	logger  *slog.Logger
	result  *Result
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *slog.Logger
}

// WithLogger sends runtime and script logs to logger instead of discarding
// them.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// Run executes a test scenario and returns the result.
//
// Each run gets fresh simulated processes, a fresh timer and a wall clock
// that only moves on advance steps, so traces are reproducible.
//
// Execution flow:
// 1. Load the script and compile the descriptors
// 2. Run startup and apply toggle overrides
// 3. Execute steps
// 4. Capture the final state, then run shutdown
// 5. Evaluate assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	methods, err := script.LoadLua(scenario.ScriptPath(), script.WithLuaLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	defer methods.Close()

	loaded, errs := compiler.LoadDir(scenario.DescriptorDir(), compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load descriptors: %w", errs[0])
	}

	clock := testutil.NewDeterministicClock(time.Time{})
	h := &Harness{
		clock:  clock,
		lister: process.NewSimulatedLister(),
		model:  timer.NewModel(scenario.Splits, timer.WithNow(clock.Now)),
		obs:    &engine.RecordingObserver{},
		logger: cfg.logger,
		result: NewResult(),
	}

	h.runtime, err = engine.New(methods, loaded.Registry, h.lister, h.model,
		engine.WithLogger(cfg.logger),
		engine.WithObserver(h.obs),
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(scenario.RuntimeID)),
		engine.WithNow(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	defer h.runtime.Close()

	settings, err := h.runtime.RunStartup()
	if err != nil {
		return nil, err
	}
	if unknown := settings.Apply(scenario.Settings); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown settings: %v", unknown)
	}

	for _, p := range scenario.Processes {
		if err := h.spawn(p); err != nil {
			return nil, err
		}
	}

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	h.result.State = h.finalState()

	if err := h.runtime.RunShutdown(); err != nil {
		h.result.TickErrors = append(h.result.TickErrors, err.Error())
	}

	for _, rec := range h.obs.Records() {
		h.result.Trace = append(h.result.Trace, traceEventFrom(rec))
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) executeStep(ctx context.Context, st Step) error {
	switch {
	case st.Tick > 0:
		for n := 0; n < st.Tick; n++ {
			if err := h.runtime.Tick(ctx); err != nil {
				h.result.TickErrors = append(h.result.TickErrors, err.Error())
				h.logger.Debug("tick failed", "error", err)
			}
		}
	case st.Advance != "":
		d, err := time.ParseDuration(st.Advance)
		if err != nil {
			return err
		}
		h.clock.Advance(d)
	case st.Spawn != nil:
		return h.spawn(*st.Spawn)
	case st.Exit != 0:
		p, ok := h.lister.Get(st.Exit)
		if !ok {
			return fmt.Errorf("exit: no process with pid %d", st.Exit)
		}
		p.Exit()
		h.lister.Remove(st.Exit)
	case len(st.Write) > 0:
		for _, w := range st.Write {
			p, ok := h.lister.Get(w.PID)
			if !ok {
				return fmt.Errorf("write: no process with pid %d", w.PID)
			}
			if err := writeMemory(p, w); err != nil {
				return err
			}
		}
	case st.Timer != "":
		return h.driveTimer(st.Timer)
	}
	return nil
}

func (h *Harness) spawn(spec ProcessSpec) error {
	if _, ok := h.lister.Get(spec.PID); ok {
		return fmt.Errorf("spawn: pid %d already running", spec.PID)
	}
	p := process.NewSimulated(spec.PID, spec.Name, h.clock.Now())
	for module, base := range spec.Modules {
		p.SetModule(module, base)
	}
	for _, w := range spec.Memory {
		if err := writeMemory(p, w); err != nil {
			return err
		}
	}
	h.lister.Add(p)
	return nil
}

// driveTimer performs a host-side timer operation. Listeners fire on this
// goroutine, so the runtime's event callbacks run before it returns.
func (h *Harness) driveTimer(op string) error {
	switch op {
	case timerPause:
		h.model.Pause()
	case timerResume:
		h.model.Resume()
	default:
		return timer.Apply(h.model, timer.Action(op))
	}
	return nil
}

func (h *Harness) finalState() FinalState {
	fs := FinalState{
		State:       h.runtime.State().String(),
		Phase:       h.model.Phase().String(),
		SplitIndex:  h.model.SplitIndex(),
		Version:     h.runtime.Version(),
		RefreshRate: h.runtime.RefreshRate(),
		Vars:        h.runtime.Vars(),
	}
	if info, ok := h.runtime.Attached(); ok {
		fs.AttachedPID = info.PID
	}
	return fs
}

// writeMemory stores w.Value in p using the width and encoding of w.Type.
func writeMemory(p *process.Simulated, w MemoryWrite) error {
	switch w.Type {
	case state.TypeBool:
		b, ok := w.Value.(bool)
		if !ok {
			return fmt.Errorf("write 0x%x: %s needs a bool, got %T", w.Addr, w.Type, w.Value)
		}
		p.WriteBool(w.Addr, b)
	case state.TypeString:
		s, ok := w.Value.(string)
		if !ok {
			return fmt.Errorf("write 0x%x: %s needs a string, got %T", w.Addr, w.Type, w.Value)
		}
		p.WriteString(w.Addr, s)
	case state.TypeFloat, state.TypeDouble:
		f, ok := toFloat(w.Value)
		if !ok {
			return fmt.Errorf("write 0x%x: %s needs a number, got %T", w.Addr, w.Type, w.Value)
		}
		if w.Type == state.TypeFloat {
			p.WriteFloat32(w.Addr, float32(f))
		} else {
			p.WriteFloat64(w.Addr, f)
		}
	case state.TypeByte, state.TypeUShort, state.TypeUInt, state.TypeULong:
		n, ok := toInt(w.Value)
		if !ok || n < 0 {
			return fmt.Errorf("write 0x%x: %s needs a non-negative integer, got %v", w.Addr, w.Type, w.Value)
		}
		p.WriteUint(w.Addr, w.Type.Size(), uint64(n))
	case state.TypeSByte, state.TypeShort, state.TypeInt, state.TypeLong:
		n, ok := toInt(w.Value)
		if !ok {
			return fmt.Errorf("write 0x%x: %s needs an integer, got %v", w.Addr, w.Type, w.Value)
		}
		p.WriteInt(w.Addr, w.Type.Size(), n)
	default:
		return fmt.Errorf("write 0x%x: unsupported type %q", w.Addr, w.Type)
	}
	return nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
