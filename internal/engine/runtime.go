package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/splitscript/internal/ir"
	"github.com/roach88/splitscript/internal/process"
	"github.com/roach88/splitscript/internal/script"
	"github.com/roach88/splitscript/internal/state"
	"github.com/roach88/splitscript/internal/timer"
)

// Basic toggle descriptions, keyed by the gating method they guard.
var basicToggles = []struct {
	method      script.MethodName
	description string
}{
	{script.MethodStart, "Start"},
	{script.MethodSplit, "Split"},
	{script.MethodReset, "Reset"},
}

// Runtime drives one script against the processes its descriptors name.
//
// Thread-safety: all methods are safe for concurrent use. Script calls are
// serialized; see the package documentation.
type Runtime struct {
	mu sync.Mutex

	methods  *script.MethodTable
	registry *state.Registry
	lister   process.Lister
	facade   timer.Facade
	settings *Settings

	logger        *slog.Logger
	observer      Observer
	clock         *Clock
	ids           IDGenerator
	id            string
	onRefreshRate func(float64)
	slowCall      time.Duration
	now           func() time.Time

	queue *eventQueue
	sub   timer.SubscriptionID

	// Guarded by mu.
	state        State
	handle       process.Handle
	active       *state.Descriptor
	lost         bool
	vars         script.Vars
	version      string
	refreshRate  float64
	startupDone  bool
	shutdownDone bool
	closed       bool

	infoMu sync.RWMutex
	info   status
}

// status is the copy of runtime state getters read without taking mu, so
// hosts may query it from timer listeners and refresh rate callbacks.
type status struct {
	state       State
	attached    bool
	process     string
	pid         int
	version     string
	refreshRate float64
}

// New creates a runtime for methods, registers the basic toggles of the
// gating methods it defines and subscribes to facade.
//
// The runtime does not take ownership of methods; the caller closes it after
// Close.
func New(methods *script.MethodTable, registry *state.Registry, lister process.Lister, facade timer.Facade, opts ...Option) (*Runtime, error) {
	switch {
	case methods == nil:
		return nil, &RuntimeError{Code: ErrCodeInvalidConfig, Message: "method table is nil"}
	case registry == nil:
		return nil, &RuntimeError{Code: ErrCodeInvalidConfig, Message: "descriptor registry is nil"}
	case lister == nil:
		return nil, &RuntimeError{Code: ErrCodeInvalidConfig, Message: "process lister is nil"}
	case facade == nil:
		return nil, &RuntimeError{Code: ErrCodeInvalidConfig, Message: "timer facade is nil"}
	}

	r := &Runtime{
		methods:     methods,
		registry:    registry,
		lister:      lister,
		facade:      facade,
		settings:    NewSettings(),
		logger:      slog.Default(),
		observer:    nopObserver{},
		clock:       NewClock(),
		ids:         UUIDv7Generator{},
		now:         time.Now,
		queue:       newEventQueue(),
		state:       Disconnected,
		vars:        script.Vars{},
		refreshRate: DefaultRefreshRate,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.id == "" {
		r.id = r.ids.Generate()
	}
	r.logger = r.logger.With("runtime", r.id)

	for _, bt := range basicToggles {
		if !methods.Defined(bt.method) {
			continue
		}
		if err := r.settings.add(Setting{
			ID:          string(bt.method),
			Value:       true,
			Default:     true,
			Description: bt.description,
			Basic:       true,
		}); err != nil {
			return nil, fmt.Errorf("register basic toggle: %w", err)
		}
	}

	r.publishLocked()
	r.sub = facade.Subscribe(r.onTimerEvent)

	r.logger.Debug("runtime created",
		"script", methods.Source(),
		"methods", len(methods.DefinedNames()),
		"processes", registry.Processes())
	return r, nil
}

// InstanceID returns the id carried by every log line and record.
func (r *Runtime) InstanceID() string { return r.id }

// Settings returns the live toggle set. The host may Set values at any time.
func (r *Runtime) Settings() *Settings { return r.settings }

// State returns the attachment state as of the last completed operation.
func (r *Runtime) State() State {
	r.infoMu.RLock()
	defer r.infoMu.RUnlock()
	return r.info.state
}

// Attached returns the attached process, if any.
func (r *Runtime) Attached() (process.Info, bool) {
	r.infoMu.RLock()
	defer r.infoMu.RUnlock()
	if !r.info.attached {
		return process.Info{}, false
	}
	return process.Info{PID: r.info.pid, Name: r.info.process}, true
}

// Version returns the version detected by the last init.
func (r *Runtime) Version() string {
	r.infoMu.RLock()
	defer r.infoMu.RUnlock()
	return r.info.version
}

// RefreshRate returns the tick cadence the script asks for, in ticks per
// second. The runtime never ticks itself.
func (r *Runtime) RefreshRate() float64 {
	r.infoMu.RLock()
	defer r.infoMu.RUnlock()
	return r.info.refreshRate
}

// Vars returns a copy of the script's variables. It takes the runtime lock
// and must not be called from a timer listener.
func (r *Runtime) Vars() script.Vars {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vars.Clone()
}

// Tick advances the state machine by one step.
func (r *Runtime) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := r.withLock(func() error {
		err := r.tickLocked()
		r.drainLocked()
		if name, ok := IsCallError(err); ok {
			r.record(Record{Kind: RecordMethodFailed, Method: string(name), Detail: err.Error()})
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	return nil
}

// RunStartup runs the startup method with writable toggles and no process,
// then returns the full toggle set. It runs at most once.
func (r *Runtime) RunStartup() (*Settings, error) {
	err := r.withLock(func() error {
		return r.lifecycleLocked(script.MethodStartup, &r.startupDone, callWritable)
	})
	if err != nil {
		return r.settings, fmt.Errorf("startup: %w", err)
	}
	return r.settings, nil
}

// RunShutdown runs the shutdown method with read-only toggles and no
// process. It runs at most once.
func (r *Runtime) RunShutdown() error {
	err := r.withLock(func() error {
		return r.lifecycleLocked(script.MethodShutdown, &r.shutdownDone, 0)
	})
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (r *Runtime) lifecycleLocked(name script.MethodName, done *bool, mode callMode) error {
	if r.closed {
		return ErrClosed
	}
	if *done {
		return &RuntimeError{Code: ErrCodeLifecycle, Message: fmt.Sprintf("%s already ran", name)}
	}
	*done = true

	_, _, err := r.callLocked(name, mode|callDetached)
	r.drainLocked()
	if err != nil {
		r.record(Record{Kind: RecordMethodFailed, Method: string(name), Detail: err.Error()})
	}
	return err
}

// withLock runs fn under mu, publishes the resulting status and then drains
// any notification that arrived meanwhile.
func (r *Runtime) withLock(fn func() error) error {
	err := func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		defer r.publishLocked()
		return fn()
	}()
	r.pump()
	return err
}

// Close unsubscribes from the timer and drops pending notifications. The
// attached process, if any, is released without running exit. Close is
// idempotent.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.queue.Close()
	r.facade.Unsubscribe(r.sub)
	r.handle = nil
	if r.active != nil {
		r.active.Clear()
		r.active = nil
	}
	r.publishLocked()
	r.logger.Debug("runtime closed")
	return nil
}

func (r *Runtime) tickLocked() error {
	if r.closed {
		return ErrClosed
	}

	if r.state == Initializing || r.state == Running {
		if r.lost || r.handle.HasExited() {
			return r.exitLocked()
		}
	}

	switch r.state {
	case Disconnected:
		return r.connectLocked()
	case Initializing:
		return r.initializeLocked()
	case Running:
		return r.runLocked()
	case Exited:
		return r.exitLocked()
	}
	return nil
}

// connectLocked searches the registered processes in registration order and
// attaches to the newest live instance of the first one found.
func (r *Runtime) connectLocked() error {
	for _, name := range r.registry.Processes() {
		handles, err := r.lister.Find(name)
		if err != nil {
			return &RuntimeError{Code: ErrCodeProcessList, Message: "find processes", Process: name, Err: err}
		}
		h := process.Newest(handles)
		if h == nil {
			continue
		}
		d, ok := r.registry.Default(name)
		if !ok {
			continue
		}

		r.handle = h
		r.active = d
		r.lost = false
		r.transitionLocked(Connecting)
		r.logger.Info("attached to process",
			"process", h.Name(),
			"pid", h.PID(),
			"descriptor", d.String())
		r.transitionLocked(Initializing)
		return nil
	}
	return nil
}

func (r *Runtime) initializeLocked() error {
	if err := r.active.Rebase(r.handle); err != nil {
		if errors.Is(err, process.ErrExited) {
			r.lost = true
			return r.exitLocked()
		}
		return r.sampleError(err)
	}

	r.version = ""
	ctx, _, err := r.callLocked(script.MethodInit, callInit)
	if err != nil {
		return err
	}

	if ctx != nil && ctx.Version != "" {
		r.version = ctx.Version
		if err := r.resolveVersionLocked(); err != nil {
			return err
		}
	}

	r.transitionLocked(Running)
	return nil
}

// resolveVersionLocked switches to the exact descriptor for the detected
// version, keeping vars and refresh rate.
func (r *Runtime) resolveVersionLocked() error {
	processName := r.active.Process()
	d, ok := r.registry.Lookup(processName, r.version, false)
	if !ok {
		r.logger.Warn("no descriptor for detected version, keeping current",
			"process", processName,
			"version", r.version,
			"descriptor", r.active.String())
		r.record(Record{Kind: RecordDescriptorMiss, Process: processName, Version: r.version, Detail: r.active.String()})
		return nil
	}
	if d == r.active {
		return nil
	}

	if err := d.Rebase(r.handle); err != nil {
		if errors.Is(err, process.ErrExited) {
			r.lost = true
			return nil
		}
		return r.sampleError(err)
	}
	previous := r.active
	previous.Clear()
	r.active = d

	hash, err := d.LayoutHash()
	if err != nil {
		hash = ""
		r.logger.Warn("layout hash failed", "descriptor", d.String(), "error", err)
	}
	r.logger.Info("switched descriptor",
		"process", processName,
		"version", r.version,
		"from", previous.String(),
		"layout", hash)
	r.record(Record{Kind: RecordDescriptorSwitch, Process: processName, Version: r.version, Detail: hash})
	return nil
}

func (r *Runtime) runLocked() error {
	if err := r.active.Refresh(r.handle); err != nil {
		if errors.Is(err, process.ErrExited) {
			r.logger.Info("process gone during read", "pid", r.handle.PID())
			r.lost = true
			return nil
		}
		return r.sampleError(err)
	}

	proceed, err := r.gateLocked(script.MethodUpdate, true)
	if err != nil || !proceed {
		return err
	}

	if phase := r.facade.Phase(); phase == timer.Running || phase == timer.Paused {
		if err := r.gameTimeLocked(); err != nil {
			return err
		}

		reset, err := r.gateLocked(script.MethodReset, false)
		if err != nil {
			return err
		}
		if reset {
			r.actLocked(timer.ActionReset)
		} else {
			split, err := r.gateLocked(script.MethodSplit, false)
			if err != nil {
				return err
			}
			if split {
				r.actLocked(timer.ActionSplit)
			}
		}
	}

	if r.facade.Phase() == timer.NotRunning {
		start, err := r.gateLocked(script.MethodStart, false)
		if err != nil {
			return err
		}
		if start {
			r.actLocked(timer.ActionStart)
		}
	}
	return nil
}

// gameTimeLocked forwards isLoading and gameTime to the timer.
func (r *Runtime) gameTimeLocked() error {
	loading := r.methods.Defined(script.MethodIsLoading)
	gameTime := r.methods.Defined(script.MethodGameTime)
	if !loading && !gameTime {
		return nil
	}
	if !r.facade.GameTimeInitialized() {
		r.facade.InitializeGameTime()
		r.drainLocked()
	}

	if loading {
		_, res, err := r.callLocked(script.MethodIsLoading, 0)
		if err != nil {
			return err
		}
		if !res.IsAbsent() {
			paused, err := res.AsBool(script.MethodIsLoading, false)
			if err != nil {
				return &CallError{Method: script.MethodIsLoading, Err: err}
			}
			r.facade.SetGameTimePaused(paused)
			r.drainLocked()
		}
	}

	if gameTime {
		_, res, err := r.callLocked(script.MethodGameTime, 0)
		if err != nil {
			return err
		}
		seconds, ok, err := res.AsNumber(script.MethodGameTime)
		if err != nil {
			return &CallError{Method: script.MethodGameTime, Err: err}
		}
		if ok {
			r.facade.SetGameTime(time.Duration(seconds * float64(time.Second)))
			r.drainLocked()
		}
	}
	return nil
}

// gateLocked calls a boolean method. Absent yields def.
func (r *Runtime) gateLocked(name script.MethodName, def bool) (bool, error) {
	_, res, err := r.callLocked(name, 0)
	if err != nil {
		return false, err
	}
	v, err := res.AsBool(name, def)
	if err != nil {
		return false, &CallError{Method: name, Err: err}
	}
	return v, nil
}

// actLocked performs a gated timer action when its toggle is on, then runs
// any notification the action raised.
func (r *Runtime) actLocked(a timer.Action) {
	if !r.settings.Enabled(string(a)) {
		r.logger.Debug("timer action disabled by toggle", "action", a)
		return
	}
	if err := timer.Apply(r.facade, a); err != nil {
		r.logger.Error("timer action failed", "action", a, "error", err)
		return
	}
	r.record(Record{Kind: RecordTimerAction, Action: string(a)})
	r.drainLocked()
}

// exitLocked runs exit without a handle and returns to Disconnected. The
// handle and active descriptor are released even if exit fails.
func (r *Runtime) exitLocked() error {
	r.transitionLocked(Exited)
	r.logger.Info("process exited", "pid", pidOf(r.handle))

	r.handle = nil
	_, _, err := r.callLocked(script.MethodExit, 0)

	if r.active != nil {
		r.active.Clear()
		r.active = nil
	}
	r.lost = false
	r.version = ""
	r.transitionLocked(Disconnected)
	return err
}

func (r *Runtime) transitionLocked(to State) {
	from := r.state
	r.state = to
	rec := Record{Kind: RecordTransition, From: from.String(), To: to.String()}
	if r.handle != nil {
		rec.Process = r.handle.Name()
		rec.PID = r.handle.PID()
	}
	r.logger.Debug("state transition", "from", from, "to", to)
	r.record(rec)
	r.publishLocked()
}

func (r *Runtime) sampleError(err error) error {
	return &RuntimeError{
		Code:    ErrCodeSampleFailed,
		Message: "sample descriptor",
		Process: r.active.Process(),
		Err:     err,
	}
}

func (r *Runtime) record(rec Record) {
	rec.Seq = r.clock.Next()
	rec.Runtime = r.id
	r.observer.Observe(rec)
}

func (r *Runtime) publishLocked() {
	st := status{
		state:       r.state,
		version:     r.version,
		refreshRate: r.refreshRate,
	}
	if r.handle != nil {
		st.attached = true
		st.process = r.handle.Name()
		st.pid = r.handle.PID()
	}
	r.infoMu.Lock()
	r.info = st
	r.infoMu.Unlock()
}

func pidOf(h process.Handle) int {
	if h == nil {
		return 0
	}
	return h.PID()
}

// snapshotsLocked returns copies of the active descriptor's snapshots.
func (r *Runtime) snapshotsLocked() (old, current ir.Object) {
	if r.active == nil {
		return nil, nil
	}
	return r.active.Old(), r.active.Current()
}
