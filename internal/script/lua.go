package script

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"

	"github.com/roach88/splitscript/internal/ir"
)

// Globals a Lua method sees during a call.
const (
	globalVars        = "vars"
	globalOld         = "old"
	globalCurrent     = "current"
	globalVersion     = "version"
	globalRefreshRate = "refresh_rate"
	globalSettings    = "settings"
	globalGame        = "game"
	globalTimer       = "timer"
)

// LuaOption configures LoadLua and LoadLuaString.
type LuaOption func(*luaConfig)

type luaConfig struct {
	logger *slog.Logger
}

// WithLuaLogger routes the script's print calls to logger.
func WithLuaLogger(logger *slog.Logger) LuaOption {
	return func(c *luaConfig) {
		c.logger = logger
	}
}

// varsRegistryKey names the registry slot holding the vars table kept
// between calls.
const varsRegistryKey = "splitscript.vars"

// luaScript owns one interpreter. Calls are serialized by mu.
//
// The vars table of the last successful call stays in the registry so key
// types and values without an ir form survive between calls. exported is
// the Go view handed out with it; a caller passing anything else gets a
// table rebuilt from its Vars.
type luaScript struct {
	mu       sync.Mutex
	state    *lua.State
	source   string
	logger   *slog.Logger
	hasVars  bool
	exported Vars
}

// LoadLua builds a MethodTable from the Lua file at path. Global functions
// whose names match a method name fill the matching slots.
func LoadLua(path string, opts ...LuaOption) (*MethodTable, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return LoadLuaString(path, string(src), opts...)
}

// LoadLuaString is LoadLua over an in-memory chunk.
func LoadLuaString(name, src string, opts ...LuaOption) (*MethodTable, error) {
	cfg := luaConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	state := lua.NewState()
	lua.OpenLibraries(state)
	registerPrint(state, cfg.logger, name)

	if err := lua.LoadBuffer(state, src, "@"+name, ""); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	s := &luaScript{state: state, source: name, logger: cfg.logger}
	methods := make(map[MethodName]Method)
	for _, n := range MethodNames {
		state.Global(string(n))
		if state.IsFunction(-1) {
			methods[n] = s.method(n)
		}
		state.Pop(1)
	}

	t, err := NewMethodTable(name, methods)
	if err != nil {
		return nil, err
	}
	t.closer = s.close
	return t, nil
}

func registerPrint(state *lua.State, logger *slog.Logger, source string) {
	state.PushGoFunction(func(l *lua.State) int {
		n := l.Top()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, luaDisplay(l, i))
		}
		logger.Info("script print", "source", source, "message", strings.Join(parts, "\t"))
		return 0
	})
	state.SetGlobal("print")
}

func luaDisplay(l *lua.State, index int) string {
	switch l.TypeOf(index) {
	case lua.TypeNil:
		return "nil"
	case lua.TypeBoolean:
		if l.ToBoolean(index) {
			return "true"
		}
		return "false"
	case lua.TypeString, lua.TypeNumber:
		s, _ := l.ToString(index)
		return s
	}
	return lua.TypeNameOf(l, index)
}

func (s *luaScript) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nil
}

func (s *luaScript) method(name MethodName) Method {
	return func(ctx *Context) (Result, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == nil {
			return Absent(), fmt.Errorf("%s: script closed", name)
		}
		return s.call(name, ctx)
	}
}

func (s *luaScript) call(name MethodName, ctx *Context) (Result, error) {
	l := s.state
	top := l.Top()
	defer l.SetTop(top)

	if err := s.pushContext(ctx); err != nil {
		return Absent(), fmt.Errorf("%s: %w", name, err)
	}

	l.Global(string(name))
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return Absent(), fmt.Errorf("%s: %w", name, err)
	}
	ret, err := strict.value(l, -1, 0)
	if err != nil {
		return Absent(), fmt.Errorf("%s: return value: %w", name, err)
	}
	l.Pop(1)

	if err := s.pullContext(ctx); err != nil {
		return Absent(), fmt.Errorf("%s: %w", name, err)
	}
	return Some(ret), nil
}

// pushContext publishes ctx as globals.
func (s *luaScript) pushContext(ctx *Context) error {
	l := s.state

	if err := s.pushVars(ctx.Vars); err != nil {
		return fmt.Errorf("vars: %w", err)
	}
	l.SetGlobal(globalVars)

	if err := pushSnapshot(l, ctx.Old); err != nil {
		return fmt.Errorf("old: %w", err)
	}
	l.SetGlobal(globalOld)
	if err := pushSnapshot(l, ctx.Current); err != nil {
		return fmt.Errorf("current: %w", err)
	}
	l.SetGlobal(globalCurrent)

	l.PushString(ctx.Version)
	l.SetGlobal(globalVersion)
	l.PushNumber(ctx.RefreshRate)
	l.SetGlobal(globalRefreshRate)

	pushSettings(l, ctx.Settings)
	l.SetGlobal(globalSettings)

	if ctx.Game == nil {
		l.PushNil()
	} else {
		l.NewTable()
		l.PushInteger(ctx.Game.PID())
		l.SetField(-2, "pid")
		l.PushString(ctx.Game.Name())
		l.SetField(-2, "name")
	}
	l.SetGlobal(globalGame)

	l.NewTable()
	l.PushString(ctx.Timer.Phase.String())
	l.SetField(-2, "phase")
	l.PushInteger(ctx.Timer.SplitIndex)
	l.SetField(-2, "split_index")
	l.PushInteger(ctx.Timer.SplitCount)
	l.SetField(-2, "split_count")
	l.PushNumber(ctx.Timer.RealTime.Seconds())
	l.SetField(-2, "real_time")
	l.PushNumber(ctx.Timer.GameTime.Seconds())
	l.SetField(-2, "game_time")
	l.PushBoolean(ctx.Timer.GameTimePaused)
	l.SetField(-2, "game_time_paused")
	l.SetGlobal(globalTimer)
	return nil
}

// pullContext copies the mutable globals back into ctx.
func (s *luaScript) pullContext(ctx *Context) error {
	l := s.state

	l.Global(globalVars)
	switch l.TypeOf(-1) {
	case lua.TypeNil:
		l.PushNil()
		l.SetField(lua.RegistryIndex, varsRegistryKey)
		s.hasVars, s.exported = false, nil
		ctx.Vars = Vars{}
	case lua.TypeTable:
		view, err := s.varsDecoder().object(l, -1, 0)
		if err != nil {
			l.Pop(1)
			return fmt.Errorf("vars: %w", err)
		}
		l.PushValue(-1)
		l.SetField(lua.RegistryIndex, varsRegistryKey)
		s.hasVars, s.exported = true, view.Clone()
		ctx.Vars = view
	default:
		t := lua.TypeNameOf(l, -1)
		l.Pop(1)
		return fmt.Errorf("vars must be a table, got %s", t)
	}
	l.Pop(1)

	l.Global(globalVersion)
	if l.TypeOf(-1) == lua.TypeString {
		ctx.Version, _ = l.ToString(-1)
	} else if l.TypeOf(-1) == lua.TypeNil {
		ctx.Version = ""
	}
	l.Pop(1)

	l.Global(globalRefreshRate)
	if l.TypeOf(-1) == lua.TypeNumber {
		ctx.RefreshRate, _ = l.ToNumber(-1)
	}
	l.Pop(1)
	return nil
}

// pushVars pushes the table a call sees as vars. When vars is the view of
// the kept table, a copy of that table is pushed so a failed call leaves
// it untouched.
func (s *luaScript) pushVars(vars Vars) error {
	l := s.state
	if !s.hasVars || !ir.Equal(vars, s.exported) {
		if vars == nil {
			vars = Vars{}
		}
		return pushValue(l, vars)
	}
	l.Field(lua.RegistryIndex, varsRegistryKey)
	if err := copyTable(l, -1, 0); err != nil {
		return err
	}
	l.Remove(-2)
	return nil
}

// varsDecoder drops vars entries without an ir form from the Go view. They
// stay in the kept table.
func (s *luaScript) varsDecoder() decoder {
	return decoder{onSkip: func(key, luaType string) {
		s.logger.Debug("vars entry not exported", "source", s.source, "key", key, "type", luaType)
	}}
}

func pushSnapshot(l *lua.State, snap ir.Object) error {
	if snap == nil {
		l.PushNil()
		return nil
	}
	return pushValue(l, snap)
}

func pushSettings(l *lua.State, acc SettingsAccessor) {
	l.NewTable()
	l.PushGoFunction(func(l *lua.State) int {
		id := lua.CheckString(l, 1)
		if acc == nil {
			l.PushNil()
			return 1
		}
		v, ok := acc.Get(id)
		if !ok {
			l.PushNil()
			return 1
		}
		l.PushBoolean(v)
		return 1
	})
	l.SetField(-2, "get")
	l.PushGoFunction(func(l *lua.State) int {
		id := lua.CheckString(l, 1)
		def := true
		if !l.IsNoneOrNil(2) {
			def = l.ToBoolean(2)
		}
		desc := lua.OptString(l, 3, id)
		if acc == nil {
			lua.Errorf(l, "settings unavailable")
			return 0
		}
		if err := acc.Add(id, def, desc); err != nil {
			lua.Errorf(l, "%s", err.Error())
		}
		return 0
	})
	l.SetField(-2, "add")
	l.PushGoFunction(func(l *lua.State) int {
		l.PushBoolean(acc != nil && acc.Writable())
		return 1
	})
	l.SetField(-2, "writable")
}
