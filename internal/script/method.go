package script

import (
	"fmt"
	"sync"
)

// MethodName is one of the fixed callback names a script may define.
type MethodName string

const (
	MethodStartup  MethodName = "startup"
	MethodShutdown MethodName = "shutdown"
	MethodInit     MethodName = "init"
	MethodExit     MethodName = "exit"
	MethodUpdate   MethodName = "update"

	MethodStart     MethodName = "start"
	MethodSplit     MethodName = "split"
	MethodReset     MethodName = "reset"
	MethodIsLoading MethodName = "isLoading"
	MethodGameTime  MethodName = "gameTime"

	MethodOnStart     MethodName = "onStart"
	MethodOnReset     MethodName = "onReset"
	MethodOnSplit     MethodName = "onSplit"
	MethodOnSkipSplit MethodName = "onSkipSplit"
	MethodOnUndoSplit MethodName = "onUndoSplit"
	MethodOnPause     MethodName = "onPause"
	MethodOnResume    MethodName = "onResume"
)

// MethodNames lists every method name in canonical order.
var MethodNames = []MethodName{
	MethodStartup, MethodShutdown, MethodInit, MethodExit, MethodUpdate,
	MethodStart, MethodSplit, MethodReset, MethodIsLoading, MethodGameTime,
	MethodOnStart, MethodOnReset, MethodOnSplit, MethodOnSkipSplit,
	MethodOnUndoSplit, MethodOnPause, MethodOnResume,
}

// GatingMethods are the methods whose true result requests a timer action.
// Each has a basic toggle of the same name.
var GatingMethods = []MethodName{MethodStart, MethodSplit, MethodReset}

// Valid reports whether n is in the fixed set.
func (n MethodName) Valid() bool {
	for _, m := range MethodNames {
		if m == n {
			return true
		}
	}
	return false
}

// IsEvent reports whether n is a timer event callback.
func (n MethodName) IsEvent() bool {
	switch n {
	case MethodOnStart, MethodOnReset, MethodOnSplit, MethodOnSkipSplit,
		MethodOnUndoSplit, MethodOnPause, MethodOnResume:
		return true
	}
	return false
}

// Method is a script callback. It may mutate ctx (vars, version, refresh
// rate) and returns an optional value.
type Method func(ctx *Context) (Result, error)

// Slot is a named method or the empty sentinel.
type Slot struct {
	name MethodName
	fn   Method
}

// Name returns the slot's method name.
func (s Slot) Name() MethodName { return s.name }

// IsEmpty reports whether the script left this method undefined.
func (s Slot) IsEmpty() bool { return s.fn == nil }

// Call invokes the method. An empty slot yields Absent.
func (s Slot) Call(ctx *Context) (Result, error) {
	if s.fn == nil {
		return Absent(), nil
	}
	return s.fn(ctx)
}

// MethodTable maps every method name to a slot. It is immutable once built.
type MethodTable struct {
	source string
	slots  map[MethodName]Slot

	closeOnce sync.Once
	closer    func()
}

// NewMethodTable builds a table from Go funcs. Unknown names are rejected;
// nil funcs leave the slot empty.
func NewMethodTable(source string, methods map[MethodName]Method) (*MethodTable, error) {
	t := &MethodTable{source: source, slots: make(map[MethodName]Slot, len(MethodNames))}
	for name, fn := range methods {
		if !name.Valid() {
			return nil, fmt.Errorf("unknown method %q", name)
		}
		if fn != nil {
			t.slots[name] = Slot{name: name, fn: fn}
		}
	}
	return t, nil
}

// MustMethodTable is NewMethodTable that panics on error. For tests.
func MustMethodTable(source string, methods map[MethodName]Method) *MethodTable {
	t, err := NewMethodTable(source, methods)
	if err != nil {
		panic(err)
	}
	return t
}

// Source names where the table came from (a file path or chunk name).
func (t *MethodTable) Source() string { return t.source }

// Slot returns the slot for name. Undefined names give an empty slot.
func (t *MethodTable) Slot(name MethodName) Slot {
	if s, ok := t.slots[name]; ok {
		return s
	}
	return Slot{name: name}
}

// Defined reports whether the script defines name.
func (t *MethodTable) Defined(name MethodName) bool {
	return !t.Slot(name).IsEmpty()
}

// DefinedNames returns the defined methods in canonical order.
func (t *MethodTable) DefinedNames() []MethodName {
	var out []MethodName
	for _, n := range MethodNames {
		if t.Defined(n) {
			out = append(out, n)
		}
	}
	return out
}

// Call invokes the named method.
func (t *MethodTable) Call(name MethodName, ctx *Context) (Result, error) {
	return t.Slot(name).Call(ctx)
}

// Close releases interpreter resources. It is safe to call more than once.
func (t *MethodTable) Close() {
	t.closeOnce.Do(func() {
		if t.closer != nil {
			t.closer()
		}
	})
}
