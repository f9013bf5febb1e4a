package script

import (
	"github.com/roach88/splitscript/internal/ir"
	"github.com/roach88/splitscript/internal/process"
	"github.com/roach88/splitscript/internal/timer"
)

// Vars is the script's variable bag. It survives across ticks and descriptor
// switches.
type Vars = ir.Object

// SettingsAccessor is the toggle view a method sees. Add only succeeds while
// the accessor is writable (during startup).
type SettingsAccessor interface {
	Get(id string) (value bool, ok bool)
	Add(id string, def bool, description string) error
	Writable() bool
}

// Context is threaded through every method call. The runtime builds one per
// call from its own state and copies the mutable fields back afterwards.
type Context struct {
	Timer       timer.Public
	Vars        Vars
	Version     string
	RefreshRate float64
	Settings    SettingsAccessor

	// Old and Current are the previous and latest snapshots of the active
	// descriptor. Both are nil when no process is attached.
	Old     ir.Object
	Current ir.Object

	// Game is the attached process, nil when detached.
	Game process.Handle
}
