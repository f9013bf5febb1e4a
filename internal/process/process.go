package process

import (
	"errors"
	"time"
)

var (
	// ErrExited is returned by memory reads on a process that has exited.
	// The runtime treats it as "process gone" on the next tick.
	ErrExited = errors.New("process exited")

	// ErrNotMapped is returned when an address is not inside any mapped region.
	ErrNotMapped = errors.New("address not mapped")

	// ErrModuleNotFound is returned by ModuleBase when no module matches.
	ErrModuleNotFound = errors.New("module not found")

	// ErrUnsupported is returned by listers that cannot run on this platform.
	ErrUnsupported = errors.New("process enumeration not supported on this platform")
)

// Handle is an attached, read-only view of one process instance.
// Dropping a Handle never affects the external process.
type Handle interface {
	// PID returns the operating system process id.
	PID() int

	// Name returns the process name the instance was found under.
	Name() string

	// StartTime reports when the instance started. Used to prefer the most
	// recently started instance when several share a name.
	StartTime() time.Time

	// HasExited reports whether the instance is gone.
	HasExited() bool

	// ReadMemory fills buf from the process address space starting at addr.
	// Returns ErrExited if the process exited mid-read.
	ReadMemory(addr uint64, buf []byte) error

	// ModuleBase returns the load address of a module. The empty name means
	// the main executable.
	ModuleBase(module string) (uint64, error)
}

// Lister enumerates live processes by name.
type Lister interface {
	// Find returns all instances currently registered under name, in no
	// particular order. Instances may already have exited.
	Find(name string) ([]Handle, error)
}

// Newest returns the most recently started instance that has not exited,
// or nil when there is none.
func Newest(handles []Handle) Handle {
	var best Handle
	for _, h := range handles {
		if h == nil || h.HasExited() {
			continue
		}
		if best == nil || h.StartTime().After(best.StartTime()) {
			best = h
		}
	}
	return best
}

// Info is a loggable summary of a handle.
type Info struct {
	PID       int       `json:"pid"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
}

// Describe returns the Info for h. A nil handle yields the zero Info.
func Describe(h Handle) Info {
	if h == nil {
		return Info{}
	}
	return Info{PID: h.PID(), Name: h.Name(), StartTime: h.StartTime()}
}
