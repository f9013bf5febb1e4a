package timer

import (
	"fmt"
	"time"
)

// Phase is the timer's run phase.
type Phase int

const (
	NotRunning Phase = iota
	Running
	Paused
	Ended
)

func (p Phase) String() string {
	switch p {
	case NotRunning:
		return "NotRunning"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Ended:
		return "Ended"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// EventKind identifies a timer notification.
type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventReset
	EventSplit
	EventSkipSplit
	EventUndoSplit
	EventPaused
	EventResumed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventReset:
		return "reset"
	case EventSplit:
		return "split"
	case EventSkipSplit:
		return "skip_split"
	case EventUndoSplit:
		return "undo_split"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one notification. Phase and SplitIndex describe the timer after
// the change.
type Event struct {
	Kind       EventKind
	Phase      Phase
	SplitIndex int
}

// Listener receives notifications. Listeners run synchronously on the
// goroutine that caused the change, in subscription order.
type Listener func(Event)

// SubscriptionID identifies one Subscribe call.
type SubscriptionID uint64

// Public is the read-only timer view handed to script callbacks.
type Public struct {
	Phase               Phase
	SplitIndex          int // -1 when not running
	SplitCount          int
	RealTime            time.Duration
	GameTime            time.Duration
	GameTimeInitialized bool
	GameTimePaused      bool
}

// Facade is what the runtime needs from a host timer.
type Facade interface {
	Start()
	Split()
	Reset()
	SkipSplit()
	UndoSplit()

	Phase() Phase
	Public() Public

	GameTimeInitialized() bool
	InitializeGameTime()
	GameTimePaused() bool
	SetGameTimePaused(paused bool)
	SetGameTime(d time.Duration)

	Subscribe(l Listener) SubscriptionID
	Unsubscribe(id SubscriptionID)
}

// Action names a request the runtime made of the facade.
type Action string

const (
	ActionStart     Action = "start"
	ActionSplit     Action = "split"
	ActionReset     Action = "reset"
	ActionSkipSplit Action = "skip_split"
	ActionUndoSplit Action = "undo_split"
)

// Apply performs a on f.
func Apply(f Facade, a Action) error {
	switch a {
	case ActionStart:
		f.Start()
	case ActionSplit:
		f.Split()
	case ActionReset:
		f.Reset()
	case ActionSkipSplit:
		f.SkipSplit()
	case ActionUndoSplit:
		f.UndoSplit()
	default:
		return fmt.Errorf("unknown timer action %q", a)
	}
	return nil
}
