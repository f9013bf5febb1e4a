package engine

import (
	"fmt"
	"strconv"

	"github.com/roach88/splitscript/internal/script"
	"github.com/roach88/splitscript/internal/timer"
)

// eventMethods maps timer notifications to the callbacks they trigger.
var eventMethods = map[timer.EventKind]script.MethodName{
	timer.EventStarted:   script.MethodOnStart,
	timer.EventReset:     script.MethodOnReset,
	timer.EventSplit:     script.MethodOnSplit,
	timer.EventSkipSplit: script.MethodOnSkipSplit,
	timer.EventUndoSplit: script.MethodOnUndoSplit,
	timer.EventPaused:    script.MethodOnPause,
	timer.EventResumed:   script.MethodOnResume,
}

// onTimerEvent is the facade listener. It never blocks on the runtime lock.
func (r *Runtime) onTimerEvent(e timer.Event) {
	if !r.queue.Enqueue(e) {
		return
	}
	r.pump()
}

// pump drains the queue if the runtime is idle. Every holder of mu calls it
// after unlocking, so an event enqueued while the lock was held is never
// stranded.
func (r *Runtime) pump() {
	for r.queue.Len() > 0 && r.mu.TryLock() {
		r.drainLocked()
		r.mu.Unlock()
	}
}

func (r *Runtime) drainLocked() {
	for {
		e, ok := r.queue.TryDequeue()
		if !ok {
			return
		}
		r.runEventLocked(e)
	}
}

// runEventLocked invokes the callback for e. Failures are logged and
// recorded, never returned.
func (r *Runtime) runEventLocked(e timer.Event) {
	if r.closed {
		return
	}
	name, ok := eventMethods[e.Kind]
	if !ok || !r.methods.Defined(name) {
		return
	}

	err := r.safeCallLocked(name)
	if err != nil {
		r.logger.Error("event callback failed",
			"method", name,
			"event", e.Kind,
			"error", err)
		r.record(Record{Kind: RecordEventFailed, Method: string(name), Action: e.Kind.String(), Detail: err.Error()})
		return
	}
	r.record(Record{Kind: RecordEventCallback, Method: string(name), Action: e.Kind.String()})
}

func (r *Runtime) safeCallLocked(name script.MethodName) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &CallError{Method: name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	_, _, err = r.callLocked(name, 0)
	return err
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
