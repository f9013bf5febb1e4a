package engine

import (
	"math"

	"github.com/roach88/splitscript/internal/script"
)

// callMode adjusts how a script call's context is built.
type callMode uint8

const (
	// callWritable hands the script a writable toggle accessor.
	callWritable callMode = 1 << iota
	// callDetached hides the attached process, if any.
	callDetached
	// callInit copies the version back after the call.
	callInit
)

// callLocked invokes one method with a fresh context and copies the mutable
// fields back only when the call succeeds. An empty slot returns Absent without building a context.
func (r *Runtime) callLocked(name script.MethodName, mode callMode) (*script.Context, script.Result, error) {
	slot := r.methods.Slot(name)
	if slot.IsEmpty() {
		return nil, script.Absent(), nil
	}

	ctx := r.contextLocked(mode)
	started := r.now()
	res, err := slot.Call(ctx)
	if elapsed := r.now().Sub(started); r.slowCall > 0 && elapsed > r.slowCall {
		r.logger.Warn("slow script call",
			"method", name,
			"elapsed", elapsed,
			"threshold", r.slowCall)
	}
	if err != nil {
		return ctx, script.Absent(), &CallError{Method: name, Err: err}
	}

	if ctx.Vars == nil {
		ctx.Vars = script.Vars{}
	}
	r.vars = ctx.Vars
	if mode&callInit != 0 {
		r.version = ctx.Version
	}
	r.applyRefreshRateLocked(ctx.RefreshRate)
	return ctx, res, nil
}

func (r *Runtime) contextLocked(mode callMode) *script.Context {
	ctx := &script.Context{
		Timer:       r.facade.Public(),
		Vars:        r.vars.Clone(),
		Version:     r.version,
		RefreshRate: r.refreshRate,
		Settings:    r.settings.accessor(mode&callWritable != 0),
	}
	if mode&callDetached == 0 {
		ctx.Game = r.handle
		ctx.Old, ctx.Current = r.snapshotsLocked()
	}
	return ctx
}

// applyRefreshRateLocked adopts rate when it differs from the current rate
// by more than refreshRateEpsilon.
func (r *Runtime) applyRefreshRateLocked(rate float64) {
	if math.Abs(rate-r.refreshRate) <= refreshRateEpsilon {
		return
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		r.logger.Warn("ignoring invalid refresh rate", "rate", rate)
		return
	}

	previous := r.refreshRate
	r.refreshRate = rate
	r.logger.Debug("refresh rate changed", "from", previous, "to", rate)
	r.record(Record{Kind: RecordRefreshRate, Detail: formatRate(rate)})
	if r.onRefreshRate != nil {
		r.onRefreshRate(rate)
	}
}
