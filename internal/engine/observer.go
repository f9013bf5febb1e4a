package engine

import "sync"

// RecordKind names an observable runtime event.
type RecordKind string

const (
	RecordTransition       RecordKind = "transition"
	RecordDescriptorSwitch RecordKind = "descriptor_switch"
	RecordDescriptorMiss   RecordKind = "descriptor_miss"
	RecordTimerAction      RecordKind = "timer_action"
	RecordEventCallback    RecordKind = "event_callback"
	RecordEventFailed      RecordKind = "event_failed"
	RecordMethodFailed     RecordKind = "method_failed"
	RecordRefreshRate      RecordKind = "refresh_rate"
)

// Record is one entry of the runtime's observable stream. Only the fields
// relevant to Kind are set.
type Record struct {
	Seq     int64      `json:"seq"`
	Runtime string     `json:"runtime"`
	Kind    RecordKind `json:"kind"`
	From    string     `json:"from,omitempty"`
	To      string     `json:"to,omitempty"`
	Process string     `json:"process,omitempty"`
	PID     int        `json:"pid,omitempty"`
	Version string     `json:"version,omitempty"`
	Action  string     `json:"action,omitempty"`
	Method  string     `json:"method,omitempty"`
	Detail  string     `json:"detail,omitempty"`
}

// Observer receives records synchronously, in Seq order, while the runtime
// lock is held. Implementations must not call back into the runtime.
type Observer interface {
	Observe(Record)
}

// ObserverFunc adapts a func to Observer.
type ObserverFunc func(Record)

// Observe implements Observer.
func (f ObserverFunc) Observe(r Record) { f(r) }

// MultiObserver fans records out to each observer in order.
type MultiObserver []Observer

// Observe implements Observer.
func (m MultiObserver) Observe(r Record) {
	for _, o := range m {
		o.Observe(r)
	}
}

type nopObserver struct{}

func (nopObserver) Observe(Record) {}

// RecordingObserver keeps every record in memory.
//
// Thread-safety: safe for concurrent use.
type RecordingObserver struct {
	mu      sync.Mutex
	records []Record
}

// Observe implements Observer.
func (o *RecordingObserver) Observe(r Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, r)
}

// Records returns a copy of everything observed so far.
func (o *RecordingObserver) Records() []Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Record, len(o.records))
	copy(out, o.records)
	return out
}

// OfKind returns the observed records of one kind.
func (o *RecordingObserver) OfKind(kind RecordKind) []Record {
	var out []Record
	for _, r := range o.Records() {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Reset forgets everything observed so far.
func (o *RecordingObserver) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = nil
}
