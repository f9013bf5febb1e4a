package timer

import (
	"sync"
	"time"
)

// SplitTime is the recorded time for one segment. Skipped segments have
// Skipped set and zero times.
type SplitTime struct {
	Name     string
	RealTime time.Duration
	GameTime time.Duration
	Skipped  bool
	Done     bool
}

// Model is an in-memory run timer.
//
// Thread-safety: all methods are safe for concurrent use. Listeners are
// invoked after the internal lock is released, so they may read the model.
type Model struct {
	mu  sync.Mutex
	now func() time.Time

	phase      Phase
	splits     []SplitTime
	splitIndex int

	attemptStart time.Time
	pauseStart   time.Time
	pausedTotal  time.Duration

	gameTimeInit   bool
	gameTimePaused bool
	gameTimeBase   time.Duration
	gameTimeMark   time.Time

	listeners []subscription
	nextID    SubscriptionID
}

type subscription struct {
	id SubscriptionID
	fn Listener
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithNow overrides the wall clock. Tests pass a fake clock.
func WithNow(now func() time.Time) ModelOption {
	return func(m *Model) {
		m.now = now
	}
}

// NewModel creates a timer with the given segment names. At least one
// segment is always present.
func NewModel(segments []string, opts ...ModelOption) *Model {
	if len(segments) == 0 {
		segments = []string{"End"}
	}
	m := &Model{
		now:        time.Now,
		splits:     make([]SplitTime, len(segments)),
		splitIndex: -1,
	}
	for i, name := range segments {
		m.splits[i].Name = name
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscribe implements Facade.
func (m *Model) Subscribe(l Listener) SubscriptionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.listeners = append(m.listeners, subscription{id: m.nextID, fn: l})
	return m.nextID
}

// Unsubscribe implements Facade. Unknown ids are ignored.
func (m *Model) Unsubscribe(id SubscriptionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.listeners {
		if s.id == id {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return
		}
	}
}

// Listeners returns the number of active subscriptions.
func (m *Model) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// emit must be called without m.mu held.
func (m *Model) emit(kind EventKind) {
	m.mu.Lock()
	ev := Event{Kind: kind, Phase: m.phase, SplitIndex: m.splitIndex}
	subs := make([]subscription, len(m.listeners))
	copy(subs, m.listeners)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Start begins an attempt from NotRunning.
func (m *Model) Start() {
	m.mu.Lock()
	if m.phase != NotRunning {
		m.mu.Unlock()
		return
	}
	now := m.now()
	m.phase = Running
	m.splitIndex = 0
	m.attemptStart = now
	m.pausedTotal = 0
	m.gameTimeBase = 0
	m.gameTimeMark = now
	m.gameTimePaused = false
	for i := range m.splits {
		m.splits[i] = SplitTime{Name: m.splits[i].Name}
	}
	m.mu.Unlock()
	m.emit(EventStarted)
}

// Split records the current segment. Splitting the last segment ends the run.
func (m *Model) Split() {
	m.mu.Lock()
	if m.phase != Running || m.splitIndex < 0 || m.splitIndex >= len(m.splits) {
		m.mu.Unlock()
		return
	}
	now := m.now()
	s := &m.splits[m.splitIndex]
	s.RealTime = m.realTimeLocked(now)
	s.GameTime = m.gameTimeLocked(now)
	s.Done = true
	m.splitIndex++
	if m.splitIndex == len(m.splits) {
		m.phase = Ended
	}
	m.mu.Unlock()
	m.emit(EventSplit)
}

// SkipSplit moves past the current segment without a time. The last segment
// cannot be skipped.
func (m *Model) SkipSplit() {
	m.mu.Lock()
	if (m.phase != Running && m.phase != Paused) || m.splitIndex >= len(m.splits)-1 {
		m.mu.Unlock()
		return
	}
	m.splits[m.splitIndex] = SplitTime{Name: m.splits[m.splitIndex].Name, Skipped: true}
	m.splitIndex++
	m.mu.Unlock()
	m.emit(EventSkipSplit)
}

// UndoSplit steps back one segment, clearing its time.
func (m *Model) UndoSplit() {
	m.mu.Lock()
	if m.phase == NotRunning || m.splitIndex <= 0 {
		m.mu.Unlock()
		return
	}
	if m.phase == Ended {
		m.phase = Running
	}
	m.splitIndex--
	m.splits[m.splitIndex] = SplitTime{Name: m.splits[m.splitIndex].Name}
	m.mu.Unlock()
	m.emit(EventUndoSplit)
}

// Reset abandons the attempt and clears game-time tracking.
func (m *Model) Reset() {
	m.mu.Lock()
	if m.phase == NotRunning {
		m.mu.Unlock()
		return
	}
	m.phase = NotRunning
	m.splitIndex = -1
	m.gameTimeInit = false
	m.gameTimePaused = false
	m.mu.Unlock()
	m.emit(EventReset)
}

// Pause freezes real time. Only a host (the user) pauses; the runtime never
// does.
func (m *Model) Pause() {
	m.mu.Lock()
	if m.phase != Running {
		m.mu.Unlock()
		return
	}
	now := m.now()
	m.freezeGameTimeLocked(now)
	m.phase = Paused
	m.pauseStart = now
	m.mu.Unlock()
	m.emit(EventPaused)
}

// Resume continues a paused attempt.
func (m *Model) Resume() {
	m.mu.Lock()
	if m.phase != Paused {
		m.mu.Unlock()
		return
	}
	now := m.now()
	m.pausedTotal += now.Sub(m.pauseStart)
	m.phase = Running
	m.gameTimeMark = now
	m.mu.Unlock()
	m.emit(EventResumed)
}

// Phase implements Facade.
func (m *Model) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// SplitIndex returns the current segment index, -1 when not running.
func (m *Model) SplitIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.splitIndex
}

// Splits returns a copy of the segment times.
func (m *Model) Splits() []SplitTime {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SplitTime, len(m.splits))
	copy(out, m.splits)
	return out
}

// Public implements Facade.
func (m *Model) Public() Public {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	return Public{
		Phase:               m.phase,
		SplitIndex:          m.splitIndex,
		SplitCount:          len(m.splits),
		RealTime:            m.realTimeLocked(now),
		GameTime:            m.gameTimeLocked(now),
		GameTimeInitialized: m.gameTimeInit,
		GameTimePaused:      m.gameTimePaused,
	}
}

// GameTimeInitialized implements Facade.
func (m *Model) GameTimeInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gameTimeInit
}

// InitializeGameTime implements Facade.
func (m *Model) InitializeGameTime() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gameTimeInit = true
}

// GameTimePaused implements Facade.
func (m *Model) GameTimePaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gameTimePaused
}

// SetGameTimePaused implements Facade. Pausing freezes game time while real
// time keeps running.
func (m *Model) SetGameTimePaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if paused == m.gameTimePaused {
		return
	}
	now := m.now()
	if paused {
		m.freezeGameTimeLocked(now)
	} else {
		m.gameTimeMark = now
	}
	m.gameTimePaused = paused
}

// SetGameTime implements Facade.
func (m *Model) SetGameTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gameTimeBase = d
	m.gameTimeMark = m.now()
}

func (m *Model) realTimeLocked(now time.Time) time.Duration {
	switch m.phase {
	case NotRunning:
		return 0
	case Paused:
		return m.pauseStart.Sub(m.attemptStart) - m.pausedTotal
	case Ended:
		if n := len(m.splits); n > 0 {
			return m.splits[n-1].RealTime
		}
	}
	return now.Sub(m.attemptStart) - m.pausedTotal
}

func (m *Model) gameTimeLocked(now time.Time) time.Duration {
	switch m.phase {
	case NotRunning:
		return 0
	case Ended:
		if n := len(m.splits); n > 0 {
			return m.splits[n-1].GameTime
		}
	}
	if m.gameTimePaused || m.phase == Paused {
		return m.gameTimeBase
	}
	return m.gameTimeBase + now.Sub(m.gameTimeMark)
}

// freezeGameTimeLocked folds elapsed game time into the base.
func (m *Model) freezeGameTimeLocked(now time.Time) {
	if m.gameTimePaused || m.phase != Running {
		return
	}
	m.gameTimeBase += now.Sub(m.gameTimeMark)
	m.gameTimeMark = now
}
