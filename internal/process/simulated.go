package process

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Simulated is an in-memory process with a sparse little-endian address space.
// Bytes that were never written are unmapped.
//
// Thread-safety: all methods are safe for concurrent use.
type Simulated struct {
	mu         sync.Mutex
	pid        int
	name       string
	start      time.Time
	exited     bool
	exitOnRead bool
	memory     map[uint64]byte
	modules    map[string]uint64
	reads      int
}

// NewSimulated creates a live simulated process.
func NewSimulated(pid int, name string, start time.Time) *Simulated {
	return &Simulated{
		pid:     pid,
		name:    name,
		start:   start,
		memory:  make(map[uint64]byte),
		modules: make(map[string]uint64),
	}
}

func (p *Simulated) PID() int             { return p.pid }
func (p *Simulated) Name() string         { return p.name }
func (p *Simulated) StartTime() time.Time { return p.start }

// HasExited reports whether Exit was called (or a read tripped ExitOnNextRead).
func (p *Simulated) HasExited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

// Exit marks the process as gone.
func (p *Simulated) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exited = true
}

// ExitOnNextRead makes the next ReadMemory fail with ErrExited and mark the
// process exited, as if it died mid-read.
func (p *Simulated) ExitOnNextRead() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitOnRead = true
}

// Reads returns how many ReadMemory calls were made.
func (p *Simulated) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// SetModule registers a module load address. The empty name is the main
// executable; registering the process name also sets it.
func (p *Simulated) SetModule(module string, base uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modules[strings.ToLower(module)] = base
}

// ModuleBase implements Handle.
func (p *Simulated) ModuleBase(module string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return 0, ErrExited
	}
	key := strings.ToLower(module)
	if base, ok := p.modules[key]; ok {
		return base, nil
	}
	if key == "" || key == strings.ToLower(p.name) {
		if base, ok := p.modules[""]; ok {
			return base, nil
		}
		if base, ok := p.modules[strings.ToLower(p.name)]; ok {
			return base, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrModuleNotFound, module)
}

// ReadMemory implements Handle.
func (p *Simulated) ReadMemory(addr uint64, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.exitOnRead {
		p.exitOnRead = false
		p.exited = true
	}
	if p.exited {
		return ErrExited
	}
	for i := range buf {
		b, ok := p.memory[addr+uint64(i)]
		if !ok {
			return fmt.Errorf("%w: 0x%x", ErrNotMapped, addr+uint64(i))
		}
		buf[i] = b
	}
	return nil
}

// Write stores raw bytes at addr, mapping them.
func (p *Simulated) Write(addr uint64, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, b := range data {
		p.memory[addr+uint64(i)] = b
	}
}

// WriteUint stores v as a size-byte little-endian unsigned integer.
func (p *Simulated) WriteUint(addr uint64, size int, v uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	p.Write(addr, buf[:size])
}

// WriteInt stores v as a size-byte little-endian two's complement integer.
func (p *Simulated) WriteInt(addr uint64, size int, v int64) {
	p.WriteUint(addr, size, uint64(v))
}

// WriteFloat32 stores an IEEE-754 single.
func (p *Simulated) WriteFloat32(addr uint64, v float32) {
	p.WriteUint(addr, 4, uint64(math.Float32bits(v)))
}

// WriteFloat64 stores an IEEE-754 double.
func (p *Simulated) WriteFloat64(addr uint64, v float64) {
	p.WriteUint(addr, 8, math.Float64bits(v))
}

// WriteBool stores a single byte 0 or 1.
func (p *Simulated) WriteBool(addr uint64, v bool) {
	var b byte
	if v {
		b = 1
	}
	p.Write(addr, []byte{b})
}

// WriteString stores s followed by a NUL terminator.
func (p *Simulated) WriteString(addr uint64, s string) {
	p.Write(addr, append([]byte(s), 0))
}

// SimulatedLister is a Lister over a mutable set of simulated processes.
//
// Thread-safety: all methods are safe for concurrent use.
type SimulatedLister struct {
	mu    sync.Mutex
	procs map[int]*Simulated
	finds int
}

// NewSimulatedLister creates an empty lister.
func NewSimulatedLister(procs ...*Simulated) *SimulatedLister {
	l := &SimulatedLister{procs: make(map[int]*Simulated)}
	for _, p := range procs {
		l.Add(p)
	}
	return l
}

// Add makes p visible to Find.
func (l *SimulatedLister) Add(p *Simulated) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.procs[p.PID()] = p
}

// Remove hides the process with the given pid. The process itself is not
// marked exited; call Exit for that.
func (l *SimulatedLister) Remove(pid int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.procs, pid)
}

// Get returns the process registered under pid.
func (l *SimulatedLister) Get(pid int) (*Simulated, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.procs[pid]
	return p, ok
}

// Finds returns how many Find calls were made.
func (l *SimulatedLister) Finds() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finds
}

// Find implements Lister. Names compare case-insensitively. Results are
// ordered by pid so callers see a stable order.
func (l *SimulatedLister) Find(name string) ([]Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finds++

	var matches []*Simulated
	for _, p := range l.procs {
		if strings.EqualFold(p.Name(), name) {
			matches = append(matches, p)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].PID() < matches[j].PID() })

	handles := make([]Handle, len(matches))
	for i, p := range matches {
		handles[i] = p
	}
	return handles, nil
}
