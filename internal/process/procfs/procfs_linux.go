//go:build linux

package procfs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/roach88/splitscript/internal/process"
)

// userHZ is the kernel's USER_HZ, the unit of /proc/<pid>/stat start times.
// It is 100 on every mainstream Linux architecture.
const userHZ = 100

// Lister enumerates processes under a procfs mount.
type Lister struct {
	root string

	bootOnce sync.Once
	boot     time.Time
}

// New returns a Lister over /proc.
func New() *Lister {
	return NewAt("/proc")
}

// NewAt returns a Lister over a procfs mounted at root.
func NewAt(root string) *Lister {
	return &Lister{root: root}
}

// Find implements process.Lister. A process matches when its comm name or
// the base name of its executable (with or without extension) equals name,
// ignoring case.
func (l *Lister) Find(name string) ([]process.Handle, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.root, err)
	}

	var handles []process.Handle
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || !e.IsDir() {
			continue
		}
		if !l.matches(pid, name) {
			continue
		}
		ticks, state, err := l.readStat(pid)
		if err != nil || state == 'Z' {
			continue
		}
		handles = append(handles, &handle{
			lister:     l,
			pid:        pid,
			name:       name,
			startTicks: ticks,
			start:      l.bootTime().Add(time.Duration(ticks) * time.Second / userHZ),
		})
	}
	return handles, nil
}

func (l *Lister) matches(pid int, name string) bool {
	dir := filepath.Join(l.root, strconv.Itoa(pid))
	if comm, err := os.ReadFile(filepath.Join(dir, "comm")); err == nil {
		if strings.EqualFold(strings.TrimSpace(string(comm)), name) {
			return true
		}
	}
	exe, err := os.Readlink(filepath.Join(dir, "exe"))
	if err != nil {
		return false
	}
	base := filepath.Base(exe)
	return strings.EqualFold(base, name) ||
		strings.EqualFold(strings.TrimSuffix(base, filepath.Ext(base)), name)
}

// readStat returns the start time (in clock ticks since boot) and the state
// letter of a process.
func (l *Lister) readStat(pid int) (uint64, byte, error) {
	data, err := os.ReadFile(filepath.Join(l.root, strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, 0, err
	}
	// comm may contain spaces and parentheses; fields resume after the last ')'.
	s := string(data)
	end := strings.LastIndexByte(s, ')')
	if end < 0 || end+2 >= len(s) {
		return 0, 0, fmt.Errorf("malformed stat for pid %d", pid)
	}
	fields := strings.Fields(s[end+2:])
	// fields[0] is field 3 (state); starttime is field 22.
	if len(fields) < 20 {
		return 0, 0, fmt.Errorf("short stat for pid %d", pid)
	}
	ticks, err := strconv.ParseUint(fields[19], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse starttime for pid %d: %w", pid, err)
	}
	return ticks, fields[0][0], nil
}

func (l *Lister) bootTime() time.Time {
	l.bootOnce.Do(func() {
		f, err := os.Open(filepath.Join(l.root, "stat"))
		if err != nil {
			return
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := sc.Text()
			if rest, ok := strings.CutPrefix(line, "btime "); ok {
				if secs, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64); err == nil {
					l.boot = time.Unix(secs, 0)
				}
				return
			}
		}
	})
	return l.boot
}

// handle is a live /proc process.
type handle struct {
	lister     *Lister
	pid        int
	name       string
	startTicks uint64
	start      time.Time

	mu    sync.Mutex
	exe   string
	bases map[string]uint64
	scans int
}

func (h *handle) PID() int             { return h.pid }
func (h *handle) Name() string         { return h.name }
func (h *handle) StartTime() time.Time { return h.start }

// HasExited reports true when the pid is gone, is a zombie, or has been
// reused by a process with a different start time.
func (h *handle) HasExited() bool {
	ticks, state, err := h.lister.readStat(h.pid)
	if err != nil {
		return true
	}
	return state == 'Z' || ticks != h.startTicks
}

// ReadMemory implements process.Handle using process_vm_readv(2).
func (h *handle) ReadMemory(addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}

	n, err := unix.ProcessVMReadv(h.pid, local, remote, 0)
	switch {
	case errors.Is(err, unix.ESRCH):
		return process.ErrExited
	case errors.Is(err, unix.EFAULT):
		return fmt.Errorf("%w: 0x%x", process.ErrNotMapped, addr)
	case err != nil:
		return fmt.Errorf("read pid %d at 0x%x: %w", h.pid, addr, err)
	case n < len(buf):
		return fmt.Errorf("%w: short read at 0x%x (%d of %d bytes)", process.ErrNotMapped, addr, n, len(buf))
	}
	return nil
}

// ModuleBase implements process.Handle from the first mapping of the named
// file in /proc/<pid>/maps. The empty name selects the executable. Bases are
// cached per handle; maps is scanned again only when a module is missing.
func (h *handle) ModuleBase(module string) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if module == "" {
		exe, err := h.exeNameLocked()
		if err != nil {
			return 0, err
		}
		module = exe
	}
	key := strings.ToLower(module)
	if base, ok := h.bases[key]; ok {
		return base, nil
	}

	bases, err := h.scanMaps()
	if err != nil {
		return 0, err
	}
	h.bases = bases
	if base, ok := bases[key]; ok {
		return base, nil
	}
	return 0, fmt.Errorf("%w: %s", process.ErrModuleNotFound, module)
}

func (h *handle) exeNameLocked() (string, error) {
	if h.exe != "" {
		return h.exe, nil
	}
	exe, err := os.Readlink(filepath.Join(h.lister.root, strconv.Itoa(h.pid), "exe"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", process.ErrExited
		}
		return "", fmt.Errorf("resolve executable for pid %d: %w", h.pid, err)
	}
	h.exe = filepath.Base(exe)
	return h.exe, nil
}

// scanMaps returns the lowest-listed start address of every mapped file,
// keyed by lower-cased base name.
func (h *handle) scanMaps() (map[string]uint64, error) {
	h.scans++
	f, err := os.Open(filepath.Join(h.lister.root, strconv.Itoa(h.pid), "maps"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, process.ErrExited
		}
		return nil, fmt.Errorf("open maps for pid %d: %w", h.pid, err)
	}
	defer f.Close()

	bases := make(map[string]uint64)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}
		key := strings.ToLower(filepath.Base(fields[5]))
		if _, seen := bases[key]; seen {
			continue
		}
		start, _, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		base, err := strconv.ParseUint(start, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parse maps address %q: %w", fields[0], err)
		}
		bases[key] = base
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan maps for pid %d: %w", h.pid, err)
	}
	return bases, nil
}
