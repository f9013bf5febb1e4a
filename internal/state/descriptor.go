package state

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/splitscript/internal/ir"
	"github.com/roach88/splitscript/internal/process"
)

// Snapshot maps field names to sampled values.
type Snapshot = ir.Object

// DefaultPointerSize is used when a descriptor does not name one.
const DefaultPointerSize = 8

// Descriptor is a versioned field layout for one process, plus the previous
// and current snapshot taken with it.
//
// A Descriptor is not safe for concurrent use; the runtime owns it.
type Descriptor struct {
	process     string
	version     string
	pointerSize int
	fields      []Field

	old     Snapshot
	current Snapshot
}

// NewDescriptor validates fields and builds a descriptor. Version "" is the
// default for process. Fields are kept sorted by name.
func NewDescriptor(processName, version string, pointerSize int, fields []Field) (*Descriptor, error) {
	if strings.TrimSpace(processName) == "" {
		return nil, fmt.Errorf("descriptor process name is empty")
	}
	if pointerSize == 0 {
		pointerSize = DefaultPointerSize
	}
	if pointerSize != 4 && pointerSize != 8 {
		return nil, fmt.Errorf("descriptor %s/%q: pointer size must be 4 or 8, got %d", processName, version, pointerSize)
	}

	sorted := slices.Clone(fields)
	slices.SortFunc(sorted, func(a, b Field) int { return strings.Compare(a.Name, b.Name) })
	for i, f := range sorted {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("descriptor %s/%q: %w", processName, version, err)
		}
		if i > 0 && sorted[i-1].Name == f.Name {
			return nil, fmt.Errorf("descriptor %s/%q: duplicate field %s", processName, version, f.Name)
		}
	}

	return &Descriptor{
		process:     processName,
		version:     version,
		pointerSize: pointerSize,
		fields:      sorted,
	}, nil
}

// MustDescriptor is NewDescriptor that panics on error. For tests.
func MustDescriptor(processName, version string, pointerSize int, fields ...Field) *Descriptor {
	d, err := NewDescriptor(processName, version, pointerSize, fields)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) Process() string  { return d.process }
func (d *Descriptor) Version() string  { return d.version }
func (d *Descriptor) PointerSize() int { return d.pointerSize }

// Fields returns a copy of the layout.
func (d *Descriptor) Fields() []Field { return slices.Clone(d.fields) }

func (d *Descriptor) String() string {
	if d.version == "" {
		return d.process + " (default)"
	}
	return d.process + " " + d.version
}

// Old returns a copy of the previous snapshot, nil before the first sample.
func (d *Descriptor) Old() Snapshot { return d.old.Clone() }

// Current returns a copy of the latest snapshot, nil before the first sample.
func (d *Descriptor) Current() Snapshot { return d.current.Clone() }

// Sample reads every field from h without touching the stored snapshots.
func (d *Descriptor) Sample(h process.Handle) (Snapshot, error) {
	snap := make(Snapshot, len(d.fields))
	for _, f := range d.fields {
		v, err := f.Read(h, d.pointerSize)
		if err != nil {
			return nil, fmt.Errorf("read %s.%s: %w", d.process, f.Name, err)
		}
		snap[f.Name] = v
	}
	return snap, nil
}

// Refresh shifts current to old and samples a new current. On error the
// snapshots are left unchanged.
func (d *Descriptor) Refresh(h process.Handle) error {
	snap, err := d.Sample(h)
	if err != nil {
		return err
	}
	d.old = d.current
	if d.old == nil {
		d.old = snap
	}
	d.current = snap
	return nil
}

// Rebase samples h and sets both old and current to the result, so the first
// comparison after attaching (or switching) sees no change.
func (d *Descriptor) Rebase(h process.Handle) error {
	snap, err := d.Sample(h)
	if err != nil {
		return err
	}
	d.old = snap
	d.current = snap.Clone()
	return nil
}

// Clear drops both snapshots.
func (d *Descriptor) Clear() {
	d.old = nil
	d.current = nil
}

// Layout describes the descriptor without its snapshots.
func (d *Descriptor) Layout() ir.Object {
	fields := make(ir.Object, len(d.fields))
	for _, f := range d.fields {
		offsets := make(ir.Array, len(f.Offsets))
		for i, off := range f.Offsets {
			offsets[i] = ir.Int(off)
		}
		fields[f.Name] = ir.Object{
			"type":    ir.String(f.Type),
			"module":  ir.String(f.Module),
			"base":    ir.Int(int64(f.Base)),
			"offsets": offsets,
			"length":  ir.Int(f.Length),
		}
	}
	return ir.Object{
		"process":      ir.String(d.process),
		"version":      ir.String(d.version),
		"pointer_size": ir.Int(d.pointerSize),
		"fields":       fields,
	}
}

// LayoutHash is the content hash of Layout.
func (d *Descriptor) LayoutHash() (string, error) {
	return ir.LayoutHash(d.Layout())
}
