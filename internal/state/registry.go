package state

import (
	"errors"
	"fmt"

	"golang.org/x/text/cases"
)

// ErrDuplicateDescriptor is returned by Registry.Add when a descriptor with
// the same (process, version) is already registered.
var ErrDuplicateDescriptor = errors.New("duplicate state descriptor")

// Registry holds descriptors grouped by process. Process names compare
// case-insensitively; versions compare exactly.
type Registry struct {
	order     []string // folded process names, registration order
	byProcess map[string][]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byProcess: make(map[string][]*Descriptor)}
}

func fold(name string) string {
	return cases.Fold().String(name)
}

// Add registers d. At most one descriptor per (process, version) is allowed,
// which also limits each process to one default.
func (r *Registry) Add(d *Descriptor) error {
	key := fold(d.process)
	for _, existing := range r.byProcess[key] {
		if existing.version == d.version {
			return fmt.Errorf("%w: %s", ErrDuplicateDescriptor, d)
		}
	}
	if _, ok := r.byProcess[key]; !ok {
		r.order = append(r.order, key)
	}
	r.byProcess[key] = append(r.byProcess[key], d)
	return nil
}

// Len returns the number of descriptors.
func (r *Registry) Len() int {
	n := 0
	for _, ds := range r.byProcess {
		n += len(ds)
	}
	return n
}

// Processes returns process names in registration order, spelled as in the
// first descriptor registered for each.
func (r *Registry) Processes() []string {
	out := make([]string, len(r.order))
	for i, key := range r.order {
		out[i] = r.byProcess[key][0].process
	}
	return out
}

// Descriptors returns the descriptors of process in registration order.
func (r *Registry) Descriptors(process string) []*Descriptor {
	ds := r.byProcess[fold(process)]
	out := make([]*Descriptor, len(ds))
	copy(out, ds)
	return out
}

// All returns every descriptor, grouped by process in registration order.
func (r *Registry) All() []*Descriptor {
	var out []*Descriptor
	for _, key := range r.order {
		out = append(out, r.byProcess[key]...)
	}
	return out
}

// Default returns the version "" descriptor of process, falling back to the
// first one registered.
func (r *Registry) Default(process string) (*Descriptor, bool) {
	ds := r.byProcess[fold(process)]
	if len(ds) == 0 {
		return nil, false
	}
	for _, d := range ds {
		if d.version == "" {
			return d, true
		}
	}
	return ds[0], true
}

// Lookup resolves (process, version). An exact match wins; otherwise, with
// allowDefault, the version "" descriptor is returned.
func (r *Registry) Lookup(process, version string, allowDefault bool) (*Descriptor, bool) {
	ds := r.byProcess[fold(process)]
	for _, d := range ds {
		if d.version == version {
			return d, true
		}
	}
	if !allowDefault {
		return nil, false
	}
	for _, d := range ds {
		if d.version == "" {
			return d, true
		}
	}
	return nil, false
}
