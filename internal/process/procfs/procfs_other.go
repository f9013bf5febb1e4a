//go:build !linux

package procfs

import "github.com/roach88/splitscript/internal/process"

// Lister is unavailable off Linux.
type Lister struct{}

// New returns a Lister whose Find always fails.
func New() *Lister { return &Lister{} }

// Find implements process.Lister.
func (l *Lister) Find(name string) ([]process.Handle, error) {
	return nil, process.ErrUnsupported
}
