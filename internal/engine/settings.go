package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/splitscript/internal/script"
)

// Setting is one boolean toggle.
type Setting struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	Value       bool   `json:"value" yaml:"value" toml:"value"`
	Default     bool   `json:"default" yaml:"default" toml:"default"`
	Description string `json:"description" yaml:"description" toml:"description"`
	// Basic marks the start/split/reset toggles the runtime registers itself.
	Basic bool `json:"basic" yaml:"basic" toml:"basic"`
}

// Settings is the ordered toggle set of one script.
//
// Thread-safety: safe for concurrent use; the host may Set values while the
// runtime reads them.
type Settings struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Setting
}

// NewSettings creates an empty toggle set.
func NewSettings() *Settings {
	return &Settings{byID: make(map[string]*Setting)}
}

// Add registers a toggle whose value starts at def.
func (s *Settings) Add(id string, def bool, description string) error {
	return s.add(Setting{ID: id, Value: def, Default: def, Description: description})
}

func (s *Settings) add(st Setting) error {
	if st.ID == "" {
		return fmt.Errorf("setting id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[st.ID]; ok {
		return fmt.Errorf("setting %q already exists", st.ID)
	}
	s.byID[st.ID] = &st
	s.order = append(s.order, st.ID)
	return nil
}

// Get returns a toggle's value.
func (s *Settings) Get(id string) (value bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.byID[id]
	if !ok {
		return false, false
	}
	return st.Value, true
}

// Enabled reports whether the toggle id is on. Unknown toggles count as on.
func (s *Settings) Enabled(id string) bool {
	v, ok := s.Get(id)
	return !ok || v
}

// Set changes a toggle's value.
func (s *Settings) Set(id string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("unknown setting %q", id)
	}
	st.Value = value
	return nil
}

// Apply sets every known id in values and returns the sorted ids it did
// not know.
func (s *Settings) Apply(values map[string]bool) []string {
	var unknown []string
	for id, v := range values {
		if err := s.Set(id, v); err != nil {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// All returns copies of every toggle in registration order.
func (s *Settings) All() []Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Setting, len(s.order))
	for i, id := range s.order {
		out[i] = *s.byID[id]
	}
	return out
}

// Values returns id → value for every toggle.
func (s *Settings) Values() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.byID))
	for id, st := range s.byID {
		out[id] = st.Value
	}
	return out
}

// Len returns the number of toggles.
func (s *Settings) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// accessor returns the view handed to scripts.
func (s *Settings) accessor(writable bool) script.SettingsAccessor {
	return settingsView{settings: s, writable: writable}
}

type settingsView struct {
	settings *Settings
	writable bool
}

func (v settingsView) Get(id string) (bool, bool) { return v.settings.Get(id) }
func (v settingsView) Writable() bool             { return v.writable }

func (v settingsView) Add(id string, def bool, description string) error {
	if !v.writable {
		return ErrSettingsReadOnly
	}
	return v.settings.Add(id, def, description)
}
