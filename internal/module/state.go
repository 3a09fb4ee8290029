package module

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// FeedbackParameter is the transient parameter that carries feedback-channel
// payloads to a module.
const FeedbackParameter = "__feedback__"

// State is a module's parameter store. It is safe for concurrent use.
//
// Every non-transient change bumps Version, which lets the scheduler notice
// parameters that changed while the module was executing.
type State struct {
	mu        sync.RWMutex
	values    map[string]cty.Value
	transient map[string]bool
	version   uint64
}

// NewState creates a store seeded with the declared defaults.
func NewState(specs []ParameterSpec) *State {
	s := &State{
		values:    make(map[string]cty.Value, len(specs)),
		transient: map[string]bool{FeedbackParameter: true},
	}
	for _, spec := range specs {
		if !spec.Default.IsNull() {
			s.values[spec.Name] = spec.Default
		}
		if spec.Transient {
			s.transient[spec.Name] = true
		}
	}
	return s
}

// Get returns the value of a parameter.
func (s *State) Get(name string) (cty.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Set stores a parameter value. It returns true when the change must mark
// the module dirty: the value differs from the stored one and the parameter
// is not transient.
func (s *State) Set(name string, v cty.Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed := s.values[name]
	s.values[name] = v
	if s.transient[name] {
		return false
	}
	if existed && old.RawEquals(v) {
		return false
	}
	s.version++
	return true
}

// SetTransient stores a value that never marks the module dirty.
func (s *State) SetTransient(name string, v cty.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transient[name] = true
	s.values[name] = v
}

// IsTransient reports whether the named parameter is transient.
func (s *State) IsTransient(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transient[name]
}

// Version counts non-transient changes.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Names returns the parameter names in sorted order.
func (s *State) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all values.
func (s *State) Snapshot() map[string]cty.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]cty.Value, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Float returns a number parameter as float64.
func (s *State) Float(name string) (float64, error) {
	v, err := s.known(name, cty.Number)
	if err != nil {
		return 0, err
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

// Int returns a number parameter as int.
func (s *State) Int(name string) (int, error) {
	v, err := s.known(name, cty.Number)
	if err != nil {
		return 0, err
	}
	var n int
	if err := gocty.FromCtyValue(v, &n); err != nil {
		return 0, fmt.Errorf("parameter %q: %w", name, err)
	}
	return n, nil
}

// String returns a string parameter.
func (s *State) String(name string) (string, error) {
	v, err := s.known(name, cty.String)
	if err != nil {
		return "", err
	}
	return v.AsString(), nil
}

// Bool returns a bool parameter.
func (s *State) Bool(name string) (bool, error) {
	v, err := s.known(name, cty.Bool)
	if err != nil {
		return false, err
	}
	return v.True(), nil
}

func (s *State) known(name string, want cty.Type) (cty.Value, error) {
	v, ok := s.Get(name)
	if !ok || v.IsNull() {
		return cty.NilVal, fmt.Errorf("parameter %q is not set", name)
	}
	if !v.IsKnown() {
		return cty.NilVal, fmt.Errorf("parameter %q is unknown", name)
	}
	if !v.Type().Equals(want) {
		return cty.NilVal, fmt.Errorf("parameter %q: expected %s, got %s", name, want.FriendlyName(), v.Type().FriendlyName())
	}
	return v, nil
}
