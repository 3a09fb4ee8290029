package testutil

import (
	"context"
	"sync"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/internal/registry"
)

// ExecFunc is the body of a Script module.
type ExecFunc func(ctx context.Context, state *module.State, in module.Inputs) (module.Outputs, error)

// Script is a configurable module for tests. Every instance created from a
// registered Script shares its configuration and its Trace.
type Script struct {
	Name   string
	ports  module.Ports
	params []module.ParameterSpec
	fn     ExecFunc
	trace  *Trace
}

// NewScript creates a module type called name whose executions run fn. A nil
// fn produces no outputs.
func NewScript(name string, fn ExecFunc) *Script {
	return &Script{Name: name, fn: fn}
}

// WithInputs appends required input ports.
func (s *Script) WithInputs(tags ...porttype.Tag) *Script {
	for _, tag := range tags {
		s.ports.Inputs = append(s.ports.Inputs, module.PortSpec{Name: "in", Type: tag})
	}
	return s
}

// WithOptionalInputs appends optional input ports.
func (s *Script) WithOptionalInputs(tags ...porttype.Tag) *Script {
	for _, tag := range tags {
		s.ports.Inputs = append(s.ports.Inputs, module.PortSpec{Name: "opt", Type: tag, Optional: true})
	}
	return s
}

// WithDynamicInputs adds a trailing dynamic input group.
func (s *Script) WithDynamicInputs(tag porttype.Tag) *Script {
	s.ports.Inputs = append(s.ports.Inputs, module.PortSpec{Name: "dyn", Type: tag, Dynamic: true})
	return s
}

// WithOutputs appends output ports.
func (s *Script) WithOutputs(tags ...porttype.Tag) *Script {
	for _, tag := range tags {
		s.ports.Outputs = append(s.ports.Outputs, module.PortSpec{Name: "out", Type: tag})
	}
	return s
}

// WithParams declares parameters.
func (s *Script) WithParams(specs ...module.ParameterSpec) *Script {
	s.params = append(s.params, specs...)
	return s
}

// Traced records every execution in tr.
func (s *Script) Traced(tr *Trace) *Script {
	s.trace = tr
	return s
}

// Register implements registry.Module.
func (s *Script) Register(r *registry.Registry) {
	r.Register(module.Descriptor{Name: s.Name, Version: "1.0", Category: "Test"}, func() module.Module {
		return &scriptModule{script: s}
	})
}

type scriptModule struct {
	script *Script
}

func (m *scriptModule) Ports() module.Ports                { return m.script.ports }
func (m *scriptModule) Parameters() []module.ParameterSpec { return m.script.params }

func (m *scriptModule) Execute(ctx context.Context, state *module.State, in module.Inputs) (module.Outputs, error) {
	if m.script.trace != nil {
		m.script.trace.Record(m.script.Name)
	}
	if m.script.fn == nil {
		return nil, nil
	}
	return m.script.fn(ctx, state, in)
}

// Trace records module executions in order. It is safe for concurrent use.
type Trace struct {
	mu    sync.Mutex
	names []string
}

// Record appends an entry.
func (t *Trace) Record(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = append(t.names, name)
}

// Names returns the recorded entries.
func (t *Trace) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.names...)
}

// Count returns how often name was recorded.
func (t *Trace) Count(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, v := range t.names {
		if v == name {
			n++
		}
	}
	return n
}

// Reset clears the trace.
func (t *Trace) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = nil
}
