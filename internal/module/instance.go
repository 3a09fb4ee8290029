package module

import (
	"sync/atomic"

	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// Instance is one module living in a network: its identity, its
// implementation and its parameter store. Mutable execution state (status,
// outputs) lives in the node store, not here.
type Instance struct {
	ID         moduleid.ID
	Descriptor Descriptor
	// Seq is the creation sequence number, used to break ordering ties.
	Seq   uint64
	Impl  Module
	State *State

	ports   Ports
	dynamic atomic.Int32
}

// NewInstance wraps impl with the given identity and a fresh parameter store.
func NewInstance(id moduleid.ID, desc Descriptor, seq uint64, impl Module) *Instance {
	return &Instance{
		ID:         id,
		Descriptor: desc,
		Seq:        seq,
		Impl:       impl,
		State:      NewState(impl.Parameters()),
		ports:      impl.Ports(),
	}
}

// HasDynamicInputs reports whether the last input spec is a dynamic group.
func (i *Instance) HasDynamicInputs() bool {
	n := len(i.ports.Inputs)
	return n > 0 && i.ports.Inputs[n-1].Dynamic
}

// FixedInputCount is the number of non-dynamic input ports.
func (i *Instance) FixedInputCount() int {
	if i.HasDynamicInputs() {
		return len(i.ports.Inputs) - 1
	}
	return len(i.ports.Inputs)
}

// InputCount is the current number of input ports, including every
// materialized dynamic port.
func (i *Instance) InputCount() int {
	return i.FixedInputCount() + int(i.dynamic.Load())
}

// DynamicCount is the number of materialized dynamic ports.
func (i *Instance) DynamicCount() int {
	return int(i.dynamic.Load())
}

// InputSpec returns the spec governing input port idx.
func (i *Instance) InputSpec(idx int) (PortSpec, bool) {
	if idx < 0 || idx >= i.InputCount() {
		return PortSpec{}, false
	}
	if idx >= i.FixedInputCount() {
		return i.ports.Inputs[len(i.ports.Inputs)-1], true
	}
	return i.ports.Inputs[idx], true
}

// DynamicSpec returns the spec of the dynamic group, if any.
func (i *Instance) DynamicSpec() (PortSpec, bool) {
	if !i.HasDynamicInputs() {
		return PortSpec{}, false
	}
	return i.ports.Inputs[len(i.ports.Inputs)-1], true
}

// OutputCount is the number of output ports.
func (i *Instance) OutputCount() int {
	return len(i.ports.Outputs)
}

// OutputSpec returns the spec of output port idx.
func (i *Instance) OutputSpec(idx int) (PortSpec, bool) {
	if idx < 0 || idx >= len(i.ports.Outputs) {
		return PortSpec{}, false
	}
	return i.ports.Outputs[idx], true
}

// Required reports whether input port idx must be connected for the module
// to execute.
func (i *Instance) Required(idx int) bool {
	spec, ok := i.InputSpec(idx)
	return ok && !spec.Optional && !spec.Dynamic
}

// GrowDynamic materializes one more dynamic port and returns its index.
func (i *Instance) GrowDynamic() int {
	return i.FixedInputCount() + int(i.dynamic.Add(1)) - 1
}

// ShrinkDynamic removes one dynamic port.
func (i *Instance) ShrinkDynamic() {
	if i.dynamic.Load() > 0 {
		i.dynamic.Add(-1)
	}
}
