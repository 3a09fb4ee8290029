package module

import (
	"context"

	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/zclconf/go-cty/cty"
)

// Descriptor names a module type known to the registry.
type Descriptor struct {
	Name     string `json:"name" yaml:"name" validate:"required,excludesall=:[]"`
	Version  string `json:"version" yaml:"version" validate:"required"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
}

// String returns `Name@Version`.
func (d Descriptor) String() string {
	return d.Name + "@" + d.Version
}

// PortSpec declares one input or output port.
type PortSpec struct {
	Name string
	Type porttype.Tag
	// Dynamic marks the last input spec as an unbounded trailing group.
	Dynamic bool
	// Optional inputs may stay unconnected without blocking execution.
	// Dynamic inputs are always optional.
	Optional bool
}

// Ports is the static port declaration of a module.
type Ports struct {
	Inputs  []PortSpec
	Outputs []PortSpec
}

// ParameterSpec declares a parameter and its default value.
type ParameterSpec struct {
	Name    string
	Default cty.Value
	// Transient parameters never mark the module dirty when they change.
	Transient bool
}

// Module is the capability interface implemented by every module variant.
type Module interface {
	// Ports declares the module's input and output ports.
	Ports() Ports
	// Parameters declares the module's parameters and their defaults.
	Parameters() []ParameterSpec
	// Execute reads the inputs and returns the datums to publish, keyed by
	// output port index. A returned error is recoverable unless wrapped with
	// Fatal.
	Execute(ctx context.Context, state *State, in Inputs) (Outputs, error)
}
