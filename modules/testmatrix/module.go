// Package testmatrix provides the source and sink modules used to feed
// matrices into a network and observe what comes out.
package testmatrix

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/specialistvlad/dataflowgo/modules/matrix"
)

const (
	SendName    = "SendTestMatrix"
	ReceiveName = "ReceiveTestMatrix"

	// ReceivedParameter is the transient parameter in which
	// ReceiveTestMatrix stores the last matrix it saw.
	ReceivedParameter = "received"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Send publishes the matrix held in its `value` parameter. The value may be
// a number, a flat list or a list of rows.
type Send struct{}

func (Send) Ports() module.Ports {
	return module.Ports{
		Outputs: []module.PortSpec{{Name: "TestMatrix", Type: porttype.DenseMatrix}},
	}
}

func (Send) Parameters() []module.ParameterSpec {
	return []module.ParameterSpec{
		{Name: "value", Default: cty.NullVal(cty.DynamicPseudoType)},
	}
}

func (Send) Execute(ctx context.Context, state *module.State, _ module.Inputs) (module.Outputs, error) {
	v, ok := state.Get("value")
	if !ok {
		return nil, fmt.Errorf("parameter %q is not set", "value")
	}
	m, err := matrix.FromCty(v)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", "value", err)
	}
	ctxlog.FromContext(ctx).Debug("Sending matrix.", "rows", m.Rows(), "cols", m.Cols())
	return module.Outputs{0: m}, nil
}

// Receive records the matrix on its input in a transient parameter so
// tests and clients can read it back.
type Receive struct{}

func (Receive) Ports() module.Ports {
	return module.Ports{
		Inputs: []module.PortSpec{{Name: "InputMatrix", Type: porttype.Matrix}},
	}
}

func (Receive) Parameters() []module.ParameterSpec {
	return []module.ParameterSpec{
		{Name: ReceivedParameter, Default: cty.NullVal(cty.DynamicPseudoType), Transient: true},
	}
}

func (Receive) Execute(_ context.Context, state *module.State, in module.Inputs) (module.Outputs, error) {
	m, err := module.Input[*matrix.DenseMatrix](in, 0)
	if err != nil {
		return nil, err
	}
	state.SetTransient(ReceivedParameter, m.ToCty())
	return nil, nil
}

// Received reads back what a Receive module recorded.
func Received(state *module.State) (*matrix.DenseMatrix, error) {
	v, ok := state.Get(ReceivedParameter)
	if !ok {
		return nil, fmt.Errorf("nothing received yet")
	}
	return matrix.FromCty(v)
}

// Register registers both module types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(module.Descriptor{Name: SendName, Version: "1.0", Category: "Basic"}, func() module.Module { return Send{} })
	r.Register(module.Descriptor{Name: ReceiveName, Version: "1.0", Category: "Basic"}, func() module.Module { return Receive{} })
}
