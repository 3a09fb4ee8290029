// Package loop provides the LoopStart and LoopEnd modules. Paired with
// Network.PairLoop, they make the scheduler repeat everything between them
// until the value reaching LoopEnd crosses a threshold.
package loop

import (
	"context"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/specialistvlad/dataflowgo/modules/matrix"
)

const (
	StartName = "LoopStart"
	EndName   = "LoopEnd"

	// ValueParameter is the transient parameter in which LoopEnd stores the
	// largest element of the last matrix it saw.
	ValueParameter = "value"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Start forwards the matrix fed back by LoopEnd when one was produced in
// this loop execution, and the initial matrix otherwise.
type Start struct{}

func (Start) LoopStart() {}

func (Start) Ports() module.Ports {
	return module.Ports{
		Inputs: []module.PortSpec{
			{Name: "Initial", Type: porttype.Matrix},
			{Name: "Feedback", Type: porttype.Matrix, Optional: true},
		},
		Outputs: []module.PortSpec{{Name: "Current", Type: porttype.DenseMatrix}},
	}
}

func (Start) Parameters() []module.ParameterSpec { return nil }

func (Start) Execute(_ context.Context, _ *module.State, in module.Inputs) (module.Outputs, error) {
	if fb, ok := in.Get(1); ok {
		return module.Outputs{0: fb}, nil
	}
	m, err := module.Input[*matrix.DenseMatrix](in, 0)
	if err != nil {
		return nil, err
	}
	return module.Outputs{0: m}, nil
}

// End publishes its input unchanged and finishes the loop once the largest
// element reaches `threshold`.
type End struct{}

func (End) Ports() module.Ports {
	return module.Ports{
		Inputs:  []module.PortSpec{{Name: "InputMatrix", Type: porttype.Matrix}},
		Outputs: []module.PortSpec{{Name: "Result", Type: porttype.DenseMatrix}},
	}
}

func (End) Parameters() []module.ParameterSpec {
	def := module.DefaultLoopPolicy()
	return []module.ParameterSpec{
		{Name: "threshold", Default: cty.NumberIntVal(10)},
		{Name: "max_iterations", Default: cty.NumberIntVal(int64(def.MaxIterations))},
		{Name: "timeout_ms", Default: cty.NumberIntVal(def.Timeout.Milliseconds())},
		{Name: ValueParameter, Default: cty.NullVal(cty.Number), Transient: true},
	}
}

func (End) Execute(_ context.Context, state *module.State, in module.Inputs) (module.Outputs, error) {
	m, err := module.Input[*matrix.DenseMatrix](in, 0)
	if err != nil {
		return nil, err
	}
	state.SetTransient(ValueParameter, cty.NumberFloatVal(m.Info().Max))
	return module.Outputs{0: m}, nil
}

func (End) LoopDone(state *module.State) bool {
	v, err := state.Float(ValueParameter)
	if err != nil {
		return false
	}
	threshold, err := state.Float("threshold")
	if err != nil {
		return true
	}
	return v >= threshold
}

func (End) LoopPolicy(state *module.State) module.LoopPolicy {
	p := module.DefaultLoopPolicy()
	if n, err := state.Int("max_iterations"); err == nil && n > 0 {
		p.MaxIterations = n
	}
	if ms, err := state.Int("timeout_ms"); err == nil && ms > 0 {
		p.Timeout = time.Duration(ms) * time.Millisecond
	}
	return p
}

// Register registers both module types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(module.Descriptor{Name: StartName, Version: "1.0", Category: "Flow Control"}, func() module.Module { return Start{} })
	r.Register(module.Descriptor{Name: EndName, Version: "1.0", Category: "Flow Control"}, func() module.Module { return End{} })
}
