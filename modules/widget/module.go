// Package widget provides EditTransformWidget, the module behind the
// render host's interactive transform handle.
package widget

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

const Name = "EditTransformWidget"

// Module implements the registry.Module interface for this package.
type Module struct{}

// EditTransformWidget applies an affine transform to its input. The
// transform comes from the `scale` and `offset` parameters unless the render
// host sent one through the feedback channel, in which case the feedback
// payload wins.
type EditTransformWidget struct{}

func (EditTransformWidget) Ports() module.Ports {
	return module.Ports{
		Inputs: []module.PortSpec{{Name: "InputMatrix", Type: porttype.Matrix}},
		Outputs: []module.PortSpec{
			{Name: "Transformed", Type: porttype.DenseMatrix},
			{Name: "Transform", Type: porttype.Transform},
		},
	}
}

func (EditTransformWidget) Parameters() []module.ParameterSpec {
	return []module.ParameterSpec{
		{Name: "scale", Default: cty.NumberIntVal(1)},
		{Name: "offset", Default: cty.NumberIntVal(0)},
	}
}

func (EditTransformWidget) Execute(ctx context.Context, state *module.State, in module.Inputs) (module.Outputs, error) {
	m, err := module.Input[*matrix.DenseMatrix](in, 0)
	if err != nil {
		return nil, err
	}
	t, source, err := transform(state)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Applying transform.", "transform", t.String(), "source", source)
	return module.Outputs{0: t.Apply(m), 1: t}, nil
}

func transform(state *module.State) (matrix.Transform, string, error) {
	if fb, ok := state.Get(module.FeedbackParameter); ok && !fb.IsNull() {
		t, err := matrix.TransformFromCty(fb)
		if err != nil {
			return t, "", fmt.Errorf("feedback payload: %w", err)
		}
		return t, "feedback", nil
	}
	scale, err := state.Float("scale")
	if err != nil {
		return matrix.Transform{}, "", err
	}
	offset, err := state.Float("offset")
	if err != nil {
		return matrix.Transform{}, "", err
	}
	return matrix.Transform{Scale: scale, Offset: offset}, "parameters", nil
}

// Register registers the module type with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(module.Descriptor{Name: Name, Version: "1.0", Category: "Render"}, func() module.Module { return EditTransformWidget{} })
}
