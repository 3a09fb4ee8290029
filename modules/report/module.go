// Package report provides ReportMatrixInfo, which summarizes a matrix.
package report

import (
	"context"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/specialistvlad/dataflowgo/modules/matrix"
)

const (
	Name = "ReportMatrixInfo"

	// InfoParameter holds the last report as an object with rows, cols,
	// min, max and sum attributes.
	InfoParameter = "info"
)

var infoType = cty.Object(map[string]cty.Type{
	"rows": cty.Number,
	"cols": cty.Number,
	"min":  cty.Number,
	"max":  cty.Number,
	"sum":  cty.Number,
})

// Module implements the registry.Module interface for this package.
type Module struct{}

// ReportMatrixInfo publishes a one-line summary of its input and keeps the
// structured summary in a transient parameter.
type ReportMatrixInfo struct{}

func (ReportMatrixInfo) Ports() module.Ports {
	return module.Ports{
		Inputs:  []module.PortSpec{{Name: "InputMatrix", Type: porttype.Matrix}},
		Outputs: []module.PortSpec{{Name: "Summary", Type: porttype.String}},
	}
}

func (ReportMatrixInfo) Parameters() []module.ParameterSpec {
	return []module.ParameterSpec{
		{Name: InfoParameter, Default: cty.NullVal(infoType), Transient: true},
	}
}

func (ReportMatrixInfo) Execute(ctx context.Context, state *module.State, in module.Inputs) (module.Outputs, error) {
	m, err := module.Input[*matrix.DenseMatrix](in, 0)
	if err != nil {
		return nil, err
	}
	info := m.Info()
	v, err := gocty.ToCtyValue(map[string]float64{
		"rows": float64(info.Rows),
		"cols": float64(info.Cols),
		"min":  info.Min,
		"max":  info.Max,
		"sum":  info.Sum,
	}, infoType)
	if err != nil {
		return nil, err
	}
	state.SetTransient(InfoParameter, v)
	ctxlog.FromContext(ctx).Info("Matrix info.", "rows", info.Rows, "cols", info.Cols, "min", info.Min, "max", info.Max, "sum", info.Sum)
	return module.Outputs{0: info.String()}, nil
}

// Info reads back the last reported summary.
func Info(state *module.State) (matrix.Info, bool) {
	v, ok := state.Get(InfoParameter)
	if !ok || v.IsNull() {
		return matrix.Info{}, false
	}
	var raw struct {
		Rows int     `cty:"rows"`
		Cols int     `cty:"cols"`
		Min  float64 `cty:"min"`
		Max  float64 `cty:"max"`
		Sum  float64 `cty:"sum"`
	}
	if err := gocty.FromCtyValue(v, &raw); err != nil {
		return matrix.Info{}, false
	}
	return matrix.Info{Rows: raw.Rows, Cols: raw.Cols, Min: raw.Min, Max: raw.Max, Sum: raw.Sum}, true
}

// Register registers the module type with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(module.Descriptor{Name: Name, Version: "1.0", Category: "Math"}, func() module.Module { return ReportMatrixInfo{} })
}
