package linalg

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/modules/matrix"
)

const ConcatenateName = "ConcatenateMatrices"

// Concatenation axes.
const (
	AxisRows    = "rows"
	AxisColumns = "columns"
)

// Concatenate joins any number of matrices. Its inputs form a dynamic
// group: connecting to the first free port adds another.
type Concatenate struct{}

func (Concatenate) Ports() module.Ports {
	return module.Ports{
		Inputs:  []module.PortSpec{{Name: "InputMatrix", Type: porttype.Matrix, Dynamic: true}},
		Outputs: []module.PortSpec{{Name: "Result", Type: porttype.DenseMatrix}},
	}
}

func (Concatenate) Parameters() []module.ParameterSpec {
	return []module.ParameterSpec{
		{Name: "axis", Default: cty.StringVal(AxisRows)},
	}
}

func (Concatenate) Execute(_ context.Context, state *module.State, in module.Inputs) (module.Outputs, error) {
	var ms []*matrix.DenseMatrix
	for i, v := range in.From(0) {
		m, ok := v.(*matrix.DenseMatrix)
		if !ok {
			return nil, fmt.Errorf("input %d: expected a matrix, got %T", i, v)
		}
		ms = append(ms, m)
	}
	if len(ms) == 0 {
		return nil, fmt.Errorf("no matrices connected: %w", module.ErrMissingInput)
	}

	axis, err := state.String("axis")
	if err != nil {
		return nil, err
	}
	var out *matrix.DenseMatrix
	switch axis {
	case AxisRows:
		out, err = matrix.ConcatRows(ms...)
	case AxisColumns:
		out, err = matrix.ConcatCols(ms...)
	default:
		return nil, fmt.Errorf("unknown axis %q", axis)
	}
	if err != nil {
		return nil, err
	}
	return module.Outputs{0: out}, nil
}
