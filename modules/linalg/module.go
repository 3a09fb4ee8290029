// Package linalg provides the matrix arithmetic modules: unary and binary
// operators and concatenation.
package linalg

import (
	"context"
	"errors"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/specialistvlad/dataflowgo/modules/matrix"
)

const (
	UnaryName  = "EvaluateLinearAlgebraUnary"
	BinaryName = "EvaluateLinearAlgebraBinary"
)

// ErrUnknownOperator is returned for an unsupported `operator` value.
var ErrUnknownOperator = errors.New("unknown operator")

// Unary operators.
const (
	Negate         = "negate"
	Transpose      = "transpose"
	ScalarMultiply = "scalar_multiply"
	ScalarAdd      = "scalar_add"
)

// Binary operators.
const (
	Add      = "add"
	Subtract = "subtract"
	Multiply = "multiply"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Unary applies a single-operand operator to its input matrix.
type Unary struct{}

func (Unary) Ports() module.Ports {
	return module.Ports{
		Inputs:  []module.PortSpec{{Name: "InputMatrix", Type: porttype.Matrix}},
		Outputs: []module.PortSpec{{Name: "Result", Type: porttype.DenseMatrix}},
	}
}

func (Unary) Parameters() []module.ParameterSpec {
	return []module.ParameterSpec{
		{Name: "operator", Default: cty.StringVal(Negate)},
		{Name: "scalar", Default: cty.NumberIntVal(1)},
	}
}

func (Unary) Execute(_ context.Context, state *module.State, in module.Inputs) (module.Outputs, error) {
	m, err := module.Input[*matrix.DenseMatrix](in, 0)
	if err != nil {
		return nil, err
	}
	op, err := state.String("operator")
	if err != nil {
		return nil, err
	}
	scalar, err := state.Float("scalar")
	if err != nil {
		return nil, err
	}

	var out *matrix.DenseMatrix
	switch op {
	case Negate:
		out = m.Negate()
	case Transpose:
		out = m.Transpose()
	case ScalarMultiply:
		out = m.Scale(scalar)
	case ScalarAdd:
		out = m.Shift(scalar)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownOperator, op)
	}
	return module.Outputs{0: out}, nil
}

// Binary combines two input matrices.
type Binary struct{}

func (Binary) Ports() module.Ports {
	return module.Ports{
		Inputs: []module.PortSpec{
			{Name: "LHS", Type: porttype.Matrix},
			{Name: "RHS", Type: porttype.Matrix},
		},
		Outputs: []module.PortSpec{{Name: "Result", Type: porttype.DenseMatrix}},
	}
}

func (Binary) Parameters() []module.ParameterSpec {
	return []module.ParameterSpec{
		{Name: "operator", Default: cty.StringVal(Add)},
	}
}

func (Binary) Execute(_ context.Context, state *module.State, in module.Inputs) (module.Outputs, error) {
	lhs, err := module.Input[*matrix.DenseMatrix](in, 0)
	if err != nil {
		return nil, err
	}
	rhs, err := module.Input[*matrix.DenseMatrix](in, 1)
	if err != nil {
		return nil, err
	}
	op, err := state.String("operator")
	if err != nil {
		return nil, err
	}

	var out *matrix.DenseMatrix
	switch op {
	case Add:
		out, err = lhs.Add(rhs)
	case Subtract:
		out, err = lhs.Sub(rhs)
	case Multiply:
		out, err = lhs.Mul(rhs)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownOperator, op)
	}
	if err != nil {
		return nil, err
	}
	return module.Outputs{0: out}, nil
}

// Register registers the module types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register(module.Descriptor{Name: UnaryName, Version: "1.0", Category: "Math"}, func() module.Module { return Unary{} })
	r.Register(module.Descriptor{Name: BinaryName, Version: "1.0", Category: "Math"}, func() module.Module { return Binary{} })
	r.Register(module.Descriptor{Name: ConcatenateName, Version: "1.0", Category: "Math"}, func() module.Module { return Concatenate{} })
}
