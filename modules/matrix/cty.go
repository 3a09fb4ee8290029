package matrix

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	rowType  = cty.List(cty.Number)
	gridType = cty.List(rowType)
)

// FromCty reads a matrix from a parameter value. A number becomes a 1×1
// matrix, a flat list a single row and a list of lists one row per element.
func FromCty(v cty.Value) (*DenseMatrix, error) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return nil, fmt.Errorf("matrix value is null or unknown")
	}

	ty := v.Type()
	switch {
	case ty.Equals(cty.Number):
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return Scalar(f), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		if v.LengthInt() == 0 {
			return &DenseMatrix{}, nil
		}
		if grid, err := convert.Convert(v, gridType); err == nil {
			var rows [][]float64
			if err := gocty.FromCtyValue(grid, &rows); err != nil {
				return nil, err
			}
			return FromRows(rows)
		}
		row, err := convert.Convert(v, rowType)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s as a matrix: %w", ty.FriendlyName(), err)
		}
		var data []float64
		if err := gocty.FromCtyValue(row, &data); err != nil {
			return nil, err
		}
		return New(1, len(data), data)
	}

	if n, err := convert.Convert(v, cty.Number); err == nil {
		return FromCty(n)
	}
	return nil, fmt.Errorf("cannot read %s as a matrix", ty.FriendlyName())
}

// ToCty renders the matrix as a list of rows.
func (m *DenseMatrix) ToCty() cty.Value {
	if m.rows == 0 {
		return cty.ListValEmpty(rowType)
	}
	rows := make([]cty.Value, m.rows)
	for i := 0; i < m.rows; i++ {
		if m.cols == 0 {
			rows[i] = cty.ListValEmpty(cty.Number)
			continue
		}
		cols := make([]cty.Value, m.cols)
		for j := 0; j < m.cols; j++ {
			cols[j] = cty.NumberFloatVal(m.At(i, j))
		}
		rows[i] = cty.ListVal(cols)
	}
	return cty.ListVal(rows)
}
