package matrix

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrDimensionMismatch is returned when operand shapes are incompatible.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrRagged is returned when rows have different lengths.
	ErrRagged = errors.New("rows have different lengths")
)

// DenseMatrix is an immutable row-major matrix of float64.
type DenseMatrix struct {
	rows, cols int
	data       []float64
}

// New builds a rows×cols matrix from row-major data. The slice is copied.
func New(rows, cols int, data []float64) (*DenseMatrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("negative dimensions %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %dx%d needs %d values, got %d", ErrDimensionMismatch, rows, cols, rows*cols, len(data))
	}
	return &DenseMatrix{rows: rows, cols: cols, data: append([]float64(nil), data...)}, nil
}

// FromRows builds a matrix from a slice of equally long rows.
func FromRows(rows [][]float64) (*DenseMatrix, error) {
	if len(rows) == 0 {
		return &DenseMatrix{}, nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, row 0 has %d", ErrRagged, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return &DenseMatrix{rows: len(rows), cols: cols, data: data}, nil
}

// Scalar returns a 1×1 matrix.
func Scalar(v float64) *DenseMatrix {
	return &DenseMatrix{rows: 1, cols: 1, data: []float64{v}}
}

// Rows returns the number of rows.
func (m *DenseMatrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *DenseMatrix) Cols() int { return m.cols }

// At returns the element at row i, column j.
func (m *DenseMatrix) At(i, j int) float64 {
	return m.data[i*m.cols+j]
}

// ToRows copies the matrix into a slice of rows.
func (m *DenseMatrix) ToRows() [][]float64 {
	out := make([][]float64, m.rows)
	for i := range out {
		out[i] = append([]float64(nil), m.data[i*m.cols:(i+1)*m.cols]...)
	}
	return out
}

// Equal reports whether both matrices have the same shape and elements.
func (m *DenseMatrix) Equal(o *DenseMatrix) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i := range m.data {
		if m.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// Map applies f to every element.
func (m *DenseMatrix) Map(f func(float64) float64) *DenseMatrix {
	out := &DenseMatrix{rows: m.rows, cols: m.cols, data: make([]float64, len(m.data))}
	for i, v := range m.data {
		out.data[i] = f(v)
	}
	return out
}

// Negate returns -m.
func (m *DenseMatrix) Negate() *DenseMatrix {
	return m.Map(func(v float64) float64 { return -v })
}

// Scale returns s·m.
func (m *DenseMatrix) Scale(s float64) *DenseMatrix {
	return m.Map(func(v float64) float64 { return s * v })
}

// Shift returns m with s added to every element.
func (m *DenseMatrix) Shift(s float64) *DenseMatrix {
	return m.Map(func(v float64) float64 { return v + s })
}

// Transpose returns mᵀ.
func (m *DenseMatrix) Transpose() *DenseMatrix {
	out := &DenseMatrix{rows: m.cols, cols: m.rows, data: make([]float64, len(m.data))}
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			out.data[j*m.rows+i] = m.data[i*m.cols+j]
		}
	}
	return out
}

// Add returns m+o.
func (m *DenseMatrix) Add(o *DenseMatrix) (*DenseMatrix, error) {
	return m.zip(o, "add", func(a, b float64) float64 { return a + b })
}

// Sub returns m-o.
func (m *DenseMatrix) Sub(o *DenseMatrix) (*DenseMatrix, error) {
	return m.zip(o, "subtract", func(a, b float64) float64 { return a - b })
}

func (m *DenseMatrix) zip(o *DenseMatrix, op string, f func(a, b float64) float64) (*DenseMatrix, error) {
	if m.rows != o.rows || m.cols != o.cols {
		return nil, fmt.Errorf("%w: cannot %s %dx%d and %dx%d", ErrDimensionMismatch, op, m.rows, m.cols, o.rows, o.cols)
	}
	out := &DenseMatrix{rows: m.rows, cols: m.cols, data: make([]float64, len(m.data))}
	for i := range m.data {
		out.data[i] = f(m.data[i], o.data[i])
	}
	return out, nil
}

// Mul returns the matrix product m·o.
func (m *DenseMatrix) Mul(o *DenseMatrix) (*DenseMatrix, error) {
	if m.cols != o.rows {
		return nil, fmt.Errorf("%w: cannot multiply %dx%d by %dx%d", ErrDimensionMismatch, m.rows, m.cols, o.rows, o.cols)
	}
	out := &DenseMatrix{rows: m.rows, cols: o.cols, data: make([]float64, m.rows*o.cols)}
	for i := 0; i < m.rows; i++ {
		for k := 0; k < m.cols; k++ {
			a := m.data[i*m.cols+k]
			for j := 0; j < o.cols; j++ {
				out.data[i*o.cols+j] += a * o.data[k*o.cols+j]
			}
		}
	}
	return out, nil
}

// ConcatRows stacks the matrices vertically. Every matrix must have the
// same number of columns.
func ConcatRows(ms ...*DenseMatrix) (*DenseMatrix, error) {
	if len(ms) == 0 {
		return &DenseMatrix{}, nil
	}
	out := &DenseMatrix{cols: ms[0].cols}
	for i, m := range ms {
		if m.cols != out.cols {
			return nil, fmt.Errorf("%w: matrix %d has %d columns, expected %d", ErrDimensionMismatch, i, m.cols, out.cols)
		}
		out.rows += m.rows
		out.data = append(out.data, m.data...)
	}
	return out, nil
}

// ConcatCols places the matrices side by side. Every matrix must have the
// same number of rows.
func ConcatCols(ms ...*DenseMatrix) (*DenseMatrix, error) {
	ts := make([]*DenseMatrix, len(ms))
	for i, m := range ms {
		ts[i] = m.Transpose()
	}
	out, err := ConcatRows(ts...)
	if err != nil {
		return nil, fmt.Errorf("%w (comparing row counts)", err)
	}
	return out.Transpose(), nil
}

// Info summarizes a matrix.
type Info struct {
	Rows int     `json:"rows" yaml:"rows"`
	Cols int     `json:"cols" yaml:"cols"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Sum  float64 `json:"sum" yaml:"sum"`
}

func (i Info) String() string {
	return fmt.Sprintf("%dx%d min=%g max=%g sum=%g", i.Rows, i.Cols, i.Min, i.Max, i.Sum)
}

// Info computes the summary. Min and Max are zero for an empty matrix.
func (m *DenseMatrix) Info() Info {
	info := Info{Rows: m.rows, Cols: m.cols}
	if len(m.data) == 0 {
		return info
	}
	info.Min, info.Max = math.Inf(1), math.Inf(-1)
	for _, v := range m.data {
		info.Min = math.Min(info.Min, v)
		info.Max = math.Max(info.Max, v)
		info.Sum += v
	}
	return info
}

// String renders the matrix one row per line.
func (m *DenseMatrix) String() string {
	var b strings.Builder
	for i := 0; i < m.rows; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j := 0; j < m.cols; j++ {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%g", m.At(i, j))
		}
	}
	return b.String()
}

type wireMatrix struct {
	Rows int         `json:"rows"`
	Cols int         `json:"cols"`
	Data [][]float64 `json:"data"`
}

// MarshalJSON encodes the matrix as its shape plus rows.
func (m *DenseMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMatrix{Rows: m.rows, Cols: m.cols, Data: m.ToRows()})
}

// UnmarshalJSON decodes the MarshalJSON form.
func (m *DenseMatrix) UnmarshalJSON(b []byte) error {
	var w wireMatrix
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	d, err := FromRows(w.Data)
	if err != nil {
		return err
	}
	if d.rows != w.Rows || d.cols != w.Cols {
		return fmt.Errorf("%w: header says %dx%d, data is %dx%d", ErrDimensionMismatch, w.Rows, w.Cols, d.rows, d.cols)
	}
	*m = *d
	return nil
}
