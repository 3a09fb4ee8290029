package porttype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompatible(t *testing.T) {
	r := NewRegistry()

	testCases := []struct {
		name     string
		src, dst Tag
		expected bool
	}{
		{"identical tags", Field, Field, true},
		{"anything feeds Any", ColorMap, Any, true},
		{"dense to generic matrix", DenseMatrix, Matrix, true},
		{"column to dense", ColumnMatrix, DenseMatrix, true},
		{"sparse to dense is not registered", SparseMatrix, DenseMatrix, false},
		{"field to matrix", Field, Matrix, false},
		{"Any does not feed a typed port", Any, Matrix, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, r.Compatible(tc.src, tc.dst))
		})
	}
}

func TestCustomPolicy(t *testing.T) {
	r := NewRegistry()

	r.AllowConversion(String, Scalar)
	assert.True(t, r.Compatible(String, Scalar))

	r.SetPredicate(func(src, dst Tag) bool { return false })
	assert.False(t, r.Compatible(Field, Field))

	r.SetPredicate(nil)
	assert.True(t, r.Compatible(Field, Field))
}
