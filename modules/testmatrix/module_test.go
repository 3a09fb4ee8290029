package testmatrix_test

import (
	"testing"

	"github.com/specialistvlad/dataflowgo/internal/testutil"
	"github.com/specialistvlad/dataflowgo/modules/matrix"
	"github.com/specialistvlad/dataflowgo/modules/testmatrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestSendAndReceive(t *testing.T) {
	send := testutil.Invoke(t, testmatrix.Send{}, map[string]cty.Value{
		"value": cty.TupleVal([]cty.Value{
			cty.TupleVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)}),
		}),
	})
	out := send.MustRun(t)
	m, ok := out[0].(*matrix.DenseMatrix)
	require.True(t, ok)
	assert.Equal(t, [][]float64{{1, 2}}, m.ToRows())

	recv := testutil.Invoke(t, testmatrix.Receive{}, nil)
	_, err := testmatrix.Received(recv.State)
	assert.Error(t, err, "nothing received before the first run")

	assert.Empty(t, recv.MustRun(t, m))
	got, err := testmatrix.Received(recv.State)
	require.NoError(t, err)
	assert.True(t, m.Equal(got))
	assert.True(t, recv.State.IsTransient(testmatrix.ReceivedParameter))
}

func TestSendErrors(t *testing.T) {
	_, err := testutil.Invoke(t, testmatrix.Send{}, nil).Run(t)
	assert.ErrorContains(t, err, `"value" is not set`)

	_, err = testutil.Invoke(t, testmatrix.Send{}, map[string]cty.Value{"value": cty.StringVal("x")}).Run(t)
	assert.ErrorContains(t, err, "cannot read string as a matrix")
}
