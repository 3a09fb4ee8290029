package loop_test

import (
	"testing"
	"time"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/testutil"
	"github.com/specialistvlad/dataflowgo/modules/loop"
	"github.com/specialistvlad/dataflowgo/modules/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/zclconf/go-cty/cty"
)

func TestStartPrefersFeedback(t *testing.T) {
	initial, fed := matrix.Scalar(1), matrix.Scalar(2)
	inv := testutil.Invoke(t, loop.Start{}, nil)

	assert.Same(t, initial, inv.MustRun(t, initial)[0])
	assert.Same(t, fed, inv.MustRun(t, initial, fed)[0])

	var _ module.LoopStart = loop.Start{}
}

func TestEndTermination(t *testing.T) {
	var end module.LoopEnd = loop.End{}
	inv := testutil.Invoke(t, end, map[string]cty.Value{"threshold": cty.NumberIntVal(3)})
	assert.False(t, end.LoopDone(inv.State), "not done before the first value")

	inv.MustRun(t, matrix.Scalar(2))
	assert.False(t, end.LoopDone(inv.State))

	out := inv.MustRun(t, matrix.Scalar(3))
	assert.True(t, end.LoopDone(inv.State))
	assert.Equal(t, matrix.Scalar(3), out[0])
	assert.Equal(t, uint64(1), inv.State.Version(), "only the threshold assignment counts as a change")
}

func TestEndPolicy(t *testing.T) {
	var end module.LoopEnd = loop.End{}

	inv := testutil.Invoke(t, end, nil)
	assert.Equal(t, module.DefaultLoopPolicy(), end.LoopPolicy(inv.State))

	inv = testutil.Invoke(t, end, map[string]cty.Value{
		"max_iterations": cty.NumberIntVal(5),
		"timeout_ms":     cty.NumberIntVal(250),
	})
	assert.Equal(t, module.LoopPolicy{MaxIterations: 5, Timeout: 250 * time.Millisecond}, end.LoopPolicy(inv.State))
}
