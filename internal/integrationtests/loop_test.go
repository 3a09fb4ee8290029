package integrationtests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
)

// countingLoop adds one per iteration until the value reaches the threshold.
const countingLoop = `
module "seed" {
  type  = "SendTestMatrix"
  value = [[1]]
}

module "start" {
  type = "LoopStart"
}

module "step" {
  type     = "EvaluateLinearAlgebraUnary"
  operator = "scalar_add"
  scalar   = 1
}

module "end" {
  type      = "LoopEnd"
  threshold = 5
}

module "out" {
  type = "ReceiveTestMatrix"
}

loop {
  start = start
  end   = end
}

connect {
  from = seed[0]
  to   = start[0]
}

connect {
  from = start[0]
  to   = step[0]
}

connect {
  from = step[0]
  to   = end[0]
}

connect {
  from = end[0]
  to   = start[1]
}

connect {
  from = end[0]
  to   = out[0]
}
`

func TestLoopIteratesToThreshold(t *testing.T) {
	h := load(t, countingLoop)

	r, err := h.app.RunTargets(h.ctx)
	require.NoError(t, err)
	require.Equal(t, execctx.RunSucceeded, r.Outcome, r.Errors)
	assert.Equal(t, [][]float64{{5}}, h.received("out"))
	assert.Equal(t, 4, outcomes(r)[h.id("end")].Iterations)

	t.Run("unchanged loop is skipped", func(t *testing.T) {
		r, err := h.app.RunTargets(h.ctx)
		require.NoError(t, err)
		for id, res := range outcomes(r) {
			assert.Equal(t, execctx.UpToDate, res.Reason, id)
		}
	})

	t.Run("new seed restarts from the initial input", func(t *testing.T) {
		changed := h.rewrite(replaceOnce(countingLoop, "value = [[1]]", "value = [[3]]"))
		r, err := h.app.Run(h.ctx, scheduler.Request{Dirty: changed})
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{5}}, h.received("out"))
		assert.Equal(t, 2, outcomes(r)[h.id("end")].Iterations)
	})
}

func TestLoopSafeguard(t *testing.T) {
	src := replaceOnce(countingLoop, "threshold = 5", "threshold = 1000\n  max_iterations = 3")
	h := load(t, src)

	r, err := h.app.RunTargets(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, execctx.RunFailed, r.Outcome)
	require.Contains(t, r.Errors, h.id("end"))
	assert.Contains(t, r.Errors[h.id("end")], "after 3 iterations")
	assert.Equal(t, execctx.UpstreamError, outcomes(r)[h.id("out")].Reason)
}

func TestLoopDeclarationErrors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "undeclared module",
			src:  replaceOnce(countingLoop, "end   = end\n", "end   = nowhere\n"),
			want: "undeclared module",
		},
		{
			name: "start is not a loop start",
			src:  replaceOnce(countingLoop, "start = start\n", "start = step\n"),
			want: "loop",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := loadErr(t, tc.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoopTargetPullsWholeBody(t *testing.T) {
	h := load(t, countingLoop)

	r, err := h.app.Run(h.ctx, scheduler.Request{Targets: []moduleid.ID{h.id("step")}})
	require.NoError(t, err)
	got := outcomes(r)
	for _, label := range []string{"seed", "start", "step", "end"} {
		assert.Contains(t, got, h.id(label), label)
	}
	assert.NotContains(t, got, h.id("out"))
}
