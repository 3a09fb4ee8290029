package integrationtests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/history"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
)

const scalarPipeline = `
module "send" {
  type  = "SendTestMatrix"
  value = 5
}

module "negate" {
  type     = "EvaluateLinearAlgebraUnary"
  operator = "negate"
}

module "report" {
  type = "ReportMatrixInfo"
}

connect {
  from = send[0]
  to   = negate[0]
}

connect {
  from = negate[0]
  to   = report[0]
}
`

func outcomes(r history.Report) map[moduleid.ID]execctx.Result {
	out := make(map[moduleid.ID]execctx.Result, len(r.Modules))
	for _, m := range r.Modules {
		out[m.Module] = m
	}
	return out
}

func TestScalarPipelineFollowsParameterChanges(t *testing.T) {
	h := load(t, scalarPipeline)

	r, err := h.app.RunTargets(h.ctx)
	require.NoError(t, err)
	require.Equal(t, execctx.RunSucceeded, r.Outcome)
	assert.Equal(t, float64(-5), h.info("report").Max)
	assert.Equal(t, "1x1 min=-5 max=-5 sum=-5", h.info("report").String())

	changed := h.rewrite(replaceOnce(scalarPipeline, "value = 5", "value = 7"))
	assert.Equal(t, []moduleid.ID{h.id("send")}, changed)

	r, err = h.app.Run(h.ctx, scheduler.Request{Dirty: changed})
	require.NoError(t, err)
	assert.Equal(t, execctx.RunSucceeded, r.Outcome)
	assert.Equal(t, float64(-7), h.info("report").Max)
	for id, res := range outcomes(r) {
		assert.Equal(t, execctx.Executed, res.Outcome, id)
	}
}

func TestTargetedRunStopsAtTarget(t *testing.T) {
	h := load(t, scalarPipeline)

	r, err := h.app.RunTargets(h.ctx, "negate")
	require.NoError(t, err)
	got := outcomes(r)
	assert.Len(t, got, 2)
	assert.Equal(t, execctx.Executed, got[h.id("send")].Outcome)
	assert.Equal(t, execctx.Executed, got[h.id("negate")].Outcome)
	assert.NotContains(t, got, h.id("report"))

	// Only the report is stale now.
	r, err = h.app.RunTargets(h.ctx, "report")
	require.NoError(t, err)
	got = outcomes(r)
	assert.Equal(t, execctx.UpToDate, got[h.id("send")].Reason)
	assert.Equal(t, execctx.UpToDate, got[h.id("negate")].Reason)
	assert.Equal(t, execctx.Executed, got[h.id("report")].Outcome)
}

func TestForcedModuleRerunsDownstream(t *testing.T) {
	h := load(t, scalarPipeline)
	_, err := h.app.RunTargets(h.ctx)
	require.NoError(t, err)

	r, err := h.app.Run(h.ctx, scheduler.Request{Dirty: []moduleid.ID{h.id("negate")}})
	require.NoError(t, err)
	got := outcomes(r)
	assert.NotContains(t, got, h.id("send"))
	assert.Equal(t, execctx.Executed, got[h.id("negate")].Outcome)
	assert.Equal(t, execctx.Executed, got[h.id("report")].Outcome)
}
