package integrationtests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/execctx"
)

const widgetNetwork = `
module "src" {
  type  = "SendTestMatrix"
  value = [[1, 2], [3, 4]]
}

module "widget" {
  type  = "EditTransformWidget"
  scale = 10
}

module "out" {
  type = "ReceiveTestMatrix"
}

module "print" {
  type  = "PrintDatum"
  label = "transform"
}

connect {
  from = src[0]
  to   = widget[0]
}

connect {
  from = widget[0]
  to   = out[0]
}

connect {
  from = widget[1]
  to   = print[0]
}
`

func transformPayload(scale, offset int64) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"scale":  cty.NumberIntVal(scale),
		"offset": cty.NumberIntVal(offset),
	})
}

func TestWidgetFeedbackReruns(t *testing.T) {
	h := load(t, widgetNetwork)

	_, err := h.app.RunTargets(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{10, 20}, {30, 40}}, h.received("out"))
	assert.Contains(t, h.logs.String(), "x*10+0")

	run, err := h.app.Session().Feedback(h.ctx, h.id("widget"), transformPayload(2, 1))
	require.NoError(t, err)
	ec, err := run.Wait(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, execctx.RunSucceeded, ec.Outcome())
	assert.Equal(t, [][]float64{{3, 5}, {7, 9}}, h.received("out"))
	assert.Contains(t, h.logs.String(), "x*2+1")

	res, ok := ec.Result(h.id("src"))
	assert.False(t, ok && res.Outcome == execctx.Executed, "feedback run must not re-run upstream modules")
	res, ok = ec.Result(h.id("print"))
	require.True(t, ok)
	assert.Equal(t, execctx.Executed, res.Outcome)
}

func TestWidgetFeedbackBadPayload(t *testing.T) {
	h := load(t, widgetNetwork)
	_, err := h.app.RunTargets(h.ctx)
	require.NoError(t, err)

	run, err := h.app.Session().Feedback(h.ctx, h.id("widget"), cty.StringVal("spin"))
	require.NoError(t, err)
	ec, err := run.Wait(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, execctx.RunFailed, ec.Outcome())
	assert.Contains(t, ec.Errors()[h.id("widget")].Error(), "feedback payload")

	res, ok := ec.Result(h.id("out"))
	require.True(t, ok)
	assert.Equal(t, execctx.UpstreamError, res.Reason)
	// The previous result stays visible downstream.
	assert.Equal(t, [][]float64{{10, 20}, {30, 40}}, h.received("out"))
}

func TestFeedbackToUnknownModule(t *testing.T) {
	h := load(t, widgetNetwork)
	_, err := h.app.Session().Feedback(h.ctx, "EditTransformWidget:9", transformPayload(1, 0))
	assert.Error(t, err)
}
