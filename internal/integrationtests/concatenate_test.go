package integrationtests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

const concatNetwork = `
module "top" {
  type  = "SendTestMatrix"
  value = [[1, 2]]
}

module "middle" {
  type  = "SendTestMatrix"
  value = [[3, 4]]
}

module "bottom" {
  type  = "SendTestMatrix"
  value = [[5, 6]]
}

module "join" {
  type = "ConcatenateMatrices"
  axis = "rows"
}

module "out" {
  type = "ReceiveTestMatrix"
}

connect {
  from = top[0]
  to   = join[0]
}

connect {
  from = middle[0]
  to   = join[1]
}

connect {
  from = bottom[0]
  to   = join[2]
}

connect {
  from = join[0]
  to   = out[0]
}
`

func TestConcatenateDynamicInputs(t *testing.T) {
	h := load(t, concatNetwork)

	r, err := h.app.RunTargets(h.ctx)
	require.NoError(t, err)
	require.Equal(t, execctx.RunSucceeded, r.Outcome, r.Errors)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {5, 6}}, h.received("out"))

	inst, ok := h.app.Network().Module(h.ctx, h.id("join"))
	require.True(t, ok)
	assert.Len(t, h.app.Network().Incoming(h.ctx, inst.ID), 3)

	t.Run("columns", func(t *testing.T) {
		changed := h.rewrite(replaceOnce(concatNetwork, `axis = "rows"`, `axis = "columns"`))
		assert.Equal(t, []moduleid.ID{h.id("join")}, changed)
		_, err := h.app.RunTargets(h.ctx)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{1, 2, 3, 4, 5, 6}}, h.received("out"))
	})
}

func TestConcatenateSkipsAPort(t *testing.T) {
	src := replaceOnce(concatNetwork, "to   = join[2]", "to   = join[5]")
	err := loadErr(t, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "join[5]")
}
