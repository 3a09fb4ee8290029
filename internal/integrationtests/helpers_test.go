// Package integrationtests drives whole networks through the app layer: HCL
// files are loaded, run through a local session and inspected through the
// module state they leave behind.
package integrationtests

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/dataflowgo/internal/app"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/testutil"
	"github.com/specialistvlad/dataflowgo/modules/matrix"
	"github.com/specialistvlad/dataflowgo/modules/report"
	"github.com/specialistvlad/dataflowgo/modules/testmatrix"
)

type harness struct {
	t    *testing.T
	ctx  context.Context
	app  *app.App
	path string
	logs *testutil.SafeBuffer
}

// load writes src as the network file and loads it into a fresh app.
func load(t *testing.T, src string) *harness {
	t.Helper()
	h := newHarness(t, src)
	require.NoError(t, h.app.Load(h.ctx))
	return h
}

// loadErr returns the error loading src fails with.
func loadErr(t *testing.T, src string) error {
	t.Helper()
	h := newHarness(t, src)
	return h.app.Load(h.ctx)
}

func newHarness(t *testing.T, src string) *harness {
	t.Helper()

	path := filepath.Join(t.TempDir(), "network.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	cfg, err := app.NewConfig(app.Config{NetworkPath: path, LogLevel: "debug"})
	require.NoError(t, err)

	logs := &testutil.SafeBuffer{}
	a, err := app.NewApp(logs, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, a.Close(context.Background()))
		if os.Getenv(testutil.LogsEnv) == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	return &harness{t: t, ctx: context.Background(), app: a, path: path, logs: logs}
}

// rewrite replaces the network file and re-applies its parameters.
func (h *harness) rewrite(src string) []moduleid.ID {
	h.t.Helper()
	require.NoError(h.t, os.WriteFile(h.path, []byte(src), 0o644))
	changed, err := h.app.Reload(h.ctx)
	require.NoError(h.t, err)
	return changed
}

func (h *harness) id(label string) moduleid.ID {
	h.t.Helper()
	id, ok := h.app.Labels().Lookup(label)
	require.True(h.t, ok, "no module labelled %q", label)
	return id
}

func (h *harness) state(label string) *module.State {
	h.t.Helper()
	inst, ok := h.app.Network().Module(h.ctx, h.id(label))
	require.True(h.t, ok)
	return inst.State
}

// received returns the rows last seen by a ReceiveTestMatrix module.
func (h *harness) received(label string) [][]float64 {
	h.t.Helper()
	m, err := testmatrix.Received(h.state(label))
	require.NoError(h.t, err)
	return m.ToRows()
}

// info returns the summary last computed by a ReportMatrixInfo module.
func (h *harness) info(label string) matrix.Info {
	h.t.Helper()
	info, ok := report.Info(h.state(label))
	require.True(h.t, ok, "module %q has no info", label)
	return info
}

func replaceOnce(src, old, new string) string {
	if !strings.Contains(src, old) {
		panic("fixture does not contain " + old)
	}
	return strings.Replace(src, old, new, 1)
}
