package localexecutor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/executor"
	"github.com/specialistvlad/dataflowgo/internal/localexecutor"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/network"
	"github.com/specialistvlad/dataflowgo/internal/notify"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
	"github.com/specialistvlad/dataflowgo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// harness is a network wired to an executor with a few scalar test modules.
type harness struct {
	t     *testing.T
	ctx   context.Context
	net   *network.Network
	exec  *localexecutor.Executor
	sched *scheduler.Scheduler
	trace *testutil.Trace
	rec   *notify.Recorder
	spans *tracetest.SpanRecorder

	mu       sync.Mutex
	reported []float64
	nextID   uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, trace: &testutil.Trace{}, rec: &notify.Recorder{}, spans: tracetest.NewSpanRecorder()}
	h.ctx, _ = testutil.Context(t)

	plugins := []registry.Module{
		testutil.NewScript("Send", func(_ context.Context, s *module.State, _ module.Inputs) (module.Outputs, error) {
			v, err := s.Float("value")
			return module.Outputs{0: v}, err
		}).WithOutputs(porttype.Scalar).
			WithParams(module.ParameterSpec{Name: "value", Default: cty.NumberIntVal(5)}).Traced(h.trace),
		testutil.NewScript("Negate", func(_ context.Context, _ *module.State, in module.Inputs) (module.Outputs, error) {
			v, err := module.Input[float64](in, 0)
			return module.Outputs{0: -v}, err
		}).WithInputs(porttype.Scalar).WithOutputs(porttype.Scalar).Traced(h.trace),
		testutil.NewScript("Add", func(_ context.Context, _ *module.State, in module.Inputs) (module.Outputs, error) {
			a, err := module.Input[float64](in, 0)
			if err != nil {
				return nil, err
			}
			b, err := module.Input[float64](in, 1)
			return module.Outputs{0: a + b}, err
		}).WithInputs(porttype.Scalar, porttype.Scalar).WithOutputs(porttype.Scalar).Traced(h.trace),
		testutil.NewScript("Fail", func(context.Context, *module.State, module.Inputs) (module.Outputs, error) {
			return nil, errors.New("boom")
		}).WithOptionalInputs(porttype.Scalar).WithOutputs(porttype.Scalar).Traced(h.trace),
		testutil.NewScript("Panic", func(context.Context, *module.State, module.Inputs) (module.Outputs, error) {
			panic("kaboom")
		}).WithOutputs(porttype.Scalar).Traced(h.trace),
		testutil.NewScript("Fatal", func(context.Context, *module.State, module.Inputs) (module.Outputs, error) {
			return nil, module.Fatal(errors.New("invariant broken"))
		}).WithOutputs(porttype.Scalar).Traced(h.trace),
		testutil.NewScript("Cancel", func(ctx context.Context, _ *module.State, _ module.Inputs) (module.Outputs, error) {
			ec, _ := execctx.FromContext(ctx)
			ec.Cancel()
			return module.Outputs{0: 1.0}, nil
		}).WithOutputs(porttype.Scalar).Traced(h.trace),
		testutil.NewScript("Report", func(_ context.Context, _ *module.State, in module.Inputs) (module.Outputs, error) {
			v, err := module.Input[float64](in, 0)
			if err == nil {
				h.mu.Lock()
				h.reported = append(h.reported, v)
				h.mu.Unlock()
			}
			return nil, err
		}).WithInputs(porttype.Scalar).Traced(h.trace),
		incrementer(h.trace),
		loopPlugin{trace: h.trace},
	}

	h.net = network.New(registry.New(plugins...), network.WithSink(h.rec))
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(h.spans))
	h.exec = localexecutor.New(h.net, localexecutor.WithTracer(tp.Tracer("test")))
	h.sched = scheduler.New(h.net)
	return h
}

func (h *harness) add(name string) moduleid.ID {
	h.t.Helper()
	id, err := h.net.AddModule(h.ctx, name, "")
	require.NoError(h.t, err)
	return id
}

func (h *harness) connect(from moduleid.ID, fromPort int, to moduleid.ID, toPort int) {
	h.t.Helper()
	_, err := h.net.Connect(h.ctx,
		moduleid.PortRef{Module: from, Index: fromPort},
		moduleid.PortRef{Module: to, Index: toPort})
	require.NoError(h.t, err)
}

func (h *harness) run(req scheduler.Request) (*execctx.Context, error) {
	h.t.Helper()
	plan, err := h.sched.Plan(h.ctx, req)
	require.NoError(h.t, err)
	h.nextID++
	ec := execctx.New(h.nextID, req.Targets)
	return ec, h.exec.Execute(h.ctx, plan, ec)
}

func (h *harness) mustRun(req scheduler.Request) *execctx.Context {
	h.t.Helper()
	ec, err := h.run(req)
	require.NoError(h.t, err)
	return ec
}

func (h *harness) last() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(h.t, h.reported)
	return h.reported[len(h.reported)-1]
}

func outcome(t *testing.T, ec *execctx.Context, id moduleid.ID) execctx.Result {
	t.Helper()
	r, ok := ec.Result(id)
	require.True(t, ok, "no outcome recorded for %s", id)
	return r
}

func TestSendNegateReport(t *testing.T) {
	h := newHarness(t)
	send, neg, rep := h.add("Send"), h.add("Negate"), h.add("Report")
	h.connect(send, 0, neg, 0)
	h.connect(neg, 0, rep, 0)

	ec := h.mustRun(scheduler.Request{})
	assert.Equal(t, execctx.RunSucceeded, ec.Outcome())
	assert.Equal(t, -5.0, h.last())
	assert.Equal(t, []string{"Send", "Negate", "Report"}, h.trace.Names())

	t.Run("unchanged network does no work", func(t *testing.T) {
		h.trace.Reset()
		ec := h.mustRun(scheduler.Request{})
		assert.Empty(t, h.trace.Names())
		for _, id := range []moduleid.ID{send, neg, rep} {
			assert.Equal(t, execctx.UpToDate, outcome(t, ec, id).Reason)
			assert.Equal(t, module.Executed, h.net.Status(h.ctx, id))
		}
	})

	t.Run("parameter change propagates", func(t *testing.T) {
		h.trace.Reset()
		_, err := h.net.SetParameter(h.ctx, send, "value", cty.NumberIntVal(7))
		require.NoError(t, err)
		assert.Equal(t, module.NeedsExecute, h.net.Status(h.ctx, neg))

		h.mustRun(scheduler.Request{})
		assert.Equal(t, -7.0, h.last())
		assert.Equal(t, []string{"Send", "Negate", "Report"}, h.trace.Names())
	})
}

func TestUpstreamErrorInChain(t *testing.T) {
	h := newHarness(t)
	a, b, c := h.add("Fail"), h.add("Negate"), h.add("Report")
	h.connect(a, 0, b, 0)
	h.connect(b, 0, c, 0)

	ec := h.mustRun(scheduler.Request{})
	assert.Equal(t, execctx.RunFailed, ec.Outcome())
	require.Contains(t, ec.Errors(), a)
	assert.EqualError(t, ec.Errors()[a], "boom")

	assert.Equal(t, execctx.Failed, outcome(t, ec, a).Outcome)
	for _, id := range []moduleid.ID{b, c} {
		r := outcome(t, ec, id)
		assert.Equal(t, execctx.Skipped, r.Outcome)
		assert.Equal(t, execctx.UpstreamError, r.Reason)
		assert.NotEqual(t, module.Executed, h.net.Status(h.ctx, id))
	}
	assert.Equal(t, module.Error, h.net.Status(h.ctx, a))

	skipped := notify.OfType[notify.ModuleSkipped](h.rec)
	assert.Len(t, skipped, 2)
	finished := h.spans.Ended()
	assert.NotEmpty(t, finished)
}

func TestFanInNeedsEveryInput(t *testing.T) {
	t.Run("one failing input skips the join", func(t *testing.T) {
		h := newHarness(t)
		a, b, c := h.add("Send"), h.add("Fail"), h.add("Add")
		h.connect(a, 0, c, 0)
		h.connect(b, 0, c, 1)

		ec := h.mustRun(scheduler.Request{})
		assert.Equal(t, execctx.Executed, outcome(t, ec, a).Outcome)
		assert.Equal(t, execctx.UpstreamError, outcome(t, ec, c).Reason)
	})

	t.Run("an unrelated failure does not", func(t *testing.T) {
		h := newHarness(t)
		a, b, c := h.add("Send"), h.add("Fail"), h.add("Report")
		h.connect(a, 0, c, 0)

		ec := h.mustRun(scheduler.Request{})
		assert.Equal(t, execctx.Failed, outcome(t, ec, b).Outcome)
		assert.Equal(t, execctx.Executed, outcome(t, ec, c).Outcome)
		assert.Equal(t, 5.0, h.last())
	})
}

func TestMissingInput(t *testing.T) {
	h := newHarness(t)
	s1, s2, sum, rep := h.add("Send"), h.add("Send"), h.add("Report"), h.add("Report")
	h.connect(s1, 0, sum, 0)
	h.connect(s2, 0, rep, 0)
	h.mustRun(scheduler.Request{})

	in := h.net.Incoming(h.ctx, sum)
	require.Len(t, in, 1)
	require.NoError(t, h.net.Disconnect(h.ctx, in[0]))
	assert.Equal(t, module.NeedsExecute, h.net.Status(h.ctx, sum))

	_, err := h.net.SetParameter(h.ctx, s2, "value", cty.NumberIntVal(1))
	require.NoError(t, err)

	ec := h.mustRun(scheduler.Request{})
	assert.Equal(t, execctx.MissingInput, outcome(t, ec, sum).Reason)
	assert.Equal(t, module.NeedsExecute, h.net.Status(h.ctx, sum))
	assert.Equal(t, execctx.Executed, outcome(t, ec, rep).Outcome)
	assert.Equal(t, 1.0, h.last())
}

func TestLostInputWithdrawsDownstreamData(t *testing.T) {
	chain := func(t *testing.T) (*harness, moduleid.ID, moduleid.ID, moduleid.ID) {
		h := newHarness(t)
		send, neg, rep := h.add("Send"), h.add("Negate"), h.add("Report")
		h.connect(send, 0, neg, 0)
		h.connect(neg, 0, rep, 0)
		h.mustRun(scheduler.Request{})
		require.Equal(t, -5.0, h.last())
		return h, send, neg, rep
	}

	check := func(t *testing.T, h *harness, neg, rep moduleid.ID) {
		assert.Equal(t, module.NeedsExecute, h.net.Status(h.ctx, rep))

		ec := h.mustRun(scheduler.Request{})
		assert.Equal(t, execctx.MissingInput, outcome(t, ec, neg).Reason)
		assert.Equal(t, execctx.MissingInput, outcome(t, ec, rep).Reason)
		_, published := h.net.Output(h.ctx, moduleid.PortRef{Module: neg, Index: 0})
		assert.False(t, published)
		assert.Equal(t, module.NeedsExecute, h.net.Status(h.ctx, rep))
	}

	t.Run("disconnect", func(t *testing.T) {
		h, _, neg, rep := chain(t)
		in := h.net.Incoming(h.ctx, neg)
		require.Len(t, in, 1)
		require.NoError(t, h.net.Disconnect(h.ctx, in[0]))
		check(t, h, neg, rep)
	})

	t.Run("remove source", func(t *testing.T) {
		h, send, neg, rep := chain(t)
		require.NoError(t, h.net.RemoveModule(h.ctx, send))
		check(t, h, neg, rep)
	})
}

func TestPanicIsRecoverable(t *testing.T) {
	h := newHarness(t)
	p, s := h.add("Panic"), h.add("Send")

	ec := h.mustRun(scheduler.Request{})
	assert.Contains(t, ec.Errors()[p].Error(), "kaboom")
	assert.Equal(t, execctx.Executed, outcome(t, ec, s).Outcome)
}

func TestFatalAbortsRun(t *testing.T) {
	h := newHarness(t)
	f, s := h.add("Fatal"), h.add("Send")

	ec, err := h.run(scheduler.Request{})
	require.ErrorIs(t, err, executor.ErrAborted)
	assert.True(t, module.IsFatal(err))
	assert.Equal(t, execctx.RunAborted, ec.Outcome())
	assert.Equal(t, execctx.Failed, outcome(t, ec, f).Outcome)
	assert.Equal(t, execctx.Aborted, outcome(t, ec, s).Reason)
	assert.Equal(t, 0, h.trace.Count("Send"))
}

func TestCancellationBetweenModules(t *testing.T) {
	h := newHarness(t)
	c, s := h.add("Cancel"), h.add("Send")

	ec := h.mustRun(scheduler.Request{})
	assert.Equal(t, execctx.RunCancelled, ec.Outcome())
	assert.Equal(t, execctx.Executed, outcome(t, ec, c).Outcome, "the module that cancelled still finishes")
	assert.Equal(t, execctx.Cancelled, outcome(t, ec, s).Reason)
	assert.Empty(t, ec.Errors(), "cancellation is not an error")

	_, ok := h.net.Output(h.ctx, moduleid.PortRef{Module: c})
	assert.True(t, ok, "outputs published before cancellation stay available")
}

func TestSelectiveRun(t *testing.T) {
	h := newHarness(t)
	s1, n1 := h.add("Send"), h.add("Negate")
	s2, n2 := h.add("Send"), h.add("Negate")
	h.connect(s1, 0, n1, 0)
	h.connect(s2, 0, n2, 0)

	ec := h.mustRun(scheduler.Request{Targets: []moduleid.ID{n1}})
	_, touched := ec.Result(s2)
	assert.False(t, touched, "modules outside the scope get no outcome")
	assert.Equal(t, module.NeverExecuted, h.net.Status(h.ctx, n2))
	assert.Equal(t, module.Executed, h.net.Status(h.ctx, n1))

	h.trace.Reset()
	require.NoError(t, h.net.MarkNeedsExecute(h.ctx, s2))
	h.mustRun(scheduler.Request{Dirty: []moduleid.ID{s2}})
	assert.Equal(t, []string{"Send", "Negate"}, h.trace.Names())
	assert.Equal(t, module.Executed, h.net.Status(h.ctx, n2))
}
