package localsession_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/history"
	"github.com/specialistvlad/dataflowgo/internal/localsession"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/network"
	"github.com/specialistvlad/dataflowgo/internal/notify"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
	"github.com/specialistvlad/dataflowgo/internal/session"
	"github.com/specialistvlad/dataflowgo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const waitFor = 5 * time.Second

type fixture struct {
	ctx     context.Context
	net     *network.Network
	sess    *localsession.Session
	rec     *notify.Recorder
	trace   *testutil.Trace
	archive *history.MemoryStore

	gate      chan struct{}
	entered   chan struct{}
	feedbacks atomic.Value
	reruns    atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rec:     &notify.Recorder{},
		trace:   &testutil.Trace{},
		archive: history.NewMemoryStore(0),
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 8),
	}
	f.ctx, _ = testutil.Context(t)

	reg := registry.New(
		testutil.NewScript("Send", func(_ context.Context, s *module.State, _ module.Inputs) (module.Outputs, error) {
			v, err := s.Float("value")
			return module.Outputs{0: v}, err
		}).WithOutputs(porttype.Scalar).
			WithParams(module.ParameterSpec{Name: "value", Default: cty.NumberIntVal(5)}).Traced(f.trace),
		testutil.NewScript("Negate", func(_ context.Context, _ *module.State, in module.Inputs) (module.Outputs, error) {
			v, err := module.Input[float64](in, 0)
			return module.Outputs{0: -v}, err
		}).WithInputs(porttype.Scalar).WithOutputs(porttype.Scalar).Traced(f.trace),
		testutil.NewScript("Gate", func(ctx context.Context, _ *module.State, _ module.Inputs) (module.Outputs, error) {
			f.entered <- struct{}{}
			select {
			case <-f.gate:
			case <-ctx.Done():
			}
			return module.Outputs{0: 1.0}, nil
		}).WithOutputs(porttype.Scalar).Traced(f.trace),
		testutil.NewScript("Widget", func(_ context.Context, s *module.State, in module.Inputs) (module.Outputs, error) {
			if v, ok := s.Get(module.FeedbackParameter); ok {
				f.feedbacks.Store(v)
			}
			base, err := module.Input[float64](in, 0)
			return module.Outputs{0: base}, err
		}).WithInputs(porttype.Scalar).WithOutputs(porttype.Scalar).Traced(f.trace),
		testutil.NewScript("Echo", func(ctx context.Context, _ *module.State, _ module.Inputs) (module.Outputs, error) {
			if f.reruns.Add(1) == 1 {
				ec, _ := execctx.FromContext(ctx)
				ec.RequestRerun("Echo:0", cty.StringVal("again"))
			}
			return nil, nil
		}).Traced(f.trace),
	)
	f.net = network.New(reg, network.WithSink(f.rec))
	f.sess = localsession.New(f.ctx, f.net, localsession.WithArchive(f.archive))
	t.Cleanup(func() {
		select {
		case <-f.gate:
		default:
			close(f.gate)
		}
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		require.NoError(t, f.sess.Close(ctx))
	})
	return f
}

func (f *fixture) add(t *testing.T, name string) moduleid.ID {
	t.Helper()
	id, err := f.net.AddModule(f.ctx, name, "")
	require.NoError(t, err)
	return id
}

func (f *fixture) connect(t *testing.T, from, to moduleid.ID) {
	t.Helper()
	_, err := f.net.Connect(f.ctx, moduleid.PortRef{Module: from}, moduleid.PortRef{Module: to})
	require.NoError(t, err)
}

func (f *fixture) wait(t *testing.T, run *session.Run) *execctx.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(f.ctx, waitFor)
	defer cancel()
	ec, err := run.Wait(ctx)
	require.NoError(t, err)
	return ec
}

func TestExecuteAndArchive(t *testing.T) {
	f := newFixture(t)
	send, neg := f.add(t, "Send"), f.add(t, "Negate")
	f.connect(t, send, neg)

	run, err := f.sess.Execute(f.ctx, scheduler.Request{})
	require.NoError(t, err)
	ec := f.wait(t, run)
	assert.Equal(t, execctx.RunSucceeded, ec.Outcome())

	out, ok := f.net.Output(f.ctx, moduleid.PortRef{Module: neg})
	require.True(t, ok)
	assert.Equal(t, -5.0, out.Value)

	finished := notify.OfType[notify.RunFinished](f.rec)
	require.Len(t, finished, 1)
	assert.NotNil(t, finished[0].Errors, "completion always carries the error collection")
	assert.Empty(t, finished[0].Errors)

	reports, err := f.archive.List(f.ctx, 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ec.RunID, reports[0].RunID)
}

func TestRunsAreSerialized(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Gate")

	first, err := f.sess.Execute(f.ctx, scheduler.Request{})
	require.NoError(t, err)
	<-f.entered

	second, err := f.sess.Execute(f.ctx, scheduler.Request{})
	require.NoError(t, err)

	select {
	case <-second.Done():
		t.Fatal("second run finished while the first was still active")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.gate)
	f.wait(t, first)
	f.wait(t, second)
	assert.Less(t, first.Context().ID, second.Context().ID)

	var kinds []notify.Type
	for _, e := range f.rec.Events() {
		switch e.(type) {
		case notify.RunStarted, notify.RunFinished:
			kinds = append(kinds, e.EventType())
		}
	}
	assert.Equal(t, []notify.Type{
		notify.RunStartedType, notify.RunFinishedType,
		notify.RunStartedType, notify.RunFinishedType,
	}, kinds)
}

func TestMutationDeferredDuringRun(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Gate")

	run, err := f.sess.Execute(f.ctx, scheduler.Request{})
	require.NoError(t, err)
	<-f.entered

	m := f.sess.Mutate(f.ctx, func(ctx context.Context, net *network.Network) error {
		_, err := net.AddModule(ctx, "Send", "")
		return err
	})
	assert.True(t, m.Deferred())
	assert.Len(t, f.net.Modules(f.ctx), 1, "structure does not change under an active run")

	close(f.gate)
	f.wait(t, run)

	ctx, cancel := context.WithTimeout(f.ctx, waitFor)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
	assert.Len(t, f.net.Modules(f.ctx), 2)

	t.Run("idle session applies immediately", func(t *testing.T) {
		m := f.sess.Mutate(f.ctx, func(ctx context.Context, net *network.Network) error {
			return net.RemoveModule(ctx, "Send:0")
		})
		assert.False(t, m.Deferred())
		require.NoError(t, m.Wait(f.ctx))
	})
}

func TestFeedbackRunsOnlyTheAffectedBranch(t *testing.T) {
	f := newFixture(t)
	base, widget, neg := f.add(t, "Send"), f.add(t, "Widget"), f.add(t, "Negate")
	other, otherNeg := f.add(t, "Send"), f.add(t, "Negate")
	f.connect(t, base, widget)
	f.connect(t, widget, neg)
	f.connect(t, other, otherNeg)

	f.wait(t, must(f.sess.Execute(f.ctx, scheduler.Request{})))
	f.trace.Reset()

	run, err := f.sess.Feedback(f.ctx, widget, cty.StringVal("drag"))
	require.NoError(t, err)
	ec := f.wait(t, run)

	assert.Equal(t, []string{"Widget", "Negate"}, f.trace.Names())
	got, ok := f.feedbacks.Load().(cty.Value)
	require.True(t, ok)
	assert.True(t, got.RawEquals(cty.StringVal("drag")))

	_, touched := ec.Result(other)
	assert.False(t, touched)
	assert.Equal(t, module.Executed, f.net.Status(f.ctx, otherNeg))
}

func TestRerunRequestedFromModule(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Echo")

	f.wait(t, must(f.sess.Execute(f.ctx, scheduler.Request{})))

	require.Eventually(t, func() bool {
		return f.trace.Count("Echo") == 2
	}, waitFor, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(notify.OfType[notify.RunFinished](f.rec)) == 2
	}, waitFor, 10*time.Millisecond)
}

func TestCancelQueuedRun(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Gate")

	first := must(f.sess.Execute(f.ctx, scheduler.Request{}))
	<-f.entered
	second := must(f.sess.Execute(f.ctx, scheduler.Request{}))
	second.Cancel()
	close(f.gate)

	f.wait(t, first)
	ctx, cancel := context.WithTimeout(f.ctx, waitFor)
	defer cancel()
	_, err := second.Wait(ctx)
	require.ErrorIs(t, err, execctx.ErrCancelled)
	assert.Equal(t, execctx.RunCancelled, second.Context().Outcome())
}

func TestClosedSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.Close(f.ctx))

	_, err := f.sess.Execute(f.ctx, scheduler.Request{})
	require.ErrorIs(t, err, session.ErrClosed)
	m := f.sess.Mutate(f.ctx, func(context.Context, *network.Network) error { return nil })
	require.ErrorIs(t, m.Wait(f.ctx), session.ErrClosed)
}

func must(run *session.Run, err error) *session.Run {
	if err != nil {
		panic(err)
	}
	return run
}
