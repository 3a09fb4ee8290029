package localsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/executor"
	"github.com/specialistvlad/dataflowgo/internal/history"
	"github.com/specialistvlad/dataflowgo/internal/localexecutor"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/network"
	"github.com/specialistvlad/dataflowgo/internal/notify"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
	"github.com/specialistvlad/dataflowgo/internal/session"
	"github.com/specialistvlad/dataflowgo/internal/telemetry"
)

// Session implements session.Session for local runs.
type Session struct {
	net     *network.Network
	sched   *scheduler.Scheduler
	exec    executor.Executor
	archive history.Store
	metrics *telemetry.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}
	exited chan struct{}

	mu       sync.Mutex
	queue    []*session.Run
	active   *session.Run
	deferred []*session.Mutation
	nextID   uint64
	closed   bool
}

// Option configures a Session.
type Option func(*Session)

// WithArchive saves a report of every finished run to store.
func WithArchive(store history.Store) Option {
	return func(s *Session) { s.archive = store }
}

// WithMetrics records run activity on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithExecutor replaces the default local executor.
func WithExecutor(e executor.Executor) Option {
	return func(s *Session) { s.exec = e }
}

// New starts a session driving net. The coordinating goroutine lives until
// Close is called or ctx ends; ctx also carries the logger.
func New(ctx context.Context, net *network.Network, opts ...Option) *Session {
	s := &Session{
		net:    net,
		sched:  scheduler.New(net),
		wake:   make(chan struct{}, 1),
		exited: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exec == nil {
		s.exec = localexecutor.New(net, localexecutor.WithMetrics(s.metrics))
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.loop()
	return s
}

var _ session.Session = (*Session)(nil)

// Network implements session.Session.
func (s *Session) Network() *network.Network { return s.net }

// Execute implements session.Session.
func (s *Session) Execute(ctx context.Context, req scheduler.Request) (*session.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, session.ErrClosed
	}
	return s.enqueueLocked(ctx, req), nil
}

func (s *Session) enqueueLocked(ctx context.Context, req scheduler.Request) *session.Run {
	s.nextID++
	run := session.NewRun(execctx.New(s.nextID, req.Targets), req)
	s.queue = append(s.queue, run)
	ctxlog.FromContext(ctx).Debug("Run queued.", "execution_id", s.nextID, "queued", len(s.queue))
	s.signal()
	return run
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Feedback implements session.Session. A feedback run for a module that is
// still queued absorbs later feedback for the same module.
func (s *Session) Feedback(ctx context.Context, id moduleid.ID, payload cty.Value) (*session.Run, error) {
	if err := s.net.SetTransient(ctx, id, module.FeedbackParameter, payload); err != nil {
		return nil, err
	}
	if err := s.net.MarkNeedsExecute(ctx, id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, session.ErrClosed
	}
	for _, queued := range s.queue {
		if dirty := queued.Request().Dirty; len(dirty) == 1 && dirty[0] == id && len(queued.Request().Targets) == 0 {
			return queued, nil
		}
	}
	ctxlog.FromContext(ctx).Debug("Feedback received.", "module", id)
	return s.enqueueLocked(ctx, scheduler.Request{Dirty: []moduleid.ID{id}}), nil
}

// Mutate implements session.Session.
func (s *Session) Mutate(ctx context.Context, fn session.MutateFunc) *session.Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		m := session.NewMutation(fn, false)
		m.Fail(session.ErrClosed)
		return m
	}
	if s.active != nil {
		m := session.NewMutation(fn, true)
		s.deferred = append(s.deferred, m)
		ctxlog.FromContext(ctx).Debug("Topology change deferred until the active run completes.", "pending", len(s.deferred))
		return m
	}
	m := session.NewMutation(fn, false)
	m.Apply(ctx, s.net)
	return m
}

// Close implements session.Session.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.active != nil {
		s.active.Cancel()
	}
	queued := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, run := range queued {
		run.Cancel()
		run.Finish(session.ErrClosed)
	}
	s.cancel()

	select {
	case <-s.exited:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			return fmt.Errorf("close run archive: %w", err)
		}
	}
	return nil
}

// loop is the coordinating goroutine.
func (s *Session) loop() {
	defer close(s.exited)
	for {
		select {
		case <-s.ctx.Done():
			s.drain()
			return
		case <-s.wake:
		}
		for s.next() {
		}
	}
}

// next starts the oldest queued run and reports whether there was one.
func (s *Session) next() bool {
	s.mu.Lock()
	if len(s.queue) == 0 || s.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	run := s.queue[0]
	s.queue = s.queue[1:]
	s.active = run
	s.mu.Unlock()

	s.execute(run)

	s.mu.Lock()
	s.active = nil
	pending := s.deferred
	s.deferred = nil
	for _, m := range pending {
		m.Apply(s.ctx, s.net)
	}
	if !s.closed {
		for _, rr := range run.Context().Reruns() {
			s.rerunLocked(rr)
		}
	}
	s.mu.Unlock()
	return true
}

func (s *Session) rerunLocked(rr execctx.Rerun) {
	logger := ctxlog.FromContext(s.ctx)
	if !rr.Payload.IsNull() {
		if err := s.net.SetTransient(s.ctx, rr.Module, module.FeedbackParameter, rr.Payload); err != nil {
			logger.Warn("Dropping re-run request.", "module", rr.Module, "error", err)
			return
		}
	}
	if err := s.net.MarkNeedsExecute(s.ctx, rr.Module); err != nil {
		logger.Warn("Dropping re-run request.", "module", rr.Module, "error", err)
		return
	}
	s.enqueueLocked(s.ctx, scheduler.Request{Dirty: []moduleid.ID{rr.Module}})
}

// drain fails whatever is still queued after the session context ended.
func (s *Session) drain() {
	s.mu.Lock()
	queued := s.queue
	s.queue = nil
	pending := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	for _, run := range queued {
		run.Cancel()
		run.Finish(session.ErrClosed)
	}
	for _, m := range pending {
		m.Fail(session.ErrClosed)
	}
}

// execute performs one run end to end.
func (s *Session) execute(run *session.Run) {
	ec := run.Context()
	logger := ctxlog.FromContext(s.ctx).With("execution_id", ec.ID, "run_id", ec.RunID)
	ctx := ctxlog.WithLogger(s.ctx, logger)
	sink := s.net.Sink()

	sink.Notify(ctx, notify.RunStarted{ExecutionID: ec.ID, RunID: ec.RunID, Targets: ec.Targets})
	logger.Info("🚀 Starting run.", "targets", len(ec.Targets), "dirty", len(run.Request().Dirty))

	var err error
	if !ec.Cancelled() {
		var plan *scheduler.Plan
		plan, err = s.sched.Plan(ctx, run.Request())
		if err != nil {
			ec.Abort(err)
			err = fmt.Errorf("%w: %w", executor.ErrAborted, err)
			logger.Error("Run could not be planned.", "error", err)
		} else {
			err = s.exec.Execute(ctx, plan, ec)
		}
	}

	finished := time.Now()
	errs := make(map[moduleid.ID]string)
	for id, e := range ec.Errors() {
		errs[id] = e.Error()
	}
	outcome := ec.Outcome()
	sink.Notify(ctx, notify.RunFinished{ExecutionID: ec.ID, RunID: ec.RunID, Outcome: string(outcome), Errors: errs})
	s.metrics.ObserveRun(ctx, string(outcome), finished.Sub(ec.Started))

	if s.archive != nil {
		if aerr := s.archive.Save(ctx, history.NewReport(ec, finished)); aerr != nil {
			logger.Warn("Could not archive run report.", "error", aerr)
		}
	}
	logger.Info("🏁 Run finished.", "outcome", outcome, "errors", len(errs), "duration", finished.Sub(ec.Started))

	if err == nil && outcome == execctx.RunCancelled {
		err = execctx.ErrCancelled
	}
	run.Finish(err)
}

// Factory implements session.Factory for local runs.
type Factory struct {
	Options []Option
}

// NewSession creates a local session for net.
func (f *Factory) NewSession(ctx context.Context, net *network.Network) (session.Session, error) {
	if net == nil {
		return nil, errors.New("localsession: nil network")
	}
	return New(ctx, net, f.Options...), nil
}
