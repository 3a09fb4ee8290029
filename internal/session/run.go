package session

import (
	"context"
	"sync"

	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/network"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
)

// Run is the handle of one enqueued run.
type Run struct {
	ec   *execctx.Context
	req  scheduler.Request
	done chan struct{}

	mu  sync.Mutex
	err error
}

// NewRun creates a handle for a run that has not started yet.
func NewRun(ec *execctx.Context, req scheduler.Request) *Run {
	return &Run{ec: ec, req: req, done: make(chan struct{})}
}

// Context returns the run's execution context. It is live while the run is
// active.
func (r *Run) Context() *execctx.Context { return r.ec }

// Request returns what the run covers.
func (r *Run) Request() scheduler.Request { return r.req }

// Done is closed when the run has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Cancel raises the run's cancellation flag. A queued run then finishes
// without executing anything.
func (r *Run) Cancel() { r.ec.Cancel() }

// Finish completes the run with err. Only the first call has an effect.
func (r *Run) Finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
		return
	default:
	}
	r.err = err
	close(r.done)
}

// Err returns the run's terminal error once Done is closed.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Wait blocks until the run finishes or ctx ends. The error is nil when the
// run completed, even with module errors (see Context().Errors()); it wraps
// executor.ErrAborted after a fatal error and is execctx.ErrCancelled after
// cancellation.
func (r *Run) Wait(ctx context.Context) (*execctx.Context, error) {
	select {
	case <-r.done:
		return r.ec, r.Err()
	case <-ctx.Done():
		return r.ec, ctx.Err()
	}
}

// Mutation is the handle of a topology change submitted through Mutate.
type Mutation struct {
	fn       MutateFunc
	deferred bool
	done     chan struct{}
	err      error
}

// NewMutation wraps fn.
func NewMutation(fn MutateFunc, deferred bool) *Mutation {
	return &Mutation{fn: fn, deferred: deferred, done: make(chan struct{})}
}

// Apply runs the mutation and completes it.
func (m *Mutation) Apply(ctx context.Context, net *network.Network) {
	m.err = m.fn(ctx, net)
	close(m.done)
}

// Fail completes the mutation without running it.
func (m *Mutation) Fail(err error) {
	m.err = err
	close(m.done)
}

// Deferred reports whether the mutation had to wait for an active run.
func (m *Mutation) Deferred() bool { return m.deferred }

// Done is closed once the mutation was applied.
func (m *Mutation) Done() <-chan struct{} { return m.done }

// Wait blocks until the mutation was applied and returns its error.
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
