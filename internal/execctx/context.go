package execctx

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// Rerun is a follow-up run requested while a run was active.
type Rerun struct {
	Module  moduleid.ID
	Payload cty.Value
}

// Context is the state of one run. It is safe for concurrent use: the run
// goroutine writes it while notification consumers read it.
type Context struct {
	ID      uint64
	RunID   string
	Targets []moduleid.ID
	Started time.Time

	cancelled atomic.Bool

	mu      sync.Mutex
	touched map[moduleid.ID]bool
	results map[moduleid.ID]Result
	order   []moduleid.ID
	errs    map[moduleid.ID]error
	fatal   error
	reruns  []Rerun
}

// New creates the context for run number id.
func New(id uint64, targets []moduleid.ID) *Context {
	return &Context{
		ID:      id,
		RunID:   uuid.NewString(),
		Targets: targets,
		Started: time.Now(),
		touched: make(map[moduleid.ID]bool),
		results: make(map[moduleid.ID]Result),
		errs:    make(map[moduleid.ID]error),
	}
}

// Cancel raises the cancellation flag. It is checked between module
// executions.
func (c *Context) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (c *Context) Cancelled() bool { return c.cancelled.Load() }

// Touch records that the run considered a module.
func (c *Context) Touch(id moduleid.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched[id] = true
}

// Touched reports whether the run considered a module.
func (c *Context) Touched(id moduleid.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched[id]
}

// RecordExecuted records a successful execution.
func (c *Context) RecordExecuted(id moduleid.ID, d time.Duration) {
	c.record(Result{Module: id, Outcome: Executed, Duration: d})
}

// RecordFailed records a recoverable execution error.
func (c *Context) RecordFailed(id moduleid.ID, err error, d time.Duration) {
	c.mu.Lock()
	c.errs[id] = err
	c.mu.Unlock()
	c.record(Result{Module: id, Outcome: Failed, Error: err.Error(), Duration: d})
}

// RecordSkipped records a module that stayed out of execution.
func (c *Context) RecordSkipped(id moduleid.ID, reason SkipReason) {
	c.record(Result{Module: id, Outcome: Skipped, Reason: reason})
}

// SetIterations notes how many iterations a loop ran.
func (c *Context) SetIterations(id moduleid.ID, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.results[id]; ok {
		r.Iterations = n
		c.results[id] = r
	}
}

func (c *Context) record(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touched[r.Module] = true
	if _, seen := c.results[r.Module]; !seen {
		c.order = append(c.order, r.Module)
	}
	c.results[r.Module] = r
}

// Result returns the latest outcome recorded for a module.
func (c *Context) Result(id moduleid.ID) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.results[id]
	return r, ok
}

// Results returns every recorded outcome in first-recorded order.
func (c *Context) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.results[id])
	}
	return out
}

// Errors returns a copy of the error collection. It is never nil.
func (c *Context) Errors() map[moduleid.ID]error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[moduleid.ID]error, len(c.errs))
	for k, v := range c.errs {
		out[k] = v
	}
	return out
}

// Abort records a fatal error that ended the run.
func (c *Context) Abort(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fatal == nil {
		c.fatal = err
	}
}

// Fatal returns the error passed to Abort, if any.
func (c *Context) Fatal() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatal
}

// RequestRerun asks for a follow-up run rooted at id once this run is over.
// payload, unless null, becomes the module's feedback parameter.
func (c *Context) RequestRerun(id moduleid.ID, payload cty.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reruns = append(c.reruns, Rerun{Module: id, Payload: payload})
}

// Reruns returns the follow-up requests in request order.
func (c *Context) Reruns() []Rerun {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Rerun(nil), c.reruns...)
}

// Outcome classifies the run: aborted beats cancelled beats failed.
func (c *Context) Outcome() RunOutcome {
	switch {
	case c.Fatal() != nil:
		return RunAborted
	case c.Cancelled():
		return RunCancelled
	case len(c.Errors()) > 0:
		return RunFailed
	default:
		return RunSucceeded
	}
}

type ctxKey struct{}

// WithContext attaches ec to ctx.
func WithContext(ctx context.Context, ec *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ec)
}

// FromContext returns the execution context of the run ctx belongs to.
func FromContext(ctx context.Context) (*Context, bool) {
	ec, ok := ctx.Value(ctxKey{}).(*Context)
	return ec, ok
}
