package localexecutor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/executor"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/network"
	"github.com/specialistvlad/dataflowgo/internal/notify"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
	"github.com/specialistvlad/dataflowgo/internal/telemetry"
)

// Executor implements the executor.Executor interface for local execution.
type Executor struct {
	net     *network.Network
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records module and loop activity on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer replaces the global engine tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// New creates a local executor for net.
func New(net *network.Network, opts ...Option) *Executor {
	e := &Executor{net: net, tracer: telemetry.Tracer()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ executor.Executor = (*Executor)(nil)

// Execute implements executor.Executor.
func (e *Executor) Execute(ctx context.Context, plan *scheduler.Plan, ec *execctx.Context) error {
	ctx = execctx.WithContext(ctx, ec)
	ctx, span := e.tracer.Start(ctx, "dataflow.run", trace.WithAttributes(
		attribute.String("run.id", ec.RunID),
		attribute.Int64("run.execution_id", int64(ec.ID)),
		attribute.Int("run.units", len(plan.Units)),
	))
	defer span.End()

	logger := ctxlog.FromContext(ctx).With("run_id", ec.RunID, "execution_id", ec.ID)
	ctx = ctxlog.WithLogger(ctx, logger)

	r := &run{
		Executor: e,
		plan:     plan,
		ec:       ec,
		failed:   make(map[moduleid.ID]bool),
	}

	for i, u := range plan.Units {
		if r.cancelled(ctx) {
			r.skipRemaining(ctx, plan.Units[i:], execctx.Cancelled)
			logger.Info("Run cancelled.", "remaining_units", len(plan.Units)-i)
			break
		}

		var err error
		if u.Loop != nil {
			err = r.loop(ctx, u.Loop)
		} else {
			err = r.step(ctx, u.Module, stepOptions{force: plan.Forced[u.Module]})
		}
		if err != nil {
			ec.Abort(err)
			r.skipRemaining(ctx, plan.Units[i:], execctx.Aborted)
			span.RecordError(err)
			span.SetStatus(codes.Error, "aborted")
			logger.Error("Run aborted.", "error", err)
			return fmt.Errorf("%w: %w", executor.ErrAborted, err)
		}
	}

	if n := len(ec.Errors()); n > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d module errors", n))
	}
	return nil
}

// run is the state of one Execute call.
type run struct {
	*Executor
	plan *scheduler.Plan
	ec   *execctx.Context
	// failed holds modules that errored, or were skipped because something
	// upstream errored, in this run.
	failed map[moduleid.ID]bool
}

func (r *run) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		r.ec.Cancel()
	}
	return r.ec.Cancelled()
}

// skipRemaining records reason for every module of units that has no
// outcome yet.
func (r *run) skipRemaining(ctx context.Context, units []scheduler.Unit, reason execctx.SkipReason) {
	for _, u := range units {
		for _, id := range u.Modules() {
			if _, done := r.ec.Result(id); !done {
				r.skip(ctx, id, reason)
			}
		}
	}
}

func (r *run) skip(ctx context.Context, id moduleid.ID, reason execctx.SkipReason) {
	r.ec.RecordSkipped(id, reason)
	if reason == execctx.UpstreamError {
		r.failed[id] = true
	}
	if reason == execctx.MissingInput {
		// Whatever the module published before no longer follows from its inputs.
		_ = r.net.Withdraw(ctx, id)
	}
	r.metrics.ObserveSkip(string(reason))
	r.net.Sink().Notify(ctx, notify.ModuleSkipped{Module: id, Reason: string(reason), ExecutionID: r.ec.ID})
	ctxlog.FromContext(ctx).Debug("Module skipped.", "module", id, "reason", reason)
}
