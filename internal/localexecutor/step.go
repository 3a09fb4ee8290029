package localexecutor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

type stepOptions struct {
	// force executes the module even if it is up to date.
	force bool
	// iteration is the 1-based loop iteration, 0 outside loops.
	iteration int
	// fresh holds the modules that executed in the current loop execution;
	// back-edge inputs are read only from them.
	fresh map[moduleid.ID]bool
}

// step applies the per-module rules to one module. It returns an error only
// for fatal failures.
func (r *run) step(ctx context.Context, id moduleid.ID, opts stepOptions) error {
	inst, ok := r.net.Module(ctx, id)
	if !ok {
		return module.Fatal(fmt.Errorf("module '%s' vanished from the network during a run", id))
	}
	r.ec.Touch(id)

	incoming := r.net.Incoming(ctx, id)
	for _, c := range incoming {
		if r.failed[c.From.Module] && !r.staleBackEdge(ctx, c, opts) {
			r.skip(ctx, id, execctx.UpstreamError)
			return nil
		}
	}

	values, consumed, ok := r.gather(ctx, inst, incoming, opts)
	if !ok {
		r.skip(ctx, id, execctx.MissingInput)
		return nil
	}

	if !opts.force && r.net.Status(ctx, id) == module.Executed && sameGenerations(r.net.Consumed(ctx, id), consumed) {
		r.skip(ctx, id, execctx.UpToDate)
		return nil
	}

	return r.execute(ctx, inst, module.NewInputs(values, opts.iteration), consumed)
}

// staleBackEdge reports whether c is a back-edge whose data must be ignored
// because its source has not executed in the current loop execution.
func (r *run) staleBackEdge(ctx context.Context, c moduleid.ConnectionID, opts stepOptions) bool {
	return r.net.IsBackEdge(ctx, c) && !opts.fresh[c.From.Module]
}

// gather collects the datum on every input port. It reports false when a
// required port is unconnected or a connected port has nothing published.
func (r *run) gather(ctx context.Context, inst *module.Instance, incoming []moduleid.ConnectionID, opts stepOptions) ([]any, map[int]uint64, bool) {
	byPort := make(map[int]moduleid.ConnectionID, len(incoming))
	for _, c := range incoming {
		byPort[c.To.Index] = c
	}

	values := make([]any, inst.InputCount())
	consumed := make(map[int]uint64, len(incoming))
	for idx := range values {
		c, connected := byPort[idx]
		if !connected {
			if inst.Required(idx) {
				return nil, nil, false
			}
			continue
		}
		if r.staleBackEdge(ctx, c, opts) {
			continue
		}
		out, published := r.net.Output(ctx, c.From)
		if !published {
			return nil, nil, false
		}
		values[idx] = out.Value
		if !r.net.IsBackEdge(ctx, c) {
			consumed[idx] = out.Generation
		}
	}
	return values, consumed, true
}

func sameGenerations(a, b map[int]uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// execute runs the module and records the outcome.
func (r *run) execute(ctx context.Context, inst *module.Instance, in module.Inputs, consumed map[int]uint64) error {
	logger := ctxlog.FromContext(ctx).With("module", inst.ID)
	ctx, span := r.tracer.Start(ctx, "dataflow.module", trace.WithAttributes(
		attribute.String("module.id", string(inst.ID)),
		attribute.String("module.type", inst.Descriptor.Name),
		attribute.Int("module.iteration", in.Iteration()),
	))
	defer span.End()

	startVersion := inst.State.Version()
	r.net.MarkExecuting(ctx, inst.ID, r.ec.ID)
	logger.Debug("Module executing.", "iteration", in.Iteration())

	start := time.Now()
	out, err := invoke(ctx, inst, in)
	elapsed := time.Since(start)

	if err != nil {
		r.net.MarkFailed(ctx, inst.ID, r.ec.ID, err)
		r.ec.RecordFailed(inst.ID, err, elapsed)
		r.failed[inst.ID] = true
		r.metrics.ObserveModule(inst.Descriptor.Name, "failed", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if module.IsFatal(err) {
			return fmt.Errorf("module '%s': %w", inst.ID, err)
		}
		logger.Warn("Module failed.", "error", err, "duration", elapsed)
		return nil
	}

	if err := r.net.MarkExecuted(ctx, inst.ID, r.ec.ID, out, consumed, startVersion); err != nil {
		return module.Fatal(fmt.Errorf("publishing outputs of '%s': %w", inst.ID, err))
	}
	r.ec.RecordExecuted(inst.ID, elapsed)
	r.metrics.ObserveModule(inst.Descriptor.Name, "executed", elapsed)
	logger.Debug("Module executed.", "duration", elapsed, "outputs", len(out))
	return nil
}

// invoke calls Execute, turning a panic into a recoverable error.
func invoke(ctx context.Context, inst *module.Instance, in module.Inputs) (out module.Outputs, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("module panicked: %v", p)
		}
	}()
	return inst.Impl.Execute(ctx, inst.State, in)
}
