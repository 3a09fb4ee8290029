package localexecutor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
)

// ErrLoopSafeguard is recorded on a loop-end module when its loop hits the
// iteration or time limit before reporting completion.
var ErrLoopSafeguard = errors.New("loop safeguard triggered")

// loop executes a loop unit: the body runs repeatedly until the loop-end
// module reports completion, a body module fails, the run is cancelled, or
// a safeguard triggers.
func (r *run) loop(ctx context.Context, l *scheduler.Loop) error {
	endInst, ok := r.net.Module(ctx, l.End)
	if !ok {
		return module.Fatal(fmt.Errorf("loop end '%s' vanished from the network during a run", l.End))
	}
	end, ok := endInst.Impl.(module.LoopEnd)
	if !ok {
		return module.Fatal(fmt.Errorf("module '%s' is not a loop end", l.End))
	}

	if !r.loopDirty(ctx, l) {
		for _, id := range l.Body {
			r.ec.Touch(id)
			r.skip(ctx, id, execctx.UpToDate)
		}
		return nil
	}

	policy := end.LoopPolicy(endInst.State)
	if policy.MaxIterations <= 0 {
		policy.MaxIterations = module.DefaultMaxIterations
	}
	if policy.Timeout <= 0 {
		policy.Timeout = module.DefaultLoopPolicy().Timeout
	}

	logger := ctxlog.FromContext(ctx).With("loop_start", l.Start, "loop_end", l.End)
	ctx, span := r.tracer.Start(ctx, "dataflow.loop", trace.WithAttributes(
		attribute.String("loop.start", string(l.Start)),
		attribute.String("loop.end", string(l.End)),
	))
	defer span.End()

	deadline := time.Now().Add(policy.Timeout)
	fresh := make(map[moduleid.ID]bool, len(l.Body))
	iterations := 0

	for {
		iterations++
		bodyFailed := false
		for i, id := range l.Body {
			if r.cancelled(ctx) {
				for _, rest := range l.Body[i:] {
					r.skip(ctx, rest, execctx.Cancelled)
				}
				return nil
			}
			if err := r.step(ctx, id, stepOptions{force: true, iteration: iterations, fresh: fresh}); err != nil {
				return err
			}
			if res, _ := r.ec.Result(id); res.Outcome == execctx.Executed {
				fresh[id] = true
			} else {
				bodyFailed = true
			}
		}

		span.SetAttributes(attribute.Int("loop.iterations", iterations))
		r.ec.SetIterations(l.End, iterations)

		switch {
		case bodyFailed:
			logger.Warn("Loop body did not complete. Stopping loop.", "iteration", iterations)
			r.metrics.ObserveLoop(iterations)
			return nil
		case end.LoopDone(endInst.State):
			logger.Debug("Loop finished.", "iterations", iterations)
			r.metrics.ObserveLoop(iterations)
			return nil
		case iterations >= policy.MaxIterations, time.Now().After(deadline):
			err := fmt.Errorf("%w after %d iterations (max %d, timeout %s)", ErrLoopSafeguard, iterations, policy.MaxIterations, policy.Timeout)
			r.net.MarkFailed(ctx, l.End, r.ec.ID, err)
			r.ec.RecordFailed(l.End, err, 0)
			r.ec.SetIterations(l.End, iterations)
			r.failed[l.End] = true
			r.metrics.ObserveLoop(iterations)
			span.RecordError(err)
			logger.Warn("Loop safeguard triggered.", "iterations", iterations)
			return nil
		}
	}
}

// loopDirty reports whether any body module is forced or pending, or any
// input feeding the body from outside changed since it was consumed.
func (r *run) loopDirty(ctx context.Context, l *scheduler.Loop) bool {
	for _, id := range l.Body {
		if r.plan.Forced[id] || r.net.Status(ctx, id) != module.Executed {
			return true
		}
		consumed := r.net.Consumed(ctx, id)
		for _, c := range r.net.Incoming(ctx, id) {
			if l.Contains(c.From.Module) {
				continue
			}
			if r.failed[c.From.Module] {
				return true
			}
			out, ok := r.net.Output(ctx, c.From)
			if !ok || consumed[c.To.Index] != out.Generation {
				return true
			}
		}
	}
	return false
}
