package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
)

// Sink receives notifications. Notify must not block for long: it is called
// from the run goroutine between module executions.
type Sink interface {
	Notify(ctx context.Context, e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event)

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// Multi fans every event out to several sinks, in order.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, e)
		}
	}
}

// Logger is a sink that writes events to the context logger.
type Logger struct{}

// Notify implements Sink.
func (Logger) Notify(ctx context.Context, e Event) {
	logger := ctxlog.FromContext(ctx)
	switch ev := e.(type) {
	case ModuleStatusChanged:
		logger.Debug("Module status changed.", "module", ev.Module, "status", ev.Status.String())
	case ModuleSkipped:
		logger.Info("Module skipped.", "module", ev.Module, "reason", ev.Reason)
	case OutputPublished:
		logger.Debug("Output published.", "module", ev.Module, "port", ev.Port, "generation", ev.Generation)
	case RunFinished:
		level := slog.LevelInfo
		if len(ev.Errors) > 0 {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "Run finished.", "execution_id", ev.ExecutionID, "outcome", ev.Outcome, "errors", len(ev.Errors))
	default:
		logger.Debug("Event.", "type", string(e.EventType()))
	}
}

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements Sink.
func (r *Recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a snapshot of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Reset forgets every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// OfType returns the recorded events of type T, in order.
func OfType[T Event](r *Recorder) []T {
	var out []T
	for _, e := range r.Events() {
		if t, ok := e.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
