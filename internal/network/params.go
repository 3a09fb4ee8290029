package network

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/notify"
)

// SetParameter assigns a parameter value. When a non-transient value
// actually changes, the module and everything downstream of it are marked
// NeedsExecute. It reports whether that happened.
func (n *Network) SetParameter(ctx context.Context, id moduleid.ID, name string, v cty.Value) (bool, error) {
	n.mu.Lock()
	inst, ok := n.topo.Module(ctx, id)
	if !ok {
		n.mu.Unlock()
		return false, topoErr("set parameter", id, ErrNotFound)
	}
	if !inst.State.Set(name, v) {
		n.mu.Unlock()
		return false, nil
	}

	var events []notify.Event
	for _, m := range n.downstreamLocked(ctx, id) {
		events = append(events, n.markPendingLocked(ctx, m)...)
	}
	n.mu.Unlock()

	n.emit(ctx, events...)
	return true, nil
}

// SetTransient assigns a transient parameter. It never marks anything
// NeedsExecute.
func (n *Network) SetTransient(ctx context.Context, id moduleid.ID, name string, v cty.Value) error {
	inst, ok := n.topo.Module(ctx, id)
	if !ok {
		return topoErr("set transient", id, ErrNotFound)
	}
	inst.State.SetTransient(name, v)
	return nil
}

// Parameter reads a parameter value.
func (n *Network) Parameter(ctx context.Context, id moduleid.ID, name string) (cty.Value, error) {
	inst, ok := n.topo.Module(ctx, id)
	if !ok {
		return cty.NilVal, topoErr("get parameter", id, ErrNotFound)
	}
	v, ok := inst.State.Get(name)
	if !ok {
		return cty.NilVal, topoErr("get parameter", id, fmt.Errorf("parameter %q: %w", name, ErrNotFound))
	}
	return v, nil
}

// MarkNeedsExecute marks the given modules pending without touching their
// downstream.
func (n *Network) MarkNeedsExecute(ctx context.Context, ids ...moduleid.ID) error {
	n.mu.Lock()
	var events []notify.Event
	for _, id := range ids {
		if _, ok := n.topo.Module(ctx, id); !ok {
			n.mu.Unlock()
			return topoErr("mark needs execute", id, ErrNotFound)
		}
		events = append(events, n.markPendingLocked(ctx, id)...)
	}
	n.mu.Unlock()

	n.emit(ctx, events...)
	return nil
}

// markPendingLocked moves an Executed or Error module to NeedsExecute. A
// module that never executed, or is executing right now, is left alone.
func (n *Network) markPendingLocked(ctx context.Context, id moduleid.ID) []notify.Event {
	st, _ := n.state.GetStatus(ctx, id)
	if st != module.Executed && st != module.Error {
		return nil
	}
	_ = n.state.SetStatus(ctx, id, module.NeedsExecute)
	return []notify.Event{notify.ModuleStatusChanged{Module: id, Status: module.NeedsExecute}}
}
