package network

import (
	"context"
	"fmt"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/notify"
	"github.com/specialistvlad/dataflowgo/internal/topologystore"
)

// AddModule instantiates a registered module type. An empty version selects
// the latest registered one. The new module starts NeverExecuted.
func (n *Network) AddModule(ctx context.Context, name, version string) (moduleid.ID, error) {
	impl, desc, err := n.registry.Create(name, version)
	if err != nil {
		return "", topoErr("add module", "", err)
	}

	n.mu.Lock()
	id := moduleid.New(desc.Name, n.instances[desc.Name])
	n.instances[desc.Name]++
	n.seq++
	inst := module.NewInstance(id, desc, n.seq, impl)
	if err := n.topo.AddModule(ctx, inst); err != nil {
		n.mu.Unlock()
		return "", topoErr("add module", id, err)
	}
	n.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Module added.", "module", id, "descriptor", desc.String())
	n.emit(ctx, notify.TopologyChanged{Op: "add_module", Module: id})
	return id, nil
}

// RemoveModule deletes a module and every connection touching it. Modules
// that lose an input are marked NeedsExecute along with their downstream.
func (n *Network) RemoveModule(ctx context.Context, id moduleid.ID) error {
	n.mu.Lock()
	if _, ok := n.topo.Module(ctx, id); !ok {
		n.mu.Unlock()
		return topoErr("remove module", id, ErrNotFound)
	}

	var events []notify.Event
	// Re-read after each removal: closing a dynamic gap renumbers siblings.
	for out := n.topo.Outgoing(ctx, id); len(out) > 0; out = n.topo.Outgoing(ctx, id) {
		ev, err := n.disconnectLocked(ctx, out[0])
		if err != nil {
			n.mu.Unlock()
			return topoErr("remove module", id, err)
		}
		events = append(events, ev...)
	}
	for _, c := range n.topo.Incoming(ctx, id) {
		if err := n.topo.RemoveConnection(ctx, c); err != nil {
			n.mu.Unlock()
			return topoErr("remove module", id, err)
		}
		events = append(events, notify.TopologyChanged{Op: "disconnect", Connection: c.String()})
	}
	if err := n.topo.RemoveModule(ctx, id); err != nil {
		n.mu.Unlock()
		return topoErr("remove module", id, err)
	}
	_ = n.state.Forget(ctx, id)
	n.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Module removed.", "module", id)
	n.emit(ctx, append(events, notify.TopologyChanged{Op: "remove_module", Module: id})...)
	return nil
}

// Connect wires an output port to an input port. Connecting to the index
// just past the last input of a module with dynamic inputs materializes a
// new dynamic port.
func (n *Network) Connect(ctx context.Context, src, dst moduleid.PortRef) (moduleid.ConnectionID, error) {
	c := moduleid.ConnectionID{From: src, To: dst}

	n.mu.Lock()
	grow, err := n.validateConnection(ctx, c)
	if err != nil {
		n.mu.Unlock()
		return moduleid.ConnectionID{}, &TopologyError{Op: "connect " + c.String(), Err: err}
	}

	dstInst, _ := n.topo.Module(ctx, dst.Module)
	if grow {
		dstInst.GrowDynamic()
	}
	if err := n.topo.AddConnection(ctx, c); err != nil {
		if grow {
			dstInst.ShrinkDynamic()
		}
		n.mu.Unlock()
		return moduleid.ConnectionID{}, &TopologyError{Op: "connect " + c.String(), Err: err}
	}
	events := []notify.Event{notify.TopologyChanged{Op: "connect", Connection: c.String()}}
	events = append(events, n.markPendingLocked(ctx, dst.Module)...)
	n.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Connected.", "connection", c.String())
	n.emit(ctx, events...)
	return c, nil
}

// validateConnection reports whether c is acceptable and whether it needs a
// new dynamic port on the destination.
func (n *Network) validateConnection(ctx context.Context, c moduleid.ConnectionID) (bool, error) {
	srcInst, ok := n.topo.Module(ctx, c.From.Module)
	if !ok {
		return false, fmt.Errorf("source module '%s': %w", c.From.Module, ErrNotFound)
	}
	dstInst, ok := n.topo.Module(ctx, c.To.Module)
	if !ok {
		return false, fmt.Errorf("destination module '%s': %w", c.To.Module, ErrNotFound)
	}

	out, ok := srcInst.OutputSpec(c.From.Index)
	if !ok {
		return false, fmt.Errorf("output %s: %w", c.From, ErrInvalidPort)
	}

	grow := false
	in, ok := dstInst.InputSpec(c.To.Index)
	if !ok {
		if !dstInst.HasDynamicInputs() || c.To.Index != dstInst.InputCount() {
			return false, fmt.Errorf("input %s: %w", c.To, ErrInvalidPort)
		}
		in, _ = dstInst.DynamicSpec()
		grow = true
	}
	if _, occupied := n.topo.InputConnection(ctx, c.To); occupied {
		return false, fmt.Errorf("input %s: %w", c.To, ErrPortOccupied)
	}
	if !n.types.Compatible(out.Type, in.Type) {
		return false, fmt.Errorf("%s (%s) to %s (%s): %w", c.From, out.Type, c.To, in.Type, ErrTypeMismatch)
	}

	pairs := n.topo.LoopPairs(ctx)
	if isBackEdge(pairs, c) {
		return grow, nil
	}
	if c.From.Module == c.To.Module {
		return false, ErrWouldCreateCycle
	}
	g := n.graphLocked(ctx, false)
	if g.Reaches(c.To.Module, c.From.Module) {
		return false, ErrWouldCreateCycle
	}
	return grow, nil
}

// Disconnect removes a connection. The destination and its downstream are
// marked NeedsExecute; a removed dynamic port closes its gap.
func (n *Network) Disconnect(ctx context.Context, c moduleid.ConnectionID) error {
	n.mu.Lock()
	events, err := n.disconnectLocked(ctx, c)
	n.mu.Unlock()
	if err != nil {
		return &TopologyError{Op: "disconnect " + c.String(), Err: err}
	}

	ctxlog.FromContext(ctx).Debug("Disconnected.", "connection", c.String())
	n.emit(ctx, events...)
	return nil
}

func (n *Network) disconnectLocked(ctx context.Context, c moduleid.ConnectionID) ([]notify.Event, error) {
	if !n.topo.HasConnection(ctx, c) {
		return nil, ErrNotFound
	}
	if err := n.topo.RemoveConnection(ctx, c); err != nil {
		return nil, err
	}

	if dst, ok := n.topo.Module(ctx, c.To.Module); ok && c.To.Index >= dst.FixedInputCount() && dst.HasDynamicInputs() {
		if _, _, err := n.topo.ShiftInputs(ctx, dst.ID, c.To.Index); err != nil {
			return nil, err
		}
		dst.ShrinkDynamic()
	}

	events := []notify.Event{notify.TopologyChanged{Op: "disconnect", Connection: c.String()}}
	// The destination's outputs are stale, and so is everything fed by them.
	for _, m := range n.downstreamLocked(ctx, c.To.Module) {
		events = append(events, n.markPendingLocked(ctx, m)...)
	}
	return events, nil
}

// PairLoop registers start and end as a loop construct. The connection from
// end back to start becomes a tolerated back-edge.
func (n *Network) PairLoop(ctx context.Context, start, end moduleid.ID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	s, ok := n.topo.Module(ctx, start)
	if !ok {
		return topoErr("pair loop", start, ErrNotFound)
	}
	e, ok := n.topo.Module(ctx, end)
	if !ok {
		return topoErr("pair loop", end, ErrNotFound)
	}
	if _, ok := s.Impl.(module.LoopStart); !ok {
		return topoErr("pair loop", start, fmt.Errorf("%w: not a loop start module", ErrLoopPair))
	}
	if _, ok := e.Impl.(module.LoopEnd); !ok {
		return topoErr("pair loop", end, fmt.Errorf("%w: not a loop end module", ErrLoopPair))
	}
	if err := n.topo.AddLoopPair(ctx, topologystore.LoopPair{Start: start, End: end}); err != nil {
		return topoErr("pair loop", start, fmt.Errorf("%w: %v", ErrLoopPair, err))
	}
	return nil
}

func (n *Network) emit(ctx context.Context, events ...notify.Event) {
	for _, e := range events {
		n.sink.Notify(ctx, e)
	}
}
