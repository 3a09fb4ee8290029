package network

import (
	"context"
	"sort"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/notify"
)

// MarkExecuting moves a module to Executing.
func (n *Network) MarkExecuting(ctx context.Context, id moduleid.ID, execID uint64) {
	n.mu.Lock()
	_ = n.state.SetStatus(ctx, id, module.Executing)
	n.mu.Unlock()
	n.emit(ctx, notify.ModuleStatusChanged{Module: id, Status: module.Executing, ExecutionID: execID})
}

// MarkExecuted records a successful execution. The module's previous outputs
// are withdrawn and replaced by outputs, consumed is remembered for
// change detection, and every module downstream is marked NeedsExecute.
//
// If a non-transient parameter changed while the module was executing
// (its state version moved past startVersion) the module ends NeedsExecute
// instead of Executed, so the next run picks the change up.
func (n *Network) MarkExecuted(ctx context.Context, id moduleid.ID, execID uint64, outputs module.Outputs, consumed map[int]uint64, startVersion uint64) error {
	n.mu.Lock()
	inst, ok := n.topo.Module(ctx, id)
	if !ok {
		n.mu.Unlock()
		return topoErr("mark executed", id, ErrNotFound)
	}

	if err := n.state.ClearOutputs(ctx, id); err != nil {
		n.mu.Unlock()
		return err
	}
	ports := make([]int, 0, len(outputs))
	for idx := range outputs {
		if idx >= 0 && idx < inst.OutputCount() {
			ports = append(ports, idx)
		}
	}
	sort.Ints(ports)

	var events []notify.Event
	for _, idx := range ports {
		gen, err := n.state.Publish(ctx, moduleid.PortRef{Module: id, Index: idx}, outputs[idx])
		if err != nil {
			n.mu.Unlock()
			return err
		}
		events = append(events, notify.OutputPublished{Module: id, Port: idx, Generation: gen})
	}
	_ = n.state.SetConsumed(ctx, id, consumed)
	_ = n.state.SetError(ctx, id, nil)

	status := module.Executed
	if inst.State.Version() != startVersion {
		status = module.NeedsExecute
	}
	_ = n.state.SetStatus(ctx, id, status)
	events = append(events, notify.ModuleStatusChanged{Module: id, Status: status, ExecutionID: execID})

	for _, m := range n.downstreamLocked(ctx, id) {
		if m != id {
			events = append(events, n.markPendingLocked(ctx, m)...)
		}
	}
	n.mu.Unlock()

	n.emit(ctx, events...)
	return nil
}

// MarkFailed records a failed execution and withdraws the module's
// previously published outputs.
func (n *Network) MarkFailed(ctx context.Context, id moduleid.ID, execID uint64, err error) {
	n.mu.Lock()
	_ = n.state.ClearOutputs(ctx, id)
	_ = n.state.SetError(ctx, id, err)
	_ = n.state.SetStatus(ctx, id, module.Error)
	n.mu.Unlock()
	n.emit(ctx, notify.ModuleStatusChanged{Module: id, Status: module.Error, ExecutionID: execID})
}

// Withdraw removes the outputs of a module that can no longer produce valid
// data and marks everything downstream of it NeedsExecute.
func (n *Network) Withdraw(ctx context.Context, id moduleid.ID) error {
	n.mu.Lock()
	if _, ok := n.topo.Module(ctx, id); !ok {
		n.mu.Unlock()
		return topoErr("withdraw", id, ErrNotFound)
	}
	if err := n.state.ClearOutputs(ctx, id); err != nil {
		n.mu.Unlock()
		return err
	}
	var events []notify.Event
	for _, m := range n.downstreamLocked(ctx, id) {
		if m != id {
			events = append(events, n.markPendingLocked(ctx, m)...)
		}
	}
	n.mu.Unlock()

	n.emit(ctx, events...)
	return nil
}
