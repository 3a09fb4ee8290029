package network

import (
	"context"
	"fmt"

	"github.com/specialistvlad/dataflowgo/internal/dag"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// Graph returns a module-level dependency graph. Nodes are added in
// creation order. Back-edges of loop pairs are included only on request.
func (n *Network) Graph(ctx context.Context, includeBackEdges bool) *dag.Graph[moduleid.ID] {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.graphLocked(ctx, includeBackEdges)
}

func (n *Network) graphLocked(ctx context.Context, includeBackEdges bool) *dag.Graph[moduleid.ID] {
	g := dag.New[moduleid.ID]()
	for _, inst := range n.topo.Modules(ctx) {
		g.AddNode(inst.ID)
	}
	pairs := n.topo.LoopPairs(ctx)
	for _, c := range n.topo.Connections(ctx) {
		if !includeBackEdges && isBackEdge(pairs, c) {
			continue
		}
		// Endpoints exist and self-edges are rejected at connect time.
		_ = g.AddEdge(c.From.Module, c.To.Module)
	}
	return g
}

// TopologicalOrder returns every module such that each comes after all of
// its upstream modules, ignoring loop back-edges. Ties are broken by
// creation order, so the result is stable for an unchanged network.
func (n *Network) TopologicalOrder(ctx context.Context) ([]moduleid.ID, error) {
	order, err := n.Graph(ctx, false).TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycleDetected, err)
	}
	return order, nil
}

// Downstream returns the modules reachable from the roots, roots included,
// ignoring loop back-edges.
func (n *Network) Downstream(ctx context.Context, roots ...moduleid.ID) map[moduleid.ID]bool {
	return n.Graph(ctx, false).Downstream(roots...)
}

// Upstream returns the modules the roots depend on, roots included,
// ignoring loop back-edges.
func (n *Network) Upstream(ctx context.Context, roots ...moduleid.ID) map[moduleid.ID]bool {
	return n.Graph(ctx, false).Upstream(roots...)
}

// downstreamLocked lists the modules reachable from id, id included, in
// creation order.
func (n *Network) downstreamLocked(ctx context.Context, id moduleid.ID) []moduleid.ID {
	reach := n.graphLocked(ctx, false).Downstream(id)
	out := make([]moduleid.ID, 0, len(reach))
	for _, inst := range n.topo.Modules(ctx) {
		if reach[inst.ID] {
			out = append(out, inst.ID)
		}
	}
	return out
}
