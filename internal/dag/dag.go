package dag

import (
	"container/heap"
	"fmt"
)

// New creates and returns an initialized, empty Graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		nodes: make(map[K]*node[K]),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph[K]) AddNode(id K) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node[K]{id: id, index: len(g.order)}
	g.order = append(g.order, id)
}

// Has reports whether the node exists.
func (g *Graph[K]) Has(id K) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns node IDs in insertion order.
func (g *Graph[K]) Nodes() []K {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return append([]K(nil), g.order...)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
// Adding an existing edge again is a no-op.
func (g *Graph[K]) AddEdge(fromID, toID K) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %v -> %v", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %v", fromID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %v", toID)
	}

	if fromNode.hasDependent(toID) {
		return nil
	}
	toNode.deps = append(toNode.deps, fromNode)
	fromNode.dependents = append(fromNode.dependents, toNode)
	return nil
}

// Dependencies returns the IDs of the nodes the given node depends on.
func (g *Graph[K]) Dependencies(id K) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}
	deps := make([]K, 0, len(n.deps))
	for _, d := range n.deps {
		deps = append(deps, d.id)
	}
	return deps, nil
}

// Dependents returns the IDs of the nodes that depend on the given node.
func (g *Graph[K]) Dependents(id K) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}
	dependents := make([]K, 0, len(n.dependents))
	for _, d := range n.dependents {
		dependents = append(dependents, d.id)
	}
	return dependents, nil
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// wrapping ErrCycle if a cycle is found, naming the first node involved.
func (g *Graph[K]) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Classic depth-first search with three sets of nodes:
	// permanent: nodes fully visited and not part of a cycle.
	// temporary: nodes on the current recursion stack.
	// unvisited: all other nodes.
	permanent := make(map[K]bool)
	temporary := make(map[K]bool)

	var visit func(n *node[K]) error
	visit = func(n *node[K]) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return fmt.Errorf("%w involving node '%v'", ErrCycle, n.id)
		}

		temporary[n.id] = true
		for _, dependent := range n.dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, id := range g.order {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns every node such that for each edge u→v, u comes
// before v. Among nodes that are ready at the same time the one added first
// wins. It returns an error wrapping ErrCycle when no such order exists.
func (g *Graph[K]) TopologicalOrder() ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	remaining := make(map[K]int, len(g.nodes))
	ready := &indexHeap{}
	for _, id := range g.order {
		n := g.nodes[id]
		remaining[id] = len(n.deps)
		if len(n.deps) == 0 {
			heap.Push(ready, n.index)
		}
	}

	out := make([]K, 0, len(g.order))
	for ready.Len() > 0 {
		n := g.nodes[g.order[heap.Pop(ready).(int)]]
		out = append(out, n.id)
		for _, d := range n.dependents {
			remaining[d.id]--
			if remaining[d.id] == 0 {
				heap.Push(ready, d.index)
			}
		}
	}

	if len(out) != len(g.order) {
		for _, id := range g.order {
			if remaining[id] > 0 {
				return nil, fmt.Errorf("%w involving node '%v'", ErrCycle, id)
			}
		}
	}
	return out, nil
}

// Reaches reports whether `to` is reachable from `from` along edge direction.
// A node always reaches itself.
func (g *Graph[K]) Reaches(from, to K) bool {
	return g.Downstream(from)[to]
}

// Downstream returns the set of nodes reachable from the given roots,
// including the roots themselves.
func (g *Graph[K]) Downstream(roots ...K) map[K]bool {
	return g.closure(roots, func(n *node[K]) []*node[K] { return n.dependents })
}

// Upstream returns the set of nodes from which any root is reachable,
// including the roots themselves.
func (g *Graph[K]) Upstream(roots ...K) map[K]bool {
	return g.closure(roots, func(n *node[K]) []*node[K] { return n.deps })
}

func (g *Graph[K]) closure(roots []K, next func(*node[K]) []*node[K]) map[K]bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	seen := make(map[K]bool)
	var stack []*node[K]
	for _, id := range roots {
		if n, ok := g.nodes[id]; ok && !seen[id] {
			seen[id] = true
			stack = append(stack, n)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, m := range next(n) {
			if !seen[m.id] {
				seen[m.id] = true
				stack = append(stack, m)
			}
		}
	}
	return seen
}

// Contract returns a new graph where each group of nodes is replaced by its
// representative key. Edges internal to a group disappear; edges crossing a
// group boundary are redirected to the representative. Nodes not in any group
// keep their identity. The representative takes the insertion position of
// the earliest member of its group.
func (g *Graph[K]) Contract(groups map[K][]K) *Graph[K] {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	owner := make(map[K]K)
	for rep, members := range groups {
		for _, m := range members {
			owner[m] = rep
		}
	}
	resolve := func(id K) K {
		if rep, ok := owner[id]; ok {
			return rep
		}
		return id
	}

	out := New[K]()
	for _, id := range g.order {
		out.AddNode(resolve(id))
	}
	for _, id := range g.order {
		for _, d := range g.nodes[id].dependents {
			from, to := resolve(id), resolve(d.id)
			if from != to {
				// Both endpoints were added above, so this cannot fail.
				_ = out.AddEdge(from, to)
			}
		}
	}
	return out
}

// indexHeap is a min-heap of insertion indices.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
