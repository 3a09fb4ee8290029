package dag

import (
	"errors"
	"sync"
)

// ErrCycle is wrapped by every error reporting a cycle.
var ErrCycle = errors.New("cycle detected")

// Graph is a collection of nodes and their dependencies, representing a DAG.
// All operations on the graph are concurrency-safe.
type Graph[K comparable] struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[K]*node[K]
	// order lists node IDs in insertion order.
	order []K
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API, not by direct
// struct manipulation.
type node[K comparable] struct {
	id K
	// index is the insertion position, used for tie-breaks.
	index int
	// deps holds the nodes this node depends on (predecessors), in insertion order.
	deps []*node[K]
	// dependents holds the nodes depending on this node (successors), in insertion order.
	dependents []*node[K]
}

func (n *node[K]) hasDependent(id K) bool {
	for _, d := range n.dependents {
		if d.id == id {
			return true
		}
	}
	return false
}
