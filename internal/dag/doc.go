// Package dag holds the pure graph algorithms the network and scheduler are
// built on: deterministic topological ordering, cycle checks, reachability
// closures and the contraction of node groups into single opaque nodes.
//
// A Graph remembers the order in which nodes were added. Every algorithm
// that has a choice to make resolves it by that insertion order, so results
// are reproducible across calls on an unchanged graph.
package dag
