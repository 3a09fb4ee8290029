// Package network provides the Network: the owner of a dataflow graph of
// modules and connections.
//
// # Why Network Exists
//
// The Network is a facade that combines topology (modules, connections,
// loop pairs) and module execution state (status, published outputs) into a
// single API. The scheduler, the executor, loaders and the control server
// all talk to a Network and never to the underlying stores:
//   - **Topology Store** (topologystore.Store): structure
//   - **Node Store** (nodestore.Store): status, outputs, errors
//
// # Mutations
//
// Every topology mutation is all-or-nothing: it validates first and reports
// UnknownModuleType, NotFound, TypeMismatch, PortOccupied or
// WouldCreateCycle synchronously, leaving the network unchanged on failure.
// Successful mutations mark the affected modules NeedsExecute and emit
// notifications after the network lock is released.
//
// # Dirty Propagation
//
// A module becomes NeedsExecute when a non-transient parameter changes
// (together with everything downstream of it), when an upstream module
// publishes new output, or when a connection into it is added or removed.
// A module that never executed stays NeverExecuted: it is pending already.
//
// # Loop Pairs
//
// A connection from a paired Loop-end module back to its Loop-start module
// is a back-edge. Back-edges are the only cycles tolerated; every ordering
// and cycle query ignores them.
package network
