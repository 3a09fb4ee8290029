// Package topologystore defines the interface for storing and retrieving the
// structure of a dataflow network: module instances, the connections between
// their ports, and registered loop pairs.
//
// # Why Topology Store Exists
//
// The topology store isolates the **network structure** from the **mutable
// execution state** (status, published outputs, errors) managed by
// nodestore. Structure changes only through interactive edits, and never
// while a run walks it; execution state changes constantly during a run.
//
// Keeping them apart means:
//   - **Clarity:** Structure queries (scheduler) don't mix with state updates (executor)
//   - **Thread-Safety:** Read-heavy topology queries use RLocks without contention from state writes
//   - **Testability:** Structure can be validated independently of execution state
//
// # Ordering
//
// Modules and connections are returned in insertion order. The scheduler
// relies on this to break ordering ties deterministically.
//
// # Validation
//
// The store enforces only referential integrity (endpoints exist, no
// duplicate ids, one connection per input port). Type compatibility, cycle
// checks and dirty propagation are the network's job.
package topologystore

import (
	"context"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// LoopPair is a registered Loop-start/Loop-end construct.
type LoopPair struct {
	Start moduleid.ID
	End   moduleid.ID
}

// Store is the interface for managing the structure of a network.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use: the control thread edits
// the structure while report endpoints and the scheduler read it.
//
// # Typical Implementation
//
// See internal/inmemorytopology for the reference in-memory implementation
// using maps, insertion-ordered slices and sync.RWMutex.
type Store interface {
	// AddModule registers a module instance. Adding an id twice is an error.
	AddModule(ctx context.Context, inst *module.Instance) error

	// RemoveModule deletes a module instance. It fails if the module still
	// has connections; callers remove those first. Loop pairs referencing
	// the module are dropped.
	RemoveModule(ctx context.Context, id moduleid.ID) error

	// Module retrieves a module instance by id.
	Module(ctx context.Context, id moduleid.ID) (*module.Instance, bool)

	// Modules returns all module instances in creation order.
	Modules(ctx context.Context) []*module.Instance

	// AddConnection records a connection. Both modules must exist and the
	// destination input must be free.
	AddConnection(ctx context.Context, c moduleid.ConnectionID) error

	// RemoveConnection deletes a connection.
	RemoveConnection(ctx context.Context, c moduleid.ConnectionID) error

	// HasConnection reports whether the connection exists.
	HasConnection(ctx context.Context, c moduleid.ConnectionID) bool

	// Connections returns every connection in insertion order.
	Connections(ctx context.Context) []moduleid.ConnectionID

	// Incoming returns the connections feeding a module, ordered by input
	// port index.
	Incoming(ctx context.Context, id moduleid.ID) []moduleid.ConnectionID

	// Outgoing returns the connections leaving a module in insertion order.
	Outgoing(ctx context.Context, id moduleid.ID) []moduleid.ConnectionID

	// InputConnection returns the connection feeding an input port.
	InputConnection(ctx context.Context, port moduleid.PortRef) (moduleid.ConnectionID, bool)

	// ShiftInputs re-indexes every connection into module id whose
	// destination port index is above the given index, decrementing it by
	// one. It returns the connections as they were before and after.
	ShiftInputs(ctx context.Context, id moduleid.ID, above int) (before, after []moduleid.ConnectionID, err error)

	// AddLoopPair registers a loop construct. Both modules must exist.
	AddLoopPair(ctx context.Context, pair LoopPair) error

	// LoopPairs returns registered loop pairs in registration order.
	LoopPairs(ctx context.Context) []LoopPair
}
