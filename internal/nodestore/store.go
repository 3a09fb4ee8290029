// Package nodestore defines the interface for storing and retrieving the
// mutable execution state of the modules in a network.
//
// # Why Node Store Exists
//
// The node store isolates **mutable execution state** (status, published
// outputs, consumed input generations, errors) from the **network
// structure** managed by topologystore.
//
// # Publication
//
// Publishing a datum on an output port is a single atomic swap of the stored
// value. Every publication is stamped with a store-wide, strictly increasing
// generation number; a module remembers the generations it consumed at its
// last successful execution, which is how the scheduler tells "upstream
// produced new data" from "nothing changed".
//
// # State Transitions
//
// Modules follow this lifecycle:
//
//	NeverExecuted → Executing → Executed (outputs published) OR Error
//	Executed → NeedsExecute (parameter, input or connection change) → Executing ...
package nodestore

import (
	"context"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// Output is an immutable published datum.
type Output struct {
	Value      any
	Generation uint64
}

// Store is the interface for managing the mutable execution state of modules.
//
// # Thread-Safety Requirements
//
// Implementations MUST be thread-safe: the run goroutine writes state while
// notification consumers and report endpoints read it.
//
// # Typical Implementation
//
// See internal/inmemorystore for the reference in-memory implementation using
// sync.Map and atomic pointers.
type Store interface {
	// SetStatus updates the execution status of a module.
	SetStatus(ctx context.Context, id moduleid.ID, status module.Status) error

	// GetStatus retrieves the status of a module, NeverExecuted if unset.
	GetStatus(ctx context.Context, id moduleid.ID) (module.Status, error)

	// Publish atomically replaces the datum on an output port and returns the
	// generation assigned to it.
	Publish(ctx context.Context, port moduleid.PortRef, value any) (uint64, error)

	// GetOutput returns the datum currently published on an output port.
	GetOutput(ctx context.Context, port moduleid.PortRef) (*Output, bool)

	// ClearOutputs withdraws every datum published by a module.
	ClearOutputs(ctx context.Context, id moduleid.ID) error

	// SetConsumed records the generations a module consumed at its last
	// successful execution, keyed by input port index.
	SetConsumed(ctx context.Context, id moduleid.ID, generations map[int]uint64) error

	// GetConsumed returns the generations recorded by SetConsumed.
	GetConsumed(ctx context.Context, id moduleid.ID) map[int]uint64

	// SetError records the latest execution error of a module. A nil error
	// clears it.
	SetError(ctx context.Context, id moduleid.ID, err error) error

	// GetError retrieves the latest execution error of a module.
	GetError(ctx context.Context, id moduleid.ID) error

	// Forget drops every piece of state held for a module.
	Forget(ctx context.Context, id moduleid.ID) error
}
