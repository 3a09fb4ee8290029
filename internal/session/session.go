// Package session defines the entry points a user interface or script uses
// to drive a network: run requests, feedback events and topology mutations.
// It abstracts away how runs are queued and executed.
package session

import (
	"context"
	"errors"

	"github.com/zclconf/go-cty/cty"

	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/network"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
)

// ErrClosed is returned for requests made after Close.
var ErrClosed = errors.New("session closed")

// MutateFunc changes a network's structure.
type MutateFunc func(ctx context.Context, net *network.Network) error

// Session serializes runs against one network. At most one run is active
// at a time; further requests queue behind it.
type Session interface {
	// Network returns the network the session drives.
	Network() *network.Network

	// Execute enqueues a run and returns immediately.
	Execute(ctx context.Context, req scheduler.Request) (*Run, error)

	// Feedback delivers a feedback-channel event: payload becomes the
	// module's transient feedback parameter and a run rooted at the module
	// is enqueued.
	Feedback(ctx context.Context, id moduleid.ID, payload cty.Value) (*Run, error)

	// Mutate applies fn now when no run is active, otherwise once the active
	// run completes.
	Mutate(ctx context.Context, fn MutateFunc) *Mutation

	// Close cancels the active run, drops queued ones and releases resources.
	Close(ctx context.Context) error
}

// Factory creates sessions. Different implementations can support various
// backends, such as local or remote execution.
type Factory interface {
	NewSession(ctx context.Context, net *network.Network) (Session, error)
}
