package network

import (
	"context"
	"sync"

	"github.com/specialistvlad/dataflowgo/internal/inmemorystore"
	"github.com/specialistvlad/dataflowgo/internal/inmemorytopology"
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/nodestore"
	"github.com/specialistvlad/dataflowgo/internal/notify"
	"github.com/specialistvlad/dataflowgo/internal/porttype"
	"github.com/specialistvlad/dataflowgo/internal/registry"
	"github.com/specialistvlad/dataflowgo/internal/topologystore"
)

// Network is the graph owner. It is safe for concurrent use; mutations are
// serialized by an internal lock.
type Network struct {
	mu       sync.RWMutex
	topo     topologystore.Store
	state    nodestore.Store
	registry *registry.Registry
	types    *porttype.Registry
	sink     notify.Sink

	seq       uint64
	instances map[string]int // Key: descriptor name, Value: next instance number
}

// Option configures a Network.
type Option func(*Network)

// WithSink sets the notification sink.
func WithSink(s notify.Sink) Option {
	return func(n *Network) { n.sink = s }
}

// WithPortTypes sets the port-type registry used at connect time.
func WithPortTypes(r *porttype.Registry) Option {
	return func(n *Network) { n.types = r }
}

// WithStores replaces the default in-memory stores.
func WithStores(ts topologystore.Store, ns nodestore.Store) Option {
	return func(n *Network) {
		n.topo = ts
		n.state = ns
	}
}

// New creates an empty network whose modules are built by reg.
func New(reg *registry.Registry, opts ...Option) *Network {
	n := &Network{
		topo:      inmemorytopology.New(),
		state:     inmemorystore.New(),
		registry:  reg,
		types:     porttype.NewRegistry(),
		sink:      notify.Discard,
		instances: make(map[string]int),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Sink returns the notification sink.
func (n *Network) Sink() notify.Sink {
	return n.sink
}

// Module looks up a module instance.
func (n *Network) Module(ctx context.Context, id moduleid.ID) (*module.Instance, bool) {
	return n.topo.Module(ctx, id)
}

// Modules returns every module instance in creation order.
func (n *Network) Modules(ctx context.Context) []*module.Instance {
	return n.topo.Modules(ctx)
}

// Connections returns every connection in insertion order.
func (n *Network) Connections(ctx context.Context) []moduleid.ConnectionID {
	return n.topo.Connections(ctx)
}

// Incoming returns the connections feeding a module, ordered by input port.
func (n *Network) Incoming(ctx context.Context, id moduleid.ID) []moduleid.ConnectionID {
	return n.topo.Incoming(ctx, id)
}

// Outgoing returns the connections leaving a module.
func (n *Network) Outgoing(ctx context.Context, id moduleid.ID) []moduleid.ConnectionID {
	return n.topo.Outgoing(ctx, id)
}

// LoopPairs returns the registered loop pairs.
func (n *Network) LoopPairs(ctx context.Context) []topologystore.LoopPair {
	return n.topo.LoopPairs(ctx)
}

// Status returns a module's status.
func (n *Network) Status(ctx context.Context, id moduleid.ID) module.Status {
	st, _ := n.state.GetStatus(ctx, id)
	return st
}

// Output returns the datum currently published on an output port.
func (n *Network) Output(ctx context.Context, port moduleid.PortRef) (*nodestore.Output, bool) {
	return n.state.GetOutput(ctx, port)
}

// LastError returns the error recorded at a module's latest failed execution.
func (n *Network) LastError(ctx context.Context, id moduleid.ID) error {
	return n.state.GetError(ctx, id)
}

// Consumed returns the input generations consumed at a module's last
// successful execution.
func (n *Network) Consumed(ctx context.Context, id moduleid.ID) map[int]uint64 {
	return n.state.GetConsumed(ctx, id)
}

// IsBackEdge reports whether c runs from a paired Loop-end to its Loop-start.
func (n *Network) IsBackEdge(ctx context.Context, c moduleid.ConnectionID) bool {
	return isBackEdge(n.topo.LoopPairs(ctx), c)
}

func isBackEdge(pairs []topologystore.LoopPair, c moduleid.ConnectionID) bool {
	for _, p := range pairs {
		if c.From.Module == p.End && c.To.Module == p.Start {
			return true
		}
	}
	return false
}
