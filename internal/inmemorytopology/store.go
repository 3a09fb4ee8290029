package inmemorytopology

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/topologystore"
)

// Store implements the topologystore.Store interface using maps, ordered
// slices and a mutex for thread-safe concurrent access.
type Store struct {
	mu          sync.RWMutex
	modules     map[moduleid.ID]*module.Instance
	order       []moduleid.ID
	connections []moduleid.ConnectionID
	inputs      map[moduleid.PortRef]moduleid.ConnectionID // Key: destination port
	loops       []topologystore.LoopPair
}

// New creates a new, empty in-memory topology store.
func New() topologystore.Store {
	return &Store{
		modules: make(map[moduleid.ID]*module.Instance),
		inputs:  make(map[moduleid.PortRef]moduleid.ConnectionID),
	}
}

// AddModule adds a new module instance to the store.
func (s *Store) AddModule(ctx context.Context, inst *module.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.modules[inst.ID]; exists {
		return fmt.Errorf("module '%s' already exists in topology", inst.ID)
	}
	s.modules[inst.ID] = inst
	s.order = append(s.order, inst.ID)
	return nil
}

// RemoveModule deletes a module that has no remaining connections.
func (s *Store) RemoveModule(ctx context.Context, id moduleid.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.modules[id]; !exists {
		return fmt.Errorf("module '%s' not found in topology", id)
	}
	for _, c := range s.connections {
		if c.From.Module == id || c.To.Module == id {
			return fmt.Errorf("module '%s' still has connection %s", id, c)
		}
	}

	delete(s.modules, id)
	s.order = slices.DeleteFunc(s.order, func(other moduleid.ID) bool { return other == id })
	s.loops = slices.DeleteFunc(s.loops, func(p topologystore.LoopPair) bool {
		return p.Start == id || p.End == id
	})
	return nil
}

// Module retrieves a single module instance by id.
func (s *Store) Module(ctx context.Context, id moduleid.ID) (*module.Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.modules[id]
	return inst, ok
}

// Modules returns all module instances in creation order.
func (s *Store) Modules(ctx context.Context) []*module.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*module.Instance, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.modules[id])
	}
	return out
}

// AddConnection records a new connection.
func (s *Store) AddConnection(ctx context.Context, c moduleid.ConnectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.modules[c.From.Module]; !exists {
		return fmt.Errorf("connection source module '%s' not found in topology", c.From.Module)
	}
	if _, exists := s.modules[c.To.Module]; !exists {
		return fmt.Errorf("connection destination module '%s' not found in topology", c.To.Module)
	}
	if existing, occupied := s.inputs[c.To]; occupied {
		return fmt.Errorf("input port %s is already fed by %s", c.To, existing)
	}

	s.connections = append(s.connections, c)
	s.inputs[c.To] = c
	return nil
}

// RemoveConnection deletes an existing connection.
func (s *Store) RemoveConnection(ctx context.Context, c moduleid.ConnectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.Index(s.connections, c)
	if idx < 0 {
		return fmt.Errorf("connection %s not found in topology", c)
	}
	s.connections = slices.Delete(s.connections, idx, idx+1)
	delete(s.inputs, c.To)
	return nil
}

// HasConnection reports whether the connection exists.
func (s *Store) HasConnection(ctx context.Context, c moduleid.ConnectionID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, ok := s.inputs[c.To]
	return ok && existing == c
}

// Connections returns a snapshot of every connection in insertion order.
func (s *Store) Connections(ctx context.Context) []moduleid.ConnectionID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.connections)
}

// Incoming returns the connections feeding id, ordered by input port.
func (s *Store) Incoming(ctx context.Context, id moduleid.ID) []moduleid.ConnectionID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []moduleid.ConnectionID
	for _, c := range s.connections {
		if c.To.Module == id {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].To.Index < out[j].To.Index })
	return out
}

// Outgoing returns the connections leaving id in insertion order.
func (s *Store) Outgoing(ctx context.Context, id moduleid.ID) []moduleid.ConnectionID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []moduleid.ConnectionID
	for _, c := range s.connections {
		if c.From.Module == id {
			out = append(out, c)
		}
	}
	return out
}

// InputConnection returns the connection feeding the given input port.
func (s *Store) InputConnection(ctx context.Context, port moduleid.PortRef) (moduleid.ConnectionID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.inputs[port]
	return c, ok
}

// ShiftInputs closes the gap left by a removed dynamic input port.
func (s *Store) ShiftInputs(ctx context.Context, id moduleid.ID, above int) ([]moduleid.ConnectionID, []moduleid.ConnectionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.modules[id]; !exists {
		return nil, nil, fmt.Errorf("module '%s' not found in topology", id)
	}
	if _, occupied := s.inputs[moduleid.PortRef{Module: id, Index: above}]; occupied {
		return nil, nil, fmt.Errorf("input port %s[%d] is still connected", id, above)
	}

	var before, after []moduleid.ConnectionID
	for i, c := range s.connections {
		if c.To.Module != id || c.To.Index <= above {
			continue
		}
		moved := c
		moved.To.Index--
		before = append(before, c)
		after = append(after, moved)
		s.connections[i] = moved
	}

	// Rebuild the affected part of the input index in ascending order so no
	// shifted connection overwrites a neighbour that has not moved yet.
	for _, c := range before {
		delete(s.inputs, c.To)
	}
	for _, c := range after {
		s.inputs[c.To] = c
	}
	return before, after, nil
}

// AddLoopPair registers a loop construct.
func (s *Store) AddLoopPair(ctx context.Context, pair topologystore.LoopPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.modules[pair.Start]; !ok {
		return fmt.Errorf("loop start module '%s' not found in topology", pair.Start)
	}
	if _, ok := s.modules[pair.End]; !ok {
		return fmt.Errorf("loop end module '%s' not found in topology", pair.End)
	}
	for _, p := range s.loops {
		if p.Start == pair.Start || p.End == pair.End || p.Start == pair.End || p.End == pair.Start {
			return fmt.Errorf("module already belongs to loop pair %s/%s", p.Start, p.End)
		}
	}
	s.loops = append(s.loops, pair)
	return nil
}

// LoopPairs returns registered loop pairs in registration order.
func (s *Store) LoopPairs(ctx context.Context) []topologystore.LoopPair {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.loops)
}
