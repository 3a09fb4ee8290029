package inmemorystore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/nodestore"
)

// Store is an in-memory implementation of nodestore.Store.
//
// The store maintains independent sync.Maps:
//   - states: module id → module.Status
//   - outputs: output port → *atomic.Pointer[nodestore.Output]
//   - consumed: module id → map[int]uint64, replaced as a whole
//   - errors: module id → error
type Store struct {
	states     sync.Map
	outputs    sync.Map
	consumed   sync.Map
	errors     sync.Map
	generation atomic.Uint64
}

// New creates a new, empty in-memory node state store.
func New() nodestore.Store {
	return &Store{}
}

// SetStatus updates the execution status of a specific module.
func (s *Store) SetStatus(ctx context.Context, id moduleid.ID, status module.Status) error {
	s.states.Store(id, status)
	return nil
}

// GetStatus retrieves the execution status of a specific module.
// If a status has not been set, it returns NeverExecuted.
func (s *Store) GetStatus(ctx context.Context, id moduleid.ID) (module.Status, error) {
	status, ok := s.states.Load(id)
	if !ok {
		return module.NeverExecuted, nil
	}
	return status.(module.Status), nil
}

// Publish swaps in a new datum for an output port.
func (s *Store) Publish(ctx context.Context, port moduleid.PortRef, value any) (uint64, error) {
	gen := s.generation.Add(1)
	slot, _ := s.outputs.LoadOrStore(port, &atomic.Pointer[nodestore.Output]{})
	slot.(*atomic.Pointer[nodestore.Output]).Store(&nodestore.Output{Value: value, Generation: gen})
	return gen, nil
}

// GetOutput returns the currently published datum of an output port.
func (s *Store) GetOutput(ctx context.Context, port moduleid.PortRef) (*nodestore.Output, bool) {
	slot, ok := s.outputs.Load(port)
	if !ok {
		return nil, false
	}
	out := slot.(*atomic.Pointer[nodestore.Output]).Load()
	return out, out != nil
}

// ClearOutputs withdraws every output published by a module.
func (s *Store) ClearOutputs(ctx context.Context, id moduleid.ID) error {
	s.outputs.Range(func(key, value any) bool {
		if key.(moduleid.PortRef).Module == id {
			value.(*atomic.Pointer[nodestore.Output]).Store(nil)
		}
		return true
	})
	return nil
}

// SetConsumed records the input generations used by the last successful execution.
func (s *Store) SetConsumed(ctx context.Context, id moduleid.ID, generations map[int]uint64) error {
	cp := make(map[int]uint64, len(generations))
	for k, v := range generations {
		cp[k] = v
	}
	s.consumed.Store(id, cp)
	return nil
}

// GetConsumed returns the recorded generations, or nil if none.
func (s *Store) GetConsumed(ctx context.Context, id moduleid.ID) map[int]uint64 {
	v, ok := s.consumed.Load(id)
	if !ok {
		return nil
	}
	return v.(map[int]uint64)
}

// SetError records or clears the latest execution error of a module.
func (s *Store) SetError(ctx context.Context, id moduleid.ID, err error) error {
	if err == nil {
		s.errors.Delete(id)
		return nil
	}
	s.errors.Store(id, err)
	return nil
}

// GetError retrieves the latest execution error of a module.
func (s *Store) GetError(ctx context.Context, id moduleid.ID) error {
	err, ok := s.errors.Load(id)
	if !ok {
		return nil
	}
	return err.(error)
}

// Forget drops all state for a module.
func (s *Store) Forget(ctx context.Context, id moduleid.ID) error {
	s.states.Delete(id)
	s.consumed.Delete(id)
	s.errors.Delete(id)
	s.outputs.Range(func(key, _ any) bool {
		if key.(moduleid.PortRef).Module == id {
			s.outputs.Delete(key)
		}
		return true
	})
	return nil
}
