package network

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/registry"
)

var (
	ErrUnknownModuleType = registry.ErrUnknownModuleType
	ErrNotFound          = errors.New("not found")
	ErrTypeMismatch      = errors.New("port types are incompatible")
	ErrPortOccupied      = errors.New("input port already has an incoming connection")
	ErrWouldCreateCycle  = errors.New("connection would create a cycle")
	ErrCycleDetected     = errors.New("cycle detected")
	ErrInvalidPort       = errors.New("invalid port")
	ErrLoopPair          = errors.New("invalid loop pair")
)

// TopologyError wraps a topology sentinel with the failing operation.
type TopologyError struct {
	Op     string
	Module moduleid.ID
	Err    error
}

func (e *TopologyError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("network: %s %s: %v", e.Op, e.Module, e.Err)
}

func (e *TopologyError) Unwrap() error { return e.Err }

func topoErr(op string, id moduleid.ID, err error) error {
	return &TopologyError{Op: op, Module: id, Err: err}
}
