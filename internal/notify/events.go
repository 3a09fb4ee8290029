// Package notify defines the notifications the engine emits and the sinks
// that consume them. The engine never calls into rendering or report code
// directly; everything downstream observes these events.
package notify

import (
	"github.com/specialistvlad/dataflowgo/internal/module"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// Type identifies an event kind.
type Type string

const (
	ModuleStatusChangedType Type = "module.status_changed"
	ModuleSkippedType       Type = "module.skipped"
	OutputPublishedType     Type = "module.output_published"
	RunStartedType          Type = "run.started"
	RunFinishedType         Type = "run.finished"
	TopologyChangedType     Type = "network.topology_changed"
)

// Event is implemented by every notification.
type Event interface {
	EventType() Type
}

// ModuleStatusChanged reports a module status transition.
type ModuleStatusChanged struct {
	Module      moduleid.ID   `json:"module"`
	Status      module.Status `json:"status"`
	ExecutionID uint64        `json:"execution_id,omitempty"`
}

// ModuleSkipped reports that a module did not execute in a run, and why.
type ModuleSkipped struct {
	Module      moduleid.ID `json:"module"`
	Reason      string      `json:"reason"`
	ExecutionID uint64      `json:"execution_id"`
}

// OutputPublished reports a new datum on an output port.
type OutputPublished struct {
	Module     moduleid.ID `json:"module"`
	Port       int         `json:"port"`
	Generation uint64      `json:"generation"`
}

// RunStarted is emitted when a run begins.
type RunStarted struct {
	ExecutionID uint64        `json:"execution_id"`
	RunID       string        `json:"run_id"`
	Targets     []moduleid.ID `json:"targets,omitempty"`
}

// RunFinished is emitted when a run ends. Errors is never nil.
type RunFinished struct {
	ExecutionID uint64                 `json:"execution_id"`
	RunID       string                 `json:"run_id"`
	Outcome     string                 `json:"outcome"`
	Errors      map[moduleid.ID]string `json:"errors"`
}

// TopologyChanged is emitted after a successful network mutation.
type TopologyChanged struct {
	Op         string      `json:"op"`
	Module     moduleid.ID `json:"module,omitempty"`
	Connection string      `json:"connection,omitempty"`
}

func (ModuleStatusChanged) EventType() Type { return ModuleStatusChangedType }
func (ModuleSkipped) EventType() Type       { return ModuleSkippedType }
func (OutputPublished) EventType() Type     { return OutputPublishedType }
func (RunStarted) EventType() Type          { return RunStartedType }
func (RunFinished) EventType() Type         { return RunFinishedType }
func (TopologyChanged) EventType() Type     { return TopologyChangedType }

// newEvent returns an empty event value for decoding, or nil for an unknown type.
func newEvent(t Type) Event {
	switch t {
	case ModuleStatusChangedType:
		return &ModuleStatusChanged{}
	case ModuleSkippedType:
		return &ModuleSkipped{}
	case OutputPublishedType:
		return &OutputPublished{}
	case RunStartedType:
		return &RunStarted{}
	case RunFinishedType:
		return &RunFinished{}
	case TopologyChangedType:
		return &TopologyChanged{}
	default:
		return nil
	}
}
