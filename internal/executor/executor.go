// Package executor defines the interface for running a scheduler plan
// against a network.
package executor

import (
	"context"
	"errors"

	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
)

// ErrAborted wraps the fatal error that ended a run early.
var ErrAborted = errors.New("run aborted")

// Executor walks a plan, executing modules one at a time in plan order and
// recording every outcome in the execution context.
//
// Recoverable module errors are collected in ec and do not make Execute
// fail. Execute returns an error wrapping ErrAborted only when a fatal error
// stopped the run.
type Executor interface {
	Execute(ctx context.Context, plan *scheduler.Plan, ec *execctx.Context) error
}
