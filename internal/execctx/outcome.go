package execctx

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// ErrCancelled is returned by Run.Wait when a run ended by cancellation.
// Cancellation is reported as a run outcome, never as a module error.
var ErrCancelled = errors.New("execution cancelled")

// Outcome is what happened to one module in one run.
type Outcome int

const (
	Executed Outcome = iota
	Failed
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Executed:
		return "executed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	for _, c := range []Outcome{Executed, Failed, Skipped} {
		if c.String() == string(b) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// SkipReason says why a module in scope did not execute.
type SkipReason string

const (
	UpToDate      SkipReason = "up_to_date"
	UpstreamError SkipReason = "upstream_error"
	MissingInput  SkipReason = "missing_input"
	Cancelled     SkipReason = "cancelled"
	Aborted       SkipReason = "aborted"
)

// Result is the outcome of one module in one run.
type Result struct {
	Module   moduleid.ID   `json:"module" yaml:"module"`
	Outcome  Outcome       `json:"outcome" yaml:"outcome"`
	Reason   SkipReason    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	// Iterations is set for loop-end modules.
	Iterations int `json:"iterations,omitempty" yaml:"iterations,omitempty"`
}

// RunOutcome is the terminal state of a whole run.
type RunOutcome string

const (
	RunSucceeded RunOutcome = "succeeded"
	RunFailed    RunOutcome = "failed"
	RunCancelled RunOutcome = "cancelled"
	RunAborted   RunOutcome = "aborted"
)
