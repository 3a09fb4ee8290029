package history

import (
	"context"
	"errors"
	"time"

	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// ErrNotFound is returned when no report exists for a run id.
var ErrNotFound = errors.New("run report not found")

// Report summarizes one finished run.
type Report struct {
	ExecutionID uint64                 `json:"execution_id" yaml:"execution_id"`
	RunID       string                 `json:"run_id" yaml:"run_id"`
	Targets     []moduleid.ID          `json:"targets,omitempty" yaml:"targets,omitempty"`
	Started     time.Time              `json:"started" yaml:"started"`
	Finished    time.Time              `json:"finished" yaml:"finished"`
	Outcome     execctx.RunOutcome     `json:"outcome" yaml:"outcome"`
	Modules     []execctx.Result       `json:"modules" yaml:"modules"`
	Errors      map[moduleid.ID]string `json:"errors" yaml:"errors"`
	Fatal       string                 `json:"fatal,omitempty" yaml:"fatal,omitempty"`
}

// NewReport summarizes ec as of finished.
func NewReport(ec *execctx.Context, finished time.Time) Report {
	r := Report{
		ExecutionID: ec.ID,
		RunID:       ec.RunID,
		Targets:     ec.Targets,
		Started:     ec.Started,
		Finished:    finished,
		Outcome:     ec.Outcome(),
		Modules:     ec.Results(),
		Errors:      make(map[moduleid.ID]string),
	}
	for id, err := range ec.Errors() {
		r.Errors[id] = err.Error()
	}
	if err := ec.Fatal(); err != nil {
		r.Fatal = err.Error()
	}
	return r
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Store archives reports. Implementations are safe for concurrent use.
type Store interface {
	Save(ctx context.Context, r Report) error
	Get(ctx context.Context, runID string) (Report, error)
	// List returns up to limit reports, newest first. A limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Report, error)
	Close() error
}
