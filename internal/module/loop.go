package module

import "time"

// LoopStart is implemented by modules that open a loop construct. The
// scheduler pairs it with a LoopEnd and repeats everything in between.
type LoopStart interface {
	Module
	LoopStart()
}

// LoopEnd is implemented by modules that close a loop construct.
type LoopEnd interface {
	Module
	// LoopDone is consulted after every iteration that executed the module
	// successfully.
	LoopDone(state *State) bool
	// LoopPolicy returns the safeguards the scheduler enforces for the loop.
	LoopPolicy(state *State) LoopPolicy
}

// LoopPolicy bounds a loop's repetition.
type LoopPolicy struct {
	MaxIterations int
	Timeout       time.Duration
}

const (
	DefaultMaxIterations   = 50
	DefaultPollingInterval = 200 * time.Millisecond
)

// DefaultLoopPolicy allows fifty iterations within fifty polling intervals.
func DefaultLoopPolicy() LoopPolicy {
	return LoopPolicy{
		MaxIterations: DefaultMaxIterations,
		Timeout:       DefaultMaxIterations * DefaultPollingInterval,
	}
}
