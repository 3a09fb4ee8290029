// Package localexecutor provides the in-process implementation of the
// executor.Executor interface.
//
// Modules of one run never execute concurrently: the executor blocks on each
// execute call in plan order. Cancellation is checked between module
// executions, never inside one.
package localexecutor
