// Package localsession provides the in-process implementation of the
// session.Session and session.Factory interfaces.
//
// One coordinating goroutine owns run execution. Callers enqueue runs and
// return immediately; progress is observable through the notification sink
// and the returned run handles. Topology mutations submitted while a run is
// active are held back and applied, in submission order, as soon as it
// finishes and before the next queued run starts.
package localsession
