// Package execctx holds the per-run ExecutionContext: identity, the set of
// modules touched by the run, per-module outcomes, the error collection, the
// cancellation flag and follow-up re-run requests.
//
// A Context is created by the session when a run starts and is reachable
// from module code through FromContext, so widget-style modules can ask for
// a targeted re-run without knowing about the session.
package execctx
