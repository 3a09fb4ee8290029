// Package history archives the reports of finished runs.
//
// A Report is a plain summary of one ExecutionContext. Stores keep reports
// keyed by run id and list them newest first. Three backends exist: an
// in-process ring (MemoryStore), an embedded badger database (BadgerStore)
// and a shared redis server (RedisStore).
package history
